package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	v := validator.New()

	if err := v.RegisterValidation("dateformat", validateDateFormat); err != nil {
		log.Fatal("Failed to register 'dateformat' validator",
			"error", err,
		)
	}

	if err := v.RegisterValidation("timeformat", validateTimeFormat); err != nil {
		log.Fatal("Failed to register 'timeformat' validator",
			"error", err,
		)
	}

	log.Info("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		logger:   log,
	}
}

func validateDateFormat(fl validator.FieldLevel) bool {
	_, err := time.Parse(model.DateFormat, fl.Field().String())
	return err == nil
}

func validateTimeFormat(fl validator.FieldLevel) bool {
	_, err := time.Parse(model.TimeFormat, fl.Field().String())
	return err == nil
}

// ValidateCreate checks the inbound creation request and returns the
// parsed reservation date on success.
func (v *ReservationValidator) ValidateCreate(req *model.CreateReservationRequest) (time.Time, error) {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return time.Time{}, v.translateValidationErrors(validationErrs)
		}
		return time.Time{}, err
	}

	date, err := time.ParseInLocation(model.DateFormat, req.ReservationDate, time.UTC)
	if err != nil {
		return time.Time{}, ValidationErrors{
			ValidationError{
				Field:   "ReservationDate",
				Message: fmt.Sprintf("reservation_date must match %s", model.DateFormat),
			},
		}
	}

	if req.DepositAmount > req.TotalAmount {
		return time.Time{}, ValidationErrors{
			ValidationError{
				Field:   "DepositAmount",
				Message: "deposit_amount cannot exceed total_amount",
			},
		}
	}

	seen := make(map[string]bool, len(req.Services))
	for _, line := range req.Services {
		if seen[line.ServiceID] {
			return time.Time{}, ValidationErrors{
				ValidationError{
					Field:   "Services",
					Message: fmt.Sprintf("duplicate service_id: %s", line.ServiceID),
				},
			}
		}
		seen[line.ServiceID] = true
	}

	return date, nil
}

// ValidateStartNotPast rejects reservations for instants that already
// passed. Separated from ValidateCreate so tests can pin the clock.
func (v *ReservationValidator) ValidateStartNotPast(startAt, now time.Time) error {
	if startAt.Before(now) {
		return ValidationErrors{
			ValidationError{
				Field:   "ReservationTime",
				Message: "reservation start cannot be in the past",
			},
		}
	}
	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "dateformat":
			message = fmt.Sprintf("%s must be a date in %s format", err.Field(), model.DateFormat)
		case "timeformat":
			message = fmt.Sprintf("%s must be a time in %s format", err.Field(), model.TimeFormat)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
