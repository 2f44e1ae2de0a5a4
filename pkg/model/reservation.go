package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a reservation. A reservation enters
// at StatusRequested and only ever moves along the transition table.
type Status string

const (
	StatusRequested       Status = "requested"
	StatusConfirmed       Status = "confirmed"
	StatusCompleted       Status = "completed"
	StatusCancelledByUser Status = "cancelled_by_user"
	StatusCancelledByShop Status = "cancelled_by_shop"
	StatusNoShow          Status = "no_show"
)

// ActiveStatuses are the states that occupy a slot.
var ActiveStatuses = []Status{
	StatusRequested,
	StatusConfirmed,
}

// TerminalStatuses have no outgoing transitions outside the admin
// rollback path.
var TerminalStatuses = []Status{
	StatusCompleted,
	StatusCancelledByUser,
	StatusCancelledByShop,
	StatusNoShow,
}

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCompleted,
		StatusCancelledByUser, StatusCancelledByShop, StatusNoShow:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

func (s Status) Cancellation() bool {
	return s == StatusCancelledByUser || s == StatusCancelledByShop
}

// Role identifies who is acting on a reservation.
type Role string

const (
	RoleUser   Role = "user"
	RoleShop   Role = "shop"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleShop, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04"
)

type ServiceLine struct {
	ServiceID string `json:"service_id" bson:"service_id" validate:"required"`
	Quantity  int    `json:"quantity" bson:"quantity" validate:"required,min=1"`
}

type Reservation struct {
	ID              string        `json:"id,omitempty" bson:"_id,omitempty"`
	UserID          string        `json:"user_id" bson:"user_id"`
	ShopID          string        `json:"shop_id" bson:"shop_id"`
	Services        []ServiceLine `json:"services" bson:"services"`
	ReservationDate time.Time     `json:"reservation_date" bson:"reservation_date"`
	ReservationTime string        `json:"reservation_time" bson:"reservation_time"`
	Status          Status        `json:"status" bson:"status"`
	TotalAmount     int64         `json:"total_amount" bson:"total_amount"`
	DepositAmount   int64         `json:"deposit_amount" bson:"deposit_amount"`
	RemainingAmount int64         `json:"remaining_amount" bson:"remaining_amount"`
	PointsUsed      int64         `json:"points_used" bson:"points_used"`
	PointsEarned    int64         `json:"points_earned" bson:"points_earned"`
	RescheduleCount int           `json:"reschedule_count" bson:"reschedule_count"`
	Version         int64         `json:"version" bson:"version"`
	Reason          string        `json:"reason,omitempty" bson:"reason,omitempty"`
	Notes           string        `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updated_at"`
}

// StartAt combines the reservation's date and HH:MM time into a single
// instant in UTC.
func (r *Reservation) StartAt() time.Time {
	t, err := time.Parse(TimeFormat, r.ReservationTime)
	if err != nil {
		return r.ReservationDate
	}
	d := r.ReservationDate
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

func (r *Reservation) Active() bool {
	return !r.Status.Terminal()
}

// SlotKey identifies the unit of bookable capacity this reservation
// occupies. Used as the advisory lock key during creation.
func (r *Reservation) SlotKey() string {
	return SlotKey(r.ShopID, r.ReservationDate, r.ReservationTime)
}

func SlotKey(shopID string, date time.Time, timeOfDay string) string {
	return fmt.Sprintf("%s_%s_%s", shopID, date.Format(DateFormat), timeOfDay)
}

// CreateReservationRequest is the inbound shape for booking creation.
// Date and time are strings on the wire and parsed during validation.
type CreateReservationRequest struct {
	UserID          string        `json:"user_id" validate:"required"`
	ShopID          string        `json:"shop_id" validate:"required"`
	Services        []ServiceLine `json:"services" validate:"required,min=1,dive"`
	ReservationDate string        `json:"reservation_date" validate:"required,dateformat"`
	ReservationTime string        `json:"reservation_time" validate:"required,timeformat"`
	TotalAmount     int64         `json:"total_amount" validate:"min=0"`
	DepositAmount   int64         `json:"deposit_amount" validate:"min=0"`
	PointsToUse     int64         `json:"points_to_use" validate:"min=0"`
	Notes           string        `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// ServiceIDs lists the requested service ids in request order.
func (req *CreateReservationRequest) ServiceIDs() []string {
	ids := make([]string, 0, len(req.Services))
	for _, line := range req.Services {
		ids = append(ids, line.ServiceID)
	}
	return ids
}
