package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"slotbook/internal/reservations/service"
	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type ReservationHandler struct {
	service      service.ReservationService
	stateMachine service.StateMachine
	log          *logger.Logger
}

func NewReservationHandler(svc service.ReservationService, sm service.StateMachine, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service:      svc,
		stateMachine: sm,
		log:          log,
	}
}

// actor pulls the acting identity out of the request headers. Roles
// arrive pre-authenticated from the gateway; this service only checks
// they name a known role.
func (h *ReservationHandler) actor(r *http.Request) (model.Role, string, error) {
	role := model.Role(r.Header.Get(HeaderActorRole))
	actorID := r.Header.Get(HeaderActorID)

	if actorID == "" {
		return "", "", apperrors.Unauthorized("Missing " + HeaderActorID + " header")
	}
	if !role.Valid() {
		return "", "", apperrors.Unauthorized("Missing or unknown " + HeaderActorRole + " header")
	}

	return role, actorID, nil
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	reservation, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()
	userID := query.Get("user_id")
	shopID := query.Get("shop_id")

	var reservations []*model.Reservation
	switch {
	case userID != "":
		reservations, err = h.service.GetByUser(r.Context(), userID, limit, offset)
	case shopID != "":
		date, parseErr := time.ParseInLocation(model.DateFormat, query.Get("date"), time.UTC)
		if parseErr != nil {
			err = apperrors.InvalidInput(fmt.Sprintf("date must be provided in %s format", model.DateFormat))
		} else {
			reservations, err = h.service.GetByShopAndDate(r.Context(), shopID, date, limit, offset)
		}
	default:
		err = apperrors.InvalidInput("Either user_id or shop_id must be provided")
	}

	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, reservations); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

type transitionRequest struct {
	From   model.Status `json:"from,omitempty"`
	To     model.Status `json:"to"`
	Reason string       `json:"reason,omitempty"`
}

func (h *ReservationHandler) ValidateTransition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	role, actorID, err := h.actor(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ValidateTransition", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ValidateTransition", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	result, err := h.stateMachine.ValidateTransition(r.Context(), ps.ByName("id"), req.From, req.To, role, actorID, req.Reason)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ValidateTransition", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "ValidateTransition", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) ExecuteTransition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	role, actorID, err := h.actor(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ExecuteTransition", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ExecuteTransition", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	result, err := h.stateMachine.ExecuteTransition(r.Context(), ps.ByName("id"), req.To, role, actorID, req.Reason, nil)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ExecuteTransition", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if !result.Success {
		if err := httputil.WriteJSON(w, http.StatusUnprocessableEntity, result); err != nil {
			h.log.Error("failed to write JSON response", "handler", "ExecuteTransition", "operation", "WriteJSON", "error", err)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "ExecuteTransition", "operation", "WriteSuccess", "error", err)
	}
}

type rollbackRequest struct {
	To     model.Status `json:"to"`
	Reason string       `json:"reason"`
}

func (h *ReservationHandler) Rollback(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	role, actorID, err := h.actor(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Rollback", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if role != model.RoleAdmin {
		if writeErr := httputil.WriteError(w, apperrors.Forbidden("Rollback is admin-only")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Rollback", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Rollback", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	result, err := h.stateMachine.RollbackStateChange(r.Context(), ps.ByName("id"), req.To, actorID, req.Reason)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Rollback", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if !result.Success {
		if err := httputil.WriteJSON(w, http.StatusUnprocessableEntity, result); err != nil {
			h.log.Error("failed to write JSON response", "handler", "Rollback", "operation", "WriteJSON", "error", err)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Rollback", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) AvailableTransitions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	role, _, err := h.actor(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "AvailableTransitions", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	result, err := h.stateMachine.GetAvailableTransitions(r.Context(), ps.ByName("id"), role)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "AvailableTransitions", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "AvailableTransitions", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	history, err := h.stateMachine.GetStateChangeHistory(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "History", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, history); err != nil {
		h.log.Error("failed to write success response", "handler", "History", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/reservations", h.Create)
	router.GET("/reservations", h.List)
	router.GET("/reservations/:id", h.GetByID)
	router.POST("/reservations/:id/transitions", h.ExecuteTransition)
	router.POST("/reservations/:id/transitions/validate", h.ValidateTransition)
	router.GET("/reservations/:id/transitions", h.AvailableTransitions)
	router.GET("/reservations/:id/history", h.History)
	router.POST("/reservations/:id/rollback", h.Rollback)
}
