package points

import (
	"net/http"

	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// PointBalance is the query view over the ledger: the net adjustment
// this engine has recorded for a user plus the most recent entries.
type PointBalance struct {
	UserID       string               `json:"user_id"`
	BalanceDelta int64                `json:"balance_delta"`
	Entries      []*model.LedgerEntry `json:"entries"`
}

type Handler struct {
	repo LedgerRepository
	log  *logger.Logger
}

func NewHandler(repo LedgerRepository, log *logger.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log,
	}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("userId")

	limit, _, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Balance", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	delta, err := h.repo.BalanceDelta(r.Context(), userID)
	if err != nil {
		if writeErr := httputil.WriteError(w, apperrors.Internal("Failed to compute point balance", err)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Balance", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	entries, err := h.repo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		if writeErr := httputil.WriteError(w, apperrors.Internal("Failed to list ledger entries", err)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Balance", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if entries == nil {
		entries = []*model.LedgerEntry{}
	}

	balance := &PointBalance{
		UserID:       userID,
		BalanceDelta: delta,
		Entries:      entries,
	}

	if err := httputil.WriteSuccess(w, balance); err != nil {
		h.log.Error("failed to write success response", "handler", "Balance", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/users/:userId/points", h.Balance)
}
