package service

import (
	"slotbook/pkg/config"
	"slotbook/pkg/model"
)

// DefaultTransitionTable builds the immutable rule set governing
// reservation status changes. Policy thresholds come from
// configuration; the edge set itself is fixed.
func DefaultTransitionTable(cfg *config.Config) *model.TransitionTable {
	minNotice := cfg.CancelMinNoticeHours

	return model.NewTransitionTable([]model.TransitionRule{
		{
			From:      model.StatusRequested,
			To:        model.StatusConfirmed,
			AllowedBy: []model.Role{model.RoleShop},
		},
		{
			From:           model.StatusRequested,
			To:             model.StatusCancelledByUser,
			AllowedBy:      []model.Role{model.RoleUser},
			RequiresReason: true,
			Conditions: model.TransitionConditions{
				MinHoursBeforeReservation: &minNotice,
			},
		},
		{
			From:           model.StatusRequested,
			To:             model.StatusCancelledByShop,
			AllowedBy:      []model.Role{model.RoleShop},
			RequiresReason: true,
		},
		{
			From:      model.StatusConfirmed,
			To:        model.StatusCompleted,
			AllowedBy: []model.Role{model.RoleShop, model.RoleSystem},
			Conditions: model.TransitionConditions{
				PaymentRequired: true,
			},
		},
		{
			From:           model.StatusConfirmed,
			To:             model.StatusCancelledByUser,
			AllowedBy:      []model.Role{model.RoleUser},
			RequiresReason: true,
			Conditions: model.TransitionConditions{
				MinHoursBeforeReservation: &minNotice,
			},
		},
		{
			From:           model.StatusConfirmed,
			To:             model.StatusCancelledByShop,
			AllowedBy:      []model.Role{model.RoleShop},
			RequiresReason: true,
		},
		{
			From:      model.StatusConfirmed,
			To:        model.StatusNoShow,
			AllowedBy: []model.Role{model.RoleSystem},
		},
	})
}

// RollbackTargets is the whitelist of statuses an admin rollback may
// restore. Everything else is refused outright.
var RollbackTargets = map[model.Status]bool{
	model.StatusRequested: true,
	model.StatusConfirmed: true,
}
