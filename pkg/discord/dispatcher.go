package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sneakbots/sentinel/pkg/models"
)

// ActionLogStore is the persistence surface the dispatcher and approver
// need. *services.ActionLogService satisfies it.
type ActionLogStore interface {
	InsertActionLog(ctx context.Context, moderatorID, deploymentID uuid.UUID, action *models.Action, actionCtx map[string]any) (*models.ActionLog, error)
	GetActionLog(ctx context.Context, id uuid.UUID) (*models.ActionLog, error)
	UpdateActionStatus(ctx context.Context, id uuid.UUID, from, to models.ActionStatus) error
}

// Applier executes a concrete action against the platform.
type Applier interface {
	Apply(ctx context.Context, action *models.Action) error
}

// Dispatcher records verdict actions and executes the ones that do not
// require human approval. Every dispatched action leaves an action log row;
// approval-gated actions stop at AWAITING_APPROVAL for an operator.
type Dispatcher struct {
	logs         ActionLogStore
	effector     Applier
	moderatorID  uuid.UUID
	deploymentID uuid.UUID
	guildID      int64
	logger       *slog.Logger
}

// NewDispatcher creates the per-deployment dispatcher.
func NewDispatcher(logs ActionLogStore, effector Applier, moderatorID, deploymentID uuid.UUID, guildID int64, logger *slog.Logger) *Dispatcher {
	if logs == nil {
		panic("NewDispatcher: logs must not be nil")
	}
	if effector == nil {
		panic("NewDispatcher: effector must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logs:         logs,
		effector:     effector,
		moderatorID:  moderatorID,
		deploymentID: deploymentID,
		guildID:      guildID,
		logger:       logger,
	}
}

// Dispatch records the action and, when it is not approval gated, executes
// it and settles the log row to SUCCESS or FAILED. The returned bool
// reports whether the action was executed.
func (d *Dispatcher) Dispatch(ctx context.Context, action *models.Action, msgCtx *models.MessageContext) (bool, error) {
	action.GuildID = d.guildID

	log, err := d.logs.InsertActionLog(ctx, d.moderatorID, d.deploymentID, action, msgCtx.PromptContext())
	if err != nil {
		return false, fmt.Errorf("record action: %w", err)
	}

	if action.RequiresApproval {
		d.logger.Info("Action awaiting approval",
			"log_id", log.ID,
			"action_type", action.Type,
			"user_id", action.UserID)
		return false, nil
	}

	if err := d.effector.Apply(ctx, action); err != nil {
		if updErr := d.logs.UpdateActionStatus(ctx, log.ID, models.ActionStatusPending, models.ActionStatusFailed); updErr != nil {
			d.logger.Error("Failed to mark action log failed", "log_id", log.ID, "error", updErr)
		}
		return false, fmt.Errorf("execute action: %w", err)
	}

	if err := d.logs.UpdateActionStatus(ctx, log.ID, models.ActionStatusPending, models.ActionStatusSuccess); err != nil {
		return true, fmt.Errorf("mark action succeeded: %w", err)
	}
	return true, nil
}

// Approver settles operator decisions on approval-gated action logs. It is
// used by the control plane, with its own process-scoped effector.
type Approver struct {
	logs     ActionLogStore
	effector Applier
	logger   *slog.Logger
}

// NewApprover creates an approver.
func NewApprover(logs ActionLogStore, effector Applier, logger *slog.Logger) *Approver {
	if logs == nil {
		panic("NewApprover: logs must not be nil")
	}
	if effector == nil {
		panic("NewApprover: effector must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Approver{logs: logs, effector: effector, logger: logger}
}

// Approve moves the log entry AWAITING_APPROVAL→APPROVED, executes the
// recorded action, and settles the row to SUCCESS or FAILED. Concurrent
// decisions lose the CAS and surface ErrInvalidTransition from the store.
func (a *Approver) Approve(ctx context.Context, logID uuid.UUID) (*models.ActionLog, error) {
	if err := a.logs.UpdateActionStatus(ctx, logID, models.ActionStatusAwaitingApproval, models.ActionStatusApproved); err != nil {
		return nil, err
	}

	log, err := a.logs.GetActionLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	action, err := models.ActionFromParams(log.ActionParams)
	if err != nil {
		return nil, fmt.Errorf("action log %s: %w", logID, err)
	}

	final := models.ActionStatusSuccess
	if applyErr := a.effector.Apply(ctx, action); applyErr != nil {
		a.logger.Error("Approved action failed", "log_id", logID, "error", applyErr)
		final = models.ActionStatusFailed
	}
	if err := a.logs.UpdateActionStatus(ctx, logID, models.ActionStatusApproved, final); err != nil {
		return nil, err
	}

	log.Status = final
	return log, nil
}

// Decline moves the log entry AWAITING_APPROVAL→DECLINED without executing
// anything.
func (a *Approver) Decline(ctx context.Context, logID uuid.UUID) (*models.ActionLog, error) {
	if err := a.logs.UpdateActionStatus(ctx, logID, models.ActionStatusAwaitingApproval, models.ActionStatusDeclined); err != nil {
		return nil, err
	}
	log, err := a.logs.GetActionLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	return log, nil
}
