package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sneakbots/sentinel/pkg/models"
)

// ActionLogService records moderation actions and drives their status
// state machine.
type ActionLogService struct {
	pool *pgxpool.Pool
}

// NewActionLogService creates a new ActionLogService.
func NewActionLogService(pool *pgxpool.Pool) *ActionLogService {
	if pool == nil {
		panic("NewActionLogService: pool must not be nil")
	}
	return &ActionLogService{pool: pool}
}

// InsertActionLog persists a new action log entry. The initial status is
// AWAITING_APPROVAL when the action requires human approval, PENDING
// otherwise.
func (s *ActionLogService) InsertActionLog(ctx context.Context, moderatorID, deploymentID uuid.UUID, action *models.Action, actionCtx map[string]any) (*models.ActionLog, error) {
	status := models.ActionStatusPending
	if action.RequiresApproval {
		status = models.ActionStatusAwaitingApproval
	}
	if actionCtx == nil {
		actionCtx = map[string]any{}
	}

	log := &models.ActionLog{
		ID:           uuid.New(),
		ModeratorID:  moderatorID,
		DeploymentID: deploymentID,
		ActionType:   action.Type,
		ActionParams: action.Params(),
		Context:      actionCtx,
		Status:       status,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO moderator_logs (log_id, moderator_id, deployment_id, action_type, action_params, context, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		log.ID, log.ModeratorID, log.DeploymentID, log.ActionType, log.ActionParams, log.Context, log.Status,
	).Scan(&log.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert action log: %w", err)
	}
	return log, nil
}

// GetActionLog fetches an action log entry by id.
func (s *ActionLogService) GetActionLog(ctx context.Context, id uuid.UUID) (*models.ActionLog, error) {
	log := &models.ActionLog{}
	err := s.pool.QueryRow(ctx,
		`SELECT log_id, moderator_id, deployment_id, action_type, action_params, context, status, created_at
		 FROM moderator_logs WHERE log_id = $1`,
		id,
	).Scan(&log.ID, &log.ModeratorID, &log.DeploymentID, &log.ActionType, &log.ActionParams, &log.Context, &log.Status, &log.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("action log %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get action log: %w", err)
	}
	return log, nil
}

// ListActionLogs returns a deployment's action logs, newest first.
func (s *ActionLogService) ListActionLogs(ctx context.Context, deploymentID uuid.UUID) ([]*models.ActionLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT log_id, moderator_id, deployment_id, action_type, action_params, context, status, created_at
		 FROM moderator_logs WHERE deployment_id = $1 ORDER BY created_at DESC`,
		deploymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list action logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.ActionLog
	for rows.Next() {
		log := &models.ActionLog{}
		if err := rows.Scan(&log.ID, &log.ModeratorID, &log.DeploymentID, &log.ActionType, &log.ActionParams, &log.Context, &log.Status, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// UpdateActionStatus moves a log entry from one status to another. The
// transition must be legal for the state machine and the row must currently
// hold the expected status; otherwise ErrInvalidTransition is returned.
func (s *ActionLogService) UpdateActionStatus(ctx context.Context, id uuid.UUID, from, to models.ActionStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("action log status %s cannot become %s: %w", from, to, ErrInvalidTransition)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE moderator_logs SET status = $3
		 WHERE log_id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return fmt.Errorf("update action status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current models.ActionStatus
		err := s.pool.QueryRow(ctx,
			`SELECT status FROM moderator_logs WHERE log_id = $1`, id,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("action log %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read action status: %w", err)
		}
		return fmt.Errorf("action log %s is %s, expected %s: %w", id, current, from, ErrInvalidTransition)
	}
	return nil
}
