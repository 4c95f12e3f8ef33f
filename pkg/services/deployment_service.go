package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sneakbots/sentinel/pkg/models"
)

// DeploymentService handles deployment rows and their state machine.
// State updates are compare-and-swap: the worker owns its deployment's
// state and every transition names the state it expects to leave.
type DeploymentService struct {
	pool *pgxpool.Pool
}

// NewDeploymentService creates a new DeploymentService.
func NewDeploymentService(pool *pgxpool.Pool) *DeploymentService {
	if pool == nil {
		panic("NewDeploymentService: pool must not be nil")
	}
	return &DeploymentService{pool: pool}
}

// CreateDeployment stores a deployment in OFFLINE state. conf is the raw
// platform-specific configuration document.
func (s *DeploymentService) CreateDeployment(ctx context.Context, moderatorID uuid.UUID, platform models.Platform, name string, conf []byte) (*models.Deployment, error) {
	if name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if len(conf) == 0 {
		conf = []byte("{}")
	}

	d := &models.Deployment{
		ID:          uuid.New(),
		ModeratorID: moderatorID,
		Platform:    platform,
		Name:        name,
		Conf:        conf,
		State:       models.DeploymentOffline,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO moderator_deployments (deployment_id, moderator_id, platform, name, conf, state)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		d.ID, d.ModeratorID, d.Platform, d.Name, d.Conf, d.State,
	).Scan(&d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, NewValidationError("moderator_id", "referenced moderator does not exist")
		}
		return nil, fmt.Errorf("insert deployment: %w", err)
	}
	return d, nil
}

// GetDeployment fetches a deployment by id.
func (s *DeploymentService) GetDeployment(ctx context.Context, id uuid.UUID) (*models.Deployment, error) {
	d := &models.Deployment{}
	err := s.pool.QueryRow(ctx,
		`SELECT deployment_id, moderator_id, platform, name, conf, state, created_at
		 FROM moderator_deployments WHERE deployment_id = $1`,
		id,
	).Scan(&d.ID, &d.ModeratorID, &d.Platform, &d.Name, &d.Conf, &d.State, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment: %w", err)
	}
	return d, nil
}

// TransitionState moves the deployment from one state to another. The
// update only applies when the row is currently in the expected state;
// otherwise ErrInvalidTransition is returned and the row is untouched.
func (s *DeploymentService) TransitionState(ctx context.Context, id uuid.UUID, from, to models.DeploymentState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE moderator_deployments SET state = $3
		 WHERE deployment_id = $1 AND state = $2`,
		id, from, to,
	)
	if err != nil {
		return fmt.Errorf("transition deployment state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a state mismatch.
		var current models.DeploymentState
		err := s.pool.QueryRow(ctx,
			`SELECT state FROM moderator_deployments WHERE deployment_id = $1`, id,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("deployment %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read deployment state: %w", err)
		}
		return fmt.Errorf("deployment %s is %s, expected %s: %w", id, current, from, ErrInvalidTransition)
	}
	return nil
}

// ForceOffline unconditionally marks the deployment OFFLINE. Used when a
// worker exits or crashes and its last known state cannot be trusted.
func (s *DeploymentService) ForceOffline(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE moderator_deployments SET state = $2 WHERE deployment_id = $1`,
		id, models.DeploymentOffline,
	)
	if err != nil {
		return fmt.Errorf("force deployment offline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	return nil
}
