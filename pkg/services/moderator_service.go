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

// ModeratorService handles moderator creation and lookup.
type ModeratorService struct {
	pool *pgxpool.Pool
}

// NewModeratorService creates a new ModeratorService.
func NewModeratorService(pool *pgxpool.Pool) *ModeratorService {
	if pool == nil {
		panic("NewModeratorService: pool must not be nil")
	}
	return &ModeratorService{pool: pool}
}

// CreateModerator binds a guideline into a reusable moderator.
func (s *ModeratorService) CreateModerator(ctx context.Context, ownerID, guidelineID uuid.UUID, name string) (*models.Moderator, error) {
	if name == "" {
		return nil, NewValidationError("name", "name is required")
	}

	m := &models.Moderator{ID: uuid.New(), OwnerUserID: ownerID, Name: name, GuidelineID: guidelineID}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO moderators (moderator_id, owner_user_id, name, guideline_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		m.ID, m.OwnerUserID, m.Name, m.GuidelineID,
	).Scan(&m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, NewValidationError("guideline_id", "referenced guideline does not exist")
		}
		return nil, fmt.Errorf("insert moderator: %w", err)
	}
	return m, nil
}

// GetModerator fetches a moderator by id.
func (s *ModeratorService) GetModerator(ctx context.Context, id uuid.UUID) (*models.Moderator, error) {
	m := &models.Moderator{}
	err := s.pool.QueryRow(ctx,
		`SELECT moderator_id, owner_user_id, name, guideline_id, created_at
		 FROM moderators WHERE moderator_id = $1`,
		id,
	).Scan(&m.ID, &m.OwnerUserID, &m.Name, &m.GuidelineID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("moderator %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get moderator: %w", err)
	}
	return m, nil
}

// ListModerators returns all moderators owned by a user, newest first.
func (s *ModeratorService) ListModerators(ctx context.Context, ownerID uuid.UUID) ([]*models.Moderator, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT moderator_id, owner_user_id, name, guideline_id, created_at
		 FROM moderators WHERE owner_user_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list moderators: %w", err)
	}
	defer rows.Close()

	var moderators []*models.Moderator
	for rows.Next() {
		m := &models.Moderator{}
		if err := rows.Scan(&m.ID, &m.OwnerUserID, &m.Name, &m.GuidelineID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan moderator: %w", err)
		}
		moderators = append(moderators, m)
	}
	return moderators, rows.Err()
}
