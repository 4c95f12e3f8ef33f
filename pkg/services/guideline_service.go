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

// GuidelineService handles guideline CRUD and topic derivation persistence.
type GuidelineService struct {
	pool *pgxpool.Pool
}

// NewGuidelineService creates a new GuidelineService.
func NewGuidelineService(pool *pgxpool.Pool) *GuidelineService {
	if pool == nil {
		panic("NewGuidelineService: pool must not be nil")
	}
	return &GuidelineService{pool: pool}
}

// CreateGuideline stores a guideline. Topics start empty; they are derived
// from the body the first time a worker needs them.
func (s *GuidelineService) CreateGuideline(ctx context.Context, ownerID uuid.UUID, name, body string) (*models.Guideline, error) {
	if name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if body == "" {
		return nil, NewValidationError("body", "guideline body is required")
	}

	g := &models.Guideline{ID: uuid.New(), OwnerUserID: ownerID, Name: name, Body: body, Topics: []string{}}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO guidelines (guideline_id, owner_user_id, name, body, topics)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		g.ID, g.OwnerUserID, g.Name, g.Body, g.Topics,
	).Scan(&g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert guideline: %w", err)
	}
	return g, nil
}

// GetGuideline fetches a guideline by id.
func (s *GuidelineService) GetGuideline(ctx context.Context, id uuid.UUID) (*models.Guideline, error) {
	g := &models.Guideline{}
	err := s.pool.QueryRow(ctx,
		`SELECT guideline_id, owner_user_id, name, body, topics, created_at
		 FROM guidelines WHERE guideline_id = $1`,
		id,
	).Scan(&g.ID, &g.OwnerUserID, &g.Name, &g.Body, &g.Topics, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("guideline %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get guideline: %w", err)
	}
	return g, nil
}

// ListGuidelines returns all guidelines owned by a user, newest first.
func (s *GuidelineService) ListGuidelines(ctx context.Context, ownerID uuid.UUID) ([]*models.Guideline, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT guideline_id, owner_user_id, name, body, topics, created_at
		 FROM guidelines WHERE owner_user_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list guidelines: %w", err)
	}
	defer rows.Close()

	var guidelines []*models.Guideline
	for rows.Next() {
		g := &models.Guideline{}
		if err := rows.Scan(&g.ID, &g.OwnerUserID, &g.Name, &g.Body, &g.Topics, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan guideline: %w", err)
		}
		guidelines = append(guidelines, g)
	}
	return guidelines, rows.Err()
}

// SetTopics persists the derived topic list. Only the first writer wins: a
// guideline whose topics are already set keeps them, so the list stays
// consistent with the body it was derived from.
func (s *GuidelineService) SetTopics(ctx context.Context, id uuid.UUID, topics []string) ([]string, error) {
	if len(topics) == 0 {
		return nil, NewValidationError("topics", "topic list must not be empty")
	}

	var stored []string
	err := s.pool.QueryRow(ctx,
		`UPDATE guidelines
		 SET topics = CASE WHEN cardinality(topics) = 0 THEN $2 ELSE topics END
		 WHERE guideline_id = $1
		 RETURNING topics`,
		id, topics,
	).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("guideline %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("set topics: %w", err)
	}
	return stored, nil
}
