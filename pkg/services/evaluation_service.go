package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sneakbots/sentinel/pkg/models"
)

// EvaluationService performs similarity lookups over the persisted
// evaluation corpus using pgvector's L2 distance.
type EvaluationService struct {
	pool *pgxpool.Pool
}

// NewEvaluationService creates a new EvaluationService.
func NewEvaluationService(pool *pgxpool.Pool) *EvaluationService {
	if pool == nil {
		panic("NewEvaluationService: pool must not be nil")
	}
	return &EvaluationService{pool: pool}
}

// Nearest returns evaluations whose embedding lies strictly within
// maxDistance (L2) of vector and whose topic is in topics. Results keep
// insertion order so neighbor averaging is deterministic. A negative
// maxDistance behaves as zero and matches nothing.
func (s *EvaluationService) Nearest(ctx context.Context, vector []float32, topics []string, maxDistance float64) ([]models.TopicScore, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	if maxDistance < 0 {
		maxDistance = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT topic, topic_score
		 FROM message_evaluations
		 WHERE topic = ANY($2)
		   AND embedding <-> $1::vector < $3
		 ORDER BY created_at, evaluation_id`,
		formatVector(vector), topics, maxDistance,
	)
	if err != nil {
		return nil, fmt.Errorf("query nearest evaluations: %w", err)
	}
	defer rows.Close()

	var neighbors []models.TopicScore
	for rows.Next() {
		var n models.TopicScore
		if err := rows.Scan(&n.Topic, &n.Score); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}
