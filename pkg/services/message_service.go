package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sneakbots/sentinel/pkg/models"
)

// MessageService persists moderated messages together with their per-topic
// evaluations. The two always land in one transaction: a message row exists
// iff at least one evaluation row exists for it.
type MessageService struct {
	pool *pgxpool.Pool
}

// NewMessageService creates a new MessageService.
func NewMessageService(pool *pgxpool.Pool) *MessageService {
	if pool == nil {
		panic("NewMessageService: pool must not be nil")
	}
	return &MessageService{pool: pool}
}

// InsertMessageWithEvaluations writes the message and one evaluation row
// per topic score atomically. Scores are rounded to two decimals at persist
// time only; in-memory values keep full precision. Returns the message id.
func (s *MessageService) InsertMessageWithEvaluations(ctx context.Context, msgCtx *models.MessageContext, eval *models.MessageEvaluation) (uuid.UUID, error) {
	if len(eval.TopicScores) == 0 {
		return uuid.Nil, NewValidationError("topic_scores", "at least one topic score is required")
	}
	if len(eval.Embedding) == 0 {
		return uuid.Nil, NewValidationError("embedding", "embedding is required")
	}

	messageID := uuid.New()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO messages (message_id, moderator_id, deployment_id, platform, content)
			 VALUES ($1, $2, $3, $4, $5)`,
			messageID, msgCtx.ModeratorID, msgCtx.DeploymentID, msgCtx.Platform, msgCtx.Content,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		vec := formatVector(eval.Embedding)
		for _, ts := range eval.TopicScores {
			_, err := tx.Exec(ctx,
				`INSERT INTO message_evaluations (evaluation_id, message_id, embedding, topic, topic_score)
				 VALUES ($1, $2, $3::vector, $4, $5)`,
				uuid.New(), messageID, vec, ts.Topic, roundScore(ts.Score),
			)
			if err != nil {
				return fmt.Errorf("insert evaluation for topic %q: %w", ts.Topic, err)
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return messageID, nil
}

// GetMessage fetches a message by id.
func (s *MessageService) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	m := &models.Message{}
	err := s.pool.QueryRow(ctx,
		`SELECT message_id, moderator_id, deployment_id, platform, content, created_at
		 FROM messages WHERE message_id = $1`,
		id,
	).Scan(&m.ID, &m.ModeratorID, &m.DeploymentID, &m.Platform, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// roundScore rounds to two decimals for persistence.
func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}
