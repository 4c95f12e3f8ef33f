package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakbots/sentinel/pkg/models"
)

func testVector(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}

func messageContext(f *fixture, content string) *models.MessageContext {
	return &models.MessageContext{
		Platform:     models.PlatformDiscord,
		Content:      content,
		ModeratorID:  f.moderator.ID,
		DeploymentID: f.deployment.ID,
		Discord:      &models.DiscordContext{UserID: 42, ChannelID: 7, GuildID: 1},
	}
}

func TestInsertMessageWithEvaluations(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewMessageService(f.pool)

	eval := &models.MessageEvaluation{
		EvaluationScore: 0.03,
		TopicScores: []models.TopicScore{
			{Topic: "respect", Score: 0.02},
			{Topic: "spam", Score: 0.01},
		},
		Embedding: testVector(1024, 0.1),
	}

	msgID, err := svc.InsertMessageWithEvaluations(ctx, messageContext(f, "hello there"), eval)
	require.NoError(t, err)

	msg, err := svc.GetMessage(ctx, msgID)
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Content)
	assert.Equal(t, f.deployment.ID, msg.DeploymentID)

	var count int
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT count(*) FROM message_evaluations WHERE message_id = $1`, msgID).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestInsertMessageRoundsScoresAtPersist(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewMessageService(f.pool)

	eval := &models.MessageEvaluation{
		TopicScores: []models.TopicScore{{Topic: "spam", Score: 0.456789}},
		Embedding:   testVector(1024, 0.2),
	}

	msgID, err := svc.InsertMessageWithEvaluations(ctx, messageContext(f, "buy now"), eval)
	require.NoError(t, err)

	var stored float64
	require.NoError(t, f.pool.QueryRow(ctx,
		`SELECT topic_score FROM message_evaluations WHERE message_id = $1`, msgID).Scan(&stored))
	assert.Equal(t, 0.46, stored)

	// The in-memory value keeps full precision.
	assert.Equal(t, 0.456789, eval.TopicScores[0].Score)
}

func TestInsertMessageRequiresEvaluations(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewMessageService(f.pool)

	_, err := svc.InsertMessageWithEvaluations(ctx, messageContext(f, "x"), &models.MessageEvaluation{
		Embedding: testVector(1024, 0.1),
	})
	assert.True(t, IsValidationError(err))

	_, err = svc.InsertMessageWithEvaluations(ctx, messageContext(f, "x"), &models.MessageEvaluation{
		TopicScores: []models.TopicScore{{Topic: "spam", Score: 0.5}},
	})
	assert.True(t, IsValidationError(err))

	// Neither failure may leave a message row behind.
	var count int
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT count(*) FROM messages`).Scan(&count))
	assert.Equal(t, 0, count)
}
