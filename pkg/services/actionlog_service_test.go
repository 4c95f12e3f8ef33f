package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakbots/sentinel/pkg/models"
)

func insertLog(t *testing.T, f *fixture, action *models.Action) *models.ActionLog {
	t.Helper()
	log, err := NewActionLogService(f.pool).InsertActionLog(
		context.Background(), f.moderator.ID, f.deployment.ID, action,
		map[string]any{"guild_id": 1})
	require.NoError(t, err)
	return log
}

func TestActionLogInitialStatus(t *testing.T) {
	f := setupFixture(t)

	auto := insertLog(t, f, &models.Action{
		Platform: models.PlatformDiscord, Type: models.ActionMute,
		UserID: 42, DurationMS: 60000,
	})
	assert.Equal(t, models.ActionStatusPending, auto.Status)

	gated := insertLog(t, f, &models.Action{
		Platform: models.PlatformDiscord, Type: models.ActionBan,
		UserID: 42, RequiresApproval: true,
	})
	assert.Equal(t, models.ActionStatusAwaitingApproval, gated.Status)
}

func TestActionLogPersistsParams(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	log := insertLog(t, f, &models.Action{
		Platform: models.PlatformDiscord, Type: models.ActionMute,
		UserID: 42, DurationMS: 60000, Reason: "harassment",
	})

	got, err := NewActionLogService(f.pool).GetActionLog(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionMute, got.ActionType)
	assert.Equal(t, "42", got.ActionParams["user_id"])
	assert.EqualValues(t, 60000, got.ActionParams["duration"])
	assert.Equal(t, "harassment", got.ActionParams["reason"])
	assert.EqualValues(t, 1, got.Context["guild_id"])
}

func TestActionLogDispatchTransitions(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewActionLogService(f.pool)

	log := insertLog(t, f, &models.Action{
		Platform: models.PlatformDiscord, Type: models.ActionMute, UserID: 42,
	})

	require.NoError(t, svc.UpdateActionStatus(ctx, log.ID, models.ActionStatusPending, models.ActionStatusSuccess))

	got, err := svc.GetActionLog(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionStatusSuccess, got.Status)

	// SUCCESS is terminal.
	err = svc.UpdateActionStatus(ctx, log.ID, models.ActionStatusSuccess, models.ActionStatusFailed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestActionLogApprovalFlow(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewActionLogService(f.pool)

	log := insertLog(t, f, &models.Action{
		Platform: models.PlatformDiscord, Type: models.ActionBan,
		UserID: 42, RequiresApproval: true,
	})

	// Skipping the approval step is rejected before touching the row.
	err := svc.UpdateActionStatus(ctx, log.ID, models.ActionStatusAwaitingApproval, models.ActionStatusSuccess)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, svc.UpdateActionStatus(ctx, log.ID, models.ActionStatusAwaitingApproval, models.ActionStatusApproved))
	require.NoError(t, svc.UpdateActionStatus(ctx, log.ID, models.ActionStatusApproved, models.ActionStatusSuccess))
}

func TestActionLogDeclineIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewActionLogService(f.pool)

	log := insertLog(t, f, &models.Action{
		Platform: models.PlatformDiscord, Type: models.ActionBan,
		UserID: 42, RequiresApproval: true,
	})

	require.NoError(t, svc.UpdateActionStatus(ctx, log.ID, models.ActionStatusAwaitingApproval, models.ActionStatusDeclined))

	err := svc.UpdateActionStatus(ctx, log.ID, models.ActionStatusDeclined, models.ActionStatusApproved)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestActionLogStaleCAS(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewActionLogService(f.pool)

	log := insertLog(t, f, &models.Action{
		Platform: models.PlatformDiscord, Type: models.ActionBan,
		UserID: 42, RequiresApproval: true,
	})
	require.NoError(t, svc.UpdateActionStatus(ctx, log.ID, models.ActionStatusAwaitingApproval, models.ActionStatusApproved))

	// A second operator decision arrives with a stale expectation.
	err := svc.UpdateActionStatus(ctx, log.ID, models.ActionStatusAwaitingApproval, models.ActionStatusDeclined)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestActionLogUpdateMissing(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)

	err := NewActionLogService(f.pool).UpdateActionStatus(ctx, uuid.New(), models.ActionStatusPending, models.ActionStatusSuccess)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActionLogList(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	svc := NewActionLogService(f.pool)

	insertLog(t, f, &models.Action{Platform: models.PlatformDiscord, Type: models.ActionMute, UserID: 1})
	insertLog(t, f, &models.Action{Platform: models.PlatformDiscord, Type: models.ActionKick, UserID: 2})

	logs, err := svc.ListActionLogs(ctx, f.deployment.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}
