package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakbots/sentinel/pkg/models"
)

func int64ptr(v int64) *int64 { return &v }

func TestBuildMuteAction(t *testing.T) {
	r := Default()
	allowed := []models.ActionDefinition{
		{Type: models.ActionMute, RequiresApproval: false},
	}

	action, err := r.Build(models.PlatformDiscord,
		RawAction{Type: "mute", UserID: 42, DurationMS: 60000}, allowed)
	require.NoError(t, err)

	assert.Equal(t, models.ActionMute, action.Type)
	assert.EqualValues(t, 42, action.UserID)
	assert.EqualValues(t, 60000, action.DurationMS)
	assert.False(t, action.RequiresApproval)
}

func TestBuildMuteDefinitionDurationWins(t *testing.T) {
	r := Default()
	allowed := []models.ActionDefinition{
		{Type: models.ActionMute, DurationMS: int64ptr(30000)},
	}

	action, err := r.Build(models.PlatformDiscord,
		RawAction{Type: "mute", UserID: 42, DurationMS: 999999}, allowed)
	require.NoError(t, err)
	assert.EqualValues(t, 30000, action.DurationMS)
}

func TestBuildMuteMissingDuration(t *testing.T) {
	r := Default()
	allowed := []models.ActionDefinition{{Type: models.ActionMute}}

	_, err := r.Build(models.PlatformDiscord, RawAction{Type: "mute", UserID: 42}, allowed)
	assert.Error(t, err)
}

func TestBuildBanCarriesApprovalFlag(t *testing.T) {
	r := Default()
	allowed := []models.ActionDefinition{
		{Type: models.ActionBan, RequiresApproval: true},
	}

	action, err := r.Build(models.PlatformDiscord,
		RawAction{Type: "ban", UserID: 42, Reason: "repeated harassment"}, allowed)
	require.NoError(t, err)
	assert.True(t, action.RequiresApproval)
	assert.Equal(t, "repeated harassment", action.Reason)
}

func TestBuildRejectsDisallowedType(t *testing.T) {
	r := Default()
	allowed := []models.ActionDefinition{{Type: models.ActionMute}}

	_, err := r.Build(models.PlatformDiscord, RawAction{Type: "ban", UserID: 42}, allowed)
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestBuildRejectsUnknownType(t *testing.T) {
	r := Default()
	allowed := []models.ActionDefinition{{Type: models.ActionType("shadowban")}}

	_, err := r.Build(models.PlatformDiscord, RawAction{Type: "shadowban", UserID: 42}, allowed)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestBuildRequiresUserID(t *testing.T) {
	r := Default()
	allowed := []models.ActionDefinition{{Type: models.ActionKick}}

	_, err := r.Build(models.PlatformDiscord, RawAction{Type: "kick"}, allowed)
	assert.Error(t, err)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(models.PlatformDiscord, models.ActionBan, buildDiscordBan)
	assert.Panics(t, func() {
		r.Register(models.PlatformDiscord, models.ActionBan, buildDiscordBan)
	})
}

func TestSchemas(t *testing.T) {
	schemas := Schemas([]models.ActionDefinition{
		{Type: models.ActionBan, RequiresApproval: true},
		{Type: models.ActionMute, DurationMS: int64ptr(60000)},
	})

	require.Len(t, schemas, 2)
	assert.Equal(t, "ban", schemas[0]["type"])
	assert.Equal(t, "mute", schemas[1]["type"])
	assert.EqualValues(t, 60000, schemas[1]["duration"])
}
