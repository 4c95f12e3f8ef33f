package discord

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneakbots/sentinel/pkg/models"
)

type sessionCall struct {
	method  string
	guildID string
	userID  string
	reason  string
	until   *time.Time
}

type fakeSession struct {
	calls []sessionCall
	err   error
}

func (f *fakeSession) GuildBanCreateWithReason(guildID, userID, reason string, _ int, _ ...discordgo.RequestOption) error {
	f.calls = append(f.calls, sessionCall{method: "ban", guildID: guildID, userID: userID, reason: reason})
	return f.err
}

func (f *fakeSession) GuildMemberTimeout(guildID, userID string, until *time.Time, _ ...discordgo.RequestOption) error {
	f.calls = append(f.calls, sessionCall{method: "timeout", guildID: guildID, userID: userID, until: until})
	return f.err
}

func (f *fakeSession) GuildMemberDeleteWithReason(guildID, userID, reason string, _ ...discordgo.RequestOption) error {
	f.calls = append(f.calls, sessionCall{method: "kick", guildID: guildID, userID: userID, reason: reason})
	return f.err
}

func restError(status int) *discordgo.RESTError {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
}

func TestEffectorBan(t *testing.T) {
	s := &fakeSession{}
	err := NewEffector(s, nil).Apply(context.Background(), &models.Action{
		Type: models.ActionBan, GuildID: 100, UserID: 42, Reason: "harassment",
	})
	require.NoError(t, err)
	require.Len(t, s.calls, 1)
	assert.Equal(t, sessionCall{method: "ban", guildID: "100", userID: "42", reason: "harassment"}, s.calls[0])
}

func TestEffectorMuteTimesOutMember(t *testing.T) {
	s := &fakeSession{}
	before := time.Now()
	err := NewEffector(s, nil).Apply(context.Background(), &models.Action{
		Type: models.ActionMute, GuildID: 100, UserID: 42, DurationMS: 60000,
	})
	require.NoError(t, err)

	require.Len(t, s.calls, 1)
	call := s.calls[0]
	assert.Equal(t, "timeout", call.method)
	require.NotNil(t, call.until)
	assert.WithinDuration(t, before.Add(time.Minute), *call.until, 2*time.Second)
}

func TestEffectorKick(t *testing.T) {
	s := &fakeSession{}
	err := NewEffector(s, nil).Apply(context.Background(), &models.Action{
		Type: models.ActionKick, GuildID: 100, UserID: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, "kick", s.calls[0].method)
}

func TestEffectorMuteRequiresDuration(t *testing.T) {
	s := &fakeSession{}
	err := NewEffector(s, nil).Apply(context.Background(), &models.Action{
		Type: models.ActionMute, GuildID: 100, UserID: 42,
	})
	assert.ErrorContains(t, err, "duration")
	assert.Empty(t, s.calls)
}

func TestEffectorRequiresGuildAndUser(t *testing.T) {
	e := NewEffector(&fakeSession{}, nil)

	err := e.Apply(context.Background(), &models.Action{Type: models.ActionBan, UserID: 42})
	assert.ErrorContains(t, err, "guild")

	err = e.Apply(context.Background(), &models.Action{Type: models.ActionBan, GuildID: 100})
	assert.ErrorContains(t, err, "user")
}

func TestEffectorMapsForbidden(t *testing.T) {
	s := &fakeSession{err: restError(http.StatusForbidden)}
	err := NewEffector(s, nil).Apply(context.Background(), &models.Action{
		Type: models.ActionBan, GuildID: 100, UserID: 42,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEffectorMapsNotFound(t *testing.T) {
	s := &fakeSession{err: restError(http.StatusNotFound)}
	err := NewEffector(s, nil).Apply(context.Background(), &models.Action{
		Type: models.ActionKick, GuildID: 100, UserID: 42,
	})
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestEffectorWrapsOtherStatuses(t *testing.T) {
	s := &fakeSession{err: restError(http.StatusBadGateway)}
	err := NewEffector(s, nil).Apply(context.Background(), &models.Action{
		Type: models.ActionBan, GuildID: 100, UserID: 42,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrTargetNotFound)
}
