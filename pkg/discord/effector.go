// Package discord binds the moderation engine to Discord: the inbound
// message stream, the action effector, and the dispatcher that drives the
// action log state machine.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sneakbots/sentinel/pkg/models"
)

// Session is the slice of the discordgo REST API the effector needs.
type Session interface {
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
}

// Effector executes moderation actions against the Discord REST API.
type Effector struct {
	session Session
	logger  *slog.Logger
}

// NewEffector creates an effector on top of an authenticated session.
func NewEffector(session Session, logger *slog.Logger) *Effector {
	if session == nil {
		panic("NewEffector: session must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Effector{session: session, logger: logger}
}

// Apply executes the action. Mutes are implemented as member timeouts with
// the action's duration. Returned errors follow the package taxonomy:
// ErrForbidden, ErrTargetNotFound, or a wrapped transport error.
func (e *Effector) Apply(ctx context.Context, action *models.Action) error {
	if action.GuildID == 0 {
		return fmt.Errorf("action %s: missing guild id", action.Type)
	}
	if action.UserID == 0 {
		return fmt.Errorf("action %s: missing user id", action.Type)
	}
	guildID := strconv.FormatInt(action.GuildID, 10)
	userID := strconv.FormatInt(action.UserID, 10)

	var err error
	switch action.Type {
	case models.ActionBan:
		err = e.session.GuildBanCreateWithReason(guildID, userID, action.Reason, 0, discordgo.WithContext(ctx))
	case models.ActionMute:
		if action.DurationMS <= 0 {
			return fmt.Errorf("mute action: duration must be positive")
		}
		until := time.Now().Add(time.Duration(action.DurationMS) * time.Millisecond)
		err = e.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx))
	case models.ActionKick:
		err = e.session.GuildMemberDeleteWithReason(guildID, userID, action.Reason, discordgo.WithContext(ctx))
	default:
		return fmt.Errorf("unsupported discord action type %q", action.Type)
	}
	if err != nil {
		return mapAPIError(err)
	}

	e.logger.Info("Discord action executed",
		"action_type", action.Type,
		"guild_id", guildID,
		"user_id", userID)
	return nil
}
