package models

import (
	"github.com/google/uuid"
)

// DiscordContext is the platform routing data captured from an incoming
// Discord message. It replaces the raw platform message object so the
// pipeline never touches platform SDK types.
type DiscordContext struct {
	UserID    int64  `json:"user_id"`
	ChannelID int64  `json:"channel_id"`
	GuildID   int64  `json:"guild_id"`
	GuildName string `json:"guild_name,omitempty"`
}

// MessageContext carries a single incoming message through the evaluation
// pipeline: the content plus the platform routing data needed to act on it.
type MessageContext struct {
	Platform     Platform        `json:"platform"`
	Content      string          `json:"content"`
	ModeratorID  uuid.UUID       `json:"moderator_id"`
	DeploymentID uuid.UUID       `json:"deployment_id"`
	Discord      *DiscordContext `json:"discord,omitempty"`
}

// PromptContext returns the serialisable view of the context handed to the
// scoring and verdict prompts (platform + routing data, no internal IDs).
func (c MessageContext) PromptContext() map[string]any {
	ctx := map[string]any{
		"platform": string(c.Platform),
		"message":  c.Content,
	}
	if c.Discord != nil {
		ctx["data"] = map[string]any{
			"user_id":    c.Discord.UserID,
			"channel_id": c.Discord.ChannelID,
			"guild_id":   c.Discord.GuildID,
			"guild_name": c.Discord.GuildName,
		}
	}
	return ctx
}
