package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Deployment event types carried on the deployment-events topic.
const (
	DeploymentEventStart = "start"
	DeploymentEventStop  = "stop"
)

// DiscordDeploymentConfig is the platform-specific configuration document of
// a Discord deployment. Conf validation happens when the start event is
// accepted, before a worker is spawned.
type DiscordDeploymentConfig struct {
	GuildID         int64              `json:"guild_id"`
	AllowedChannels []int64            `json:"allowed_channels"`
	AllowedActions  []ActionDefinition `json:"allowed_actions"`
}

// Validate checks the conf document against the Discord schema.
func (c DiscordDeploymentConfig) Validate() error {
	if c.GuildID == 0 {
		return fmt.Errorf("guild_id is required")
	}
	for i, def := range c.AllowedActions {
		switch def.Type {
		case ActionBan, ActionMute, ActionKick:
		default:
			return fmt.Errorf("allowed_actions[%d]: unknown action type %q", i, def.Type)
		}
		if def.DurationMS != nil && *def.DurationMS < 0 {
			return fmt.Errorf("allowed_actions[%d]: duration must be >= 0", i)
		}
	}
	return nil
}

// DeploymentEvent is a decoded lifecycle event. Conf is only present on
// start events; Platform determines its schema.
type DeploymentEvent struct {
	Type         string                   `json:"type"`
	DeploymentID uuid.UUID                `json:"deployment_id"`
	ModeratorID  uuid.UUID                `json:"moderator_id,omitempty"`
	Platform     Platform                 `json:"platform,omitempty"`
	Conf         *DiscordDeploymentConfig `json:"conf,omitempty"`
}

// DecodeDeploymentEvent parses and validates a raw bus payload.
// Malformed or unknown events return an error; the caller logs and drops.
func DecodeDeploymentEvent(data []byte) (*DeploymentEvent, error) {
	var ev DeploymentEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed deployment event: %w", err)
	}

	switch ev.Type {
	case DeploymentEventStart:
		if ev.DeploymentID == uuid.Nil {
			return nil, fmt.Errorf("start event missing deployment_id")
		}
		if ev.ModeratorID == uuid.Nil {
			return nil, fmt.Errorf("start event missing moderator_id")
		}
		if _, err := ParsePlatform(string(ev.Platform)); err != nil {
			return nil, fmt.Errorf("start event: %w", err)
		}
		if ev.Conf == nil {
			return nil, fmt.Errorf("start event missing conf")
		}
		if err := ev.Conf.Validate(); err != nil {
			return nil, fmt.Errorf("start event conf: %w", err)
		}
	case DeploymentEventStop:
		if ev.DeploymentID == uuid.Nil {
			return nil, fmt.Errorf("stop event missing deployment_id")
		}
	default:
		return nil, fmt.Errorf("unknown deployment event type %q", ev.Type)
	}

	return &ev, nil
}
