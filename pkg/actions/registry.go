// Package actions maps LLM verdict output to concrete moderation actions.
// Builders are registered per (platform, action type); a deployment's
// allowed-action list gates which of them a verdict may select.
package actions

import (
	"errors"
	"fmt"

	"github.com/sneakbots/sentinel/pkg/models"
)

var (
	// ErrUnknownAction is returned when no builder is registered for the
	// requested (platform, type) pair.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrNotAllowed is returned when the deployment's allowed-action list
	// does not include the requested type.
	ErrNotAllowed = errors.New("action not allowed for deployment")
)

// RawAction is the action fragment parsed from the final verdict.
type RawAction struct {
	Type       string `json:"type"`
	UserID     int64  `json:"user_id"`
	DurationMS int64  `json:"duration,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Builder validates a raw action against its allowed-action definition and
// assembles the concrete Action.
type Builder func(raw RawAction, def models.ActionDefinition) (*models.Action, error)

type registryKey struct {
	platform   models.Platform
	actionType models.ActionType
}

// Registry resolves (platform, action type) pairs to builders.
type Registry struct {
	builders map[registryKey]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[registryKey]Builder)}
}

// Register installs a builder. Registering the same pair twice panics; the
// registry is assembled once at startup.
func (r *Registry) Register(platform models.Platform, actionType models.ActionType, b Builder) {
	key := registryKey{platform: platform, actionType: actionType}
	if _, ok := r.builders[key]; ok {
		panic(fmt.Sprintf("action builder already registered for %s/%s", platform, actionType))
	}
	r.builders[key] = b
}

// Build resolves raw against the deployment's allowed-action list and
// constructs the action. RequiresApproval is taken from the matching
// definition.
func (r *Registry) Build(platform models.Platform, raw RawAction, allowed []models.ActionDefinition) (*models.Action, error) {
	actionType := models.ActionType(raw.Type)

	var def *models.ActionDefinition
	for i := range allowed {
		if allowed[i].Type == actionType {
			def = &allowed[i]
			break
		}
	}
	if def == nil {
		return nil, fmt.Errorf("action %q: %w", raw.Type, ErrNotAllowed)
	}

	b, ok := r.builders[registryKey{platform: platform, actionType: actionType}]
	if !ok {
		return nil, fmt.Errorf("action %q on %s: %w", raw.Type, platform, ErrUnknownAction)
	}
	return b(raw, *def)
}

// Schemas renders the allowed-action list as prompt-ready schema documents
// for the final verdict call.
func Schemas(allowed []models.ActionDefinition) []map[string]any {
	schemas := make([]map[string]any, 0, len(allowed))
	for _, def := range allowed {
		schema := map[string]any{
			"type":    string(def.Type),
			"user_id": "<numeric id of the offending user>",
		}
		if def.Type == models.ActionMute {
			if def.DurationMS != nil {
				schema["duration"] = *def.DurationMS
			} else {
				schema["duration"] = "<mute duration in milliseconds>"
			}
		}
		schemas = append(schemas, schema)
	}
	return schemas
}

// Default returns a registry with every supported platform action wired in.
func Default() *Registry {
	r := NewRegistry()
	r.Register(models.PlatformDiscord, models.ActionBan, buildDiscordBan)
	r.Register(models.PlatformDiscord, models.ActionMute, buildDiscordMute)
	r.Register(models.PlatformDiscord, models.ActionKick, buildDiscordKick)
	return r
}

func buildDiscordBan(raw RawAction, def models.ActionDefinition) (*models.Action, error) {
	if raw.UserID == 0 {
		return nil, errors.New("ban action requires user_id")
	}
	return &models.Action{
		Platform:         models.PlatformDiscord,
		Type:             models.ActionBan,
		UserID:           raw.UserID,
		Reason:           raw.Reason,
		RequiresApproval: def.RequiresApproval,
	}, nil
}

func buildDiscordMute(raw RawAction, def models.ActionDefinition) (*models.Action, error) {
	if raw.UserID == 0 {
		return nil, errors.New("mute action requires user_id")
	}
	duration := raw.DurationMS
	if def.DurationMS != nil {
		// A fixed duration in the deployment config wins over the verdict.
		duration = *def.DurationMS
	}
	if duration <= 0 {
		return nil, errors.New("mute action requires a positive duration")
	}
	return &models.Action{
		Platform:         models.PlatformDiscord,
		Type:             models.ActionMute,
		UserID:           raw.UserID,
		Reason:           raw.Reason,
		DurationMS:       duration,
		RequiresApproval: def.RequiresApproval,
	}, nil
}

func buildDiscordKick(raw RawAction, def models.ActionDefinition) (*models.Action, error) {
	if raw.UserID == 0 {
		return nil, errors.New("kick action requires user_id")
	}
	return &models.Action{
		Platform:         models.PlatformDiscord,
		Type:             models.ActionKick,
		UserID:           raw.UserID,
		Reason:           raw.Reason,
		RequiresApproval: def.RequiresApproval,
	}, nil
}
