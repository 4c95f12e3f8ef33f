package models

import (
	"fmt"
	"strconv"
)

// Action is a concrete moderation effect produced by the verdict and
// executed by a platform dispatcher. RequiresApproval is captured from the
// matching allowed-action definition at construction time and is not
// re-evaluated later. GuildID is filled in by the dispatcher that knows the
// deployment's guild; the verdict never names it.
type Action struct {
	Platform         Platform   `json:"platform"`
	Type             ActionType `json:"type"`
	UserID           int64      `json:"user_id"`
	GuildID          int64      `json:"guild_id,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	DurationMS       int64      `json:"duration,omitempty"`
	RequiresApproval bool       `json:"requires_approval"`
}

// Params returns the persistable parameter document for the action log.
// Snowflake ids are stored as decimal strings: a JSONB round trip through
// map[string]any turns numbers into float64, which cannot hold ids above
// 2^53.
func (a Action) Params() map[string]any {
	p := map[string]any{
		"platform": string(a.Platform),
		"type":     string(a.Type),
		"user_id":  strconv.FormatInt(a.UserID, 10),
	}
	if a.GuildID != 0 {
		p["guild_id"] = strconv.FormatInt(a.GuildID, 10)
	}
	if a.Reason != "" {
		p["reason"] = a.Reason
	}
	if a.Type == ActionMute {
		p["duration"] = a.DurationMS
	}
	return p
}

// ActionFromParams reconstructs an action from a persisted parameter
// document, the inverse of Params. Used when an approved log entry is
// executed later by a different process.
func ActionFromParams(params map[string]any) (*Action, error) {
	platform, err := ParsePlatform(stringParam(params, "platform"))
	if err != nil {
		return nil, fmt.Errorf("action params: %w", err)
	}

	action := &Action{
		Platform: platform,
		Type:     ActionType(stringParam(params, "type")),
		Reason:   stringParam(params, "reason"),
	}
	switch action.Type {
	case ActionBan, ActionMute, ActionKick:
	default:
		return nil, fmt.Errorf("action params: unknown action type %q", action.Type)
	}

	if action.UserID, err = int64Param(params, "user_id"); err != nil {
		return nil, err
	}
	if action.GuildID, err = int64Param(params, "guild_id"); err != nil {
		return nil, err
	}
	if action.Type == ActionMute {
		if action.DurationMS, err = int64Param(params, "duration"); err != nil {
			return nil, err
		}
	}
	return action, nil
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// int64Param accepts both the string encoding Params writes and the float64
// a JSON decoder produces for plain numbers.
func int64Param(params map[string]any, key string) (int64, error) {
	switch v := params[key].(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("action params: %s: %w", key, err)
		}
		return n, nil
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("action params: %s has unsupported type %T", key, v)
	}
}

// ActionDefinition is an allowed-action entry from a deployment's
// configuration: which action type the deployment permits, whether it is
// approval gated, and an optional fixed duration for mutes (milliseconds).
type ActionDefinition struct {
	Type             ActionType `json:"type" yaml:"type"`
	RequiresApproval bool       `json:"requires_approval" yaml:"requires_approval"`
	DurationMS       *int64     `json:"duration,omitempty" yaml:"duration,omitempty"`
}
