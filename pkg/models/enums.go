// Package models defines the domain types shared across the moderation
// engine: platforms, deployment lifecycle states, actions, message contexts,
// and evaluation results.
package models

import "fmt"

// Platform identifies a supported chat platform.
type Platform string

const (
	PlatformDiscord Platform = "discord"
)

// ParsePlatform validates a platform string from an event or API payload.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformDiscord:
		return PlatformDiscord, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// DeploymentState is the lifecycle state of a moderator deployment.
// Transitions: OFFLINE → PENDING (event accepted) → ONLINE (worker booted)
// → OFFLINE (stop event, failure, or shutdown).
type DeploymentState string

const (
	DeploymentOffline DeploymentState = "offline"
	DeploymentPending DeploymentState = "pending"
	DeploymentOnline  DeploymentState = "online"
)

// ActionStatus is the state of an action log entry.
type ActionStatus string

const (
	ActionStatusPending          ActionStatus = "pending"
	ActionStatusAwaitingApproval ActionStatus = "awaiting_approval"
	ActionStatusApproved         ActionStatus = "approved"
	ActionStatusDeclined         ActionStatus = "declined"
	ActionStatusSuccess          ActionStatus = "success"
	ActionStatusFailed           ActionStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s ActionStatus) Terminal() bool {
	switch s {
	case ActionStatusSuccess, ActionStatusFailed, ActionStatusDeclined:
		return true
	}
	return false
}

// CanTransitionTo reports whether the action log state machine permits
// moving from s to next. PENDING and APPROVED resolve to SUCCESS or FAILED
// on dispatch; AWAITING_APPROVAL resolves to APPROVED or DECLINED by an
// operator.
func (s ActionStatus) CanTransitionTo(next ActionStatus) bool {
	switch s {
	case ActionStatusPending, ActionStatusApproved:
		return next == ActionStatusSuccess || next == ActionStatusFailed
	case ActionStatusAwaitingApproval:
		return next == ActionStatusApproved || next == ActionStatusDeclined
	}
	return false
}

// ActionType identifies a moderation effect.
type ActionType string

const (
	ActionBan  ActionType = "ban"
	ActionMute ActionType = "mute"
	ActionKick ActionType = "kick"
)

// MaliciousState is the verdict of the prompt-injection screen.
type MaliciousState int

const (
	NotMalicious MaliciousState = iota
	Malicious
	MaliciousUnknown
)

func (m MaliciousState) String() string {
	switch m {
	case NotMalicious:
		return "not_malicious"
	case Malicious:
		return "malicious"
	}
	return "unknown"
}
