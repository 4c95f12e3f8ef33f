package models

import (
	"time"

	"github.com/google/uuid"
)

// User owns guidelines and moderators. Deleting a user cascades to both.
type User struct {
	ID           uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Guideline is a moderation policy document. Topics are derived from the
// body on first need and keep the order they were derived in.
type Guideline struct {
	ID          uuid.UUID `json:"guideline_id"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Topics      []string  `json:"topics"`
	CreatedAt   time.Time `json:"created_at"`
}

// Moderator binds a guideline into a reusable policy. A moderator may be
// deployed zero or more times.
type Moderator struct {
	ID          uuid.UUID `json:"moderator_id"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	Name        string    `json:"name"`
	GuidelineID uuid.UUID `json:"guideline_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Deployment is a moderator running against one platform target. Conf is
// the platform-specific configuration document, stored as JSON.
type Deployment struct {
	ID          uuid.UUID       `json:"deployment_id"`
	ModeratorID uuid.UUID       `json:"moderator_id"`
	Platform    Platform        `json:"platform"`
	Name        string          `json:"name"`
	Conf        []byte          `json:"-"`
	State       DeploymentState `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ActionLog records one moderation action and its approval/dispatch
// lifecycle.
type ActionLog struct {
	ID           uuid.UUID      `json:"log_id"`
	ModeratorID  uuid.UUID      `json:"moderator_id"`
	DeploymentID uuid.UUID      `json:"deployment_id"`
	ActionType   ActionType     `json:"action_type"`
	ActionParams map[string]any `json:"action_params"`
	Context      map[string]any `json:"context"`
	Status       ActionStatus   `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Message is a moderated message that yielded at least one evaluation.
type Message struct {
	ID           uuid.UUID `json:"message_id"`
	ModeratorID  uuid.UUID `json:"moderator_id"`
	DeploymentID uuid.UUID `json:"deployment_id"`
	Platform     Platform  `json:"platform"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}
