package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the type of a change event.
type Kind string

const (
	KindTaskUpdated    Kind = "task_updated"
	KindProjectUpdated Kind = "project_updated"
	KindCommentAdded   Kind = "comment_added"
)

// Kinds lists every change event kind.
func Kinds() []Kind {
	return []Kind{KindTaskUpdated, KindProjectUpdated, KindCommentAdded}
}

// Action describes what happened to the entity named in the payload.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
	ActionAdded   Action = "added"
)

// Payload carries the event details delivered to subscribers.
type Payload struct {
	EntityID uuid.UUID `json:"entityId"`
	Action   Action    `json:"action"`
	Summary  string    `json:"summary,omitempty"`
	Data     any       `json:"data,omitempty"`
}

// ChangeEvent describes a mutation applied to a project or one of its tasks.
// It is never persisted; it lives only between emission and delivery.
type ChangeEvent struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"type"`
	ProjectID uuid.UUID `json:"projectId"`
	ActorID   uuid.UUID `json:"actorId"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeEvent creates a change event stamped with a fresh id and the current time.
func NewChangeEvent(kind Kind, projectID, actorID uuid.UUID, payload Payload) *ChangeEvent {
	return &ChangeEvent{
		ID:        uuid.New(),
		Kind:      kind,
		ProjectID: projectID,
		ActorID:   actorID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
