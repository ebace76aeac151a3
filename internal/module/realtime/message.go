package realtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/projecthub/server/internal/shared/events"
)

// Inbound frame types.
const (
	TypeJoinProject  = "join_project"
	TypeLeaveProject = "leave_project"
	TypeTyping       = "typing"
)

// Outbound control frame types. Change events use their kind as the frame type.
const (
	TypeConnected  = "connected"
	TypeJoined     = "joined"
	TypeLeft       = "left"
	TypeError      = "error"
	TypeUserTyping = "user_typing"
	TypeRoomClosed = "room_closed"
)

// ClientMessage is a frame sent by a client.
type ClientMessage struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId,omitempty"`
}

// EventPayload is the payload of a change event frame.
type EventPayload struct {
	ActorID  uuid.UUID     `json:"actorId"`
	EntityID uuid.UUID     `json:"entityId"`
	Action   events.Action `json:"action"`
	Summary  string        `json:"summary,omitempty"`
	Data     any           `json:"data,omitempty"`
}

// TypingPayload is the payload of a user_typing frame.
type TypingPayload struct {
	UserID uuid.UUID `json:"userId"`
	TaskID string    `json:"taskId,omitempty"`
}

// Message is a frame sent to a client.
type Message struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"projectId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// eventMessage converts a change event to its outbound frame.
func eventMessage(ev *events.ChangeEvent) Message {
	return Message{
		Type:      string(ev.Kind),
		ProjectID: ev.ProjectID.String(),
		Payload: EventPayload{
			ActorID:  ev.ActorID,
			EntityID: ev.Payload.EntityID,
			Action:   ev.Payload.Action,
			Summary:  ev.Payload.Summary,
			Data:     ev.Payload.Data,
		},
		Timestamp: ev.Timestamp,
	}
}

func controlMessage(typ string, projectID string) Message {
	return Message{Type: typ, ProjectID: projectID, Timestamp: time.Now().UTC()}
}

func errorMessage(projectID string, err error) Message {
	return Message{Type: TypeError, ProjectID: projectID, Error: err.Error(), Timestamp: time.Now().UTC()}
}
