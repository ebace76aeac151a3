package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/projecthub/server/internal/model"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/events"
	"github.com/projecthub/server/internal/shared/metrics"
)

// RoomAuthorizer decides whether a principal may subscribe to a project room.
type RoomAuthorizer interface {
	AuthorizeRoom(ctx context.Context, p model.Principal, projectID uuid.UUID) error
}

// Broadcaster fans change events out to the sessions subscribed to a project
// room. Delivery is fire-and-forget: messages are enqueued to each session and
// never retried.
type Broadcaster struct {
	registry   *Registry
	authorizer RoomAuthorizer
	queueSize  int
	logger     *zap.Logger
	metrics    *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(registry *Registry, authorizer RoomAuthorizer, queueSize int, logger *zap.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		registry:   registry,
		authorizer: authorizer,
		queueSize:  queueSize,
		logger:     logger,
		metrics:    m,
		sessions:   make(map[string]*Session),
	}
}

// Handles implements events.Handler.
func (b *Broadcaster) Handles() []events.Kind {
	return events.Kinds()
}

// Handle implements events.Handler. A deleted project's room is torn down
// right after its final event is delivered.
func (b *Broadcaster) Handle(_ context.Context, ev *events.ChangeEvent) error {
	b.Publish(ev)
	if ev.Kind == events.KindProjectUpdated && ev.Payload.Action == events.ActionDeleted {
		b.CloseRoom(ev.ProjectID)
	}
	return nil
}

// Connect registers a new session for p.
func (b *Broadcaster) Connect(p model.Principal) *Session {
	s := newSession(p, b.queueSize)

	b.mu.Lock()
	b.sessions[s.ID] = s
	b.mu.Unlock()

	b.logger.Debug("session connected",
		zap.String("session_id", s.ID),
		zap.String("user_id", p.ID.String()),
	)
	b.updateGauges()
	return s
}

// Disconnect removes s from every room and closes it. It is safe to call more than once.
func (b *Broadcaster) Disconnect(s *Session) {
	rooms := b.registry.DropSession(s.ID)

	b.mu.Lock()
	delete(b.sessions, s.ID)
	b.mu.Unlock()

	if s.Close() {
		b.logger.Debug("session disconnected",
			zap.String("session_id", s.ID),
			zap.String("user_id", s.Principal.ID.String()),
			zap.Int("rooms_left", len(rooms)),
		)
	}
	b.updateGauges()
}

// Join subscribes s to projectID after checking the session's principal may read it.
func (b *Broadcaster) Join(ctx context.Context, s *Session, projectID uuid.UUID) error {
	if s.Closed() {
		return apperrors.TransportUnavailable(s.ID)
	}
	if err := b.authorizer.AuthorizeRoom(ctx, s.Principal, projectID); err != nil {
		return err
	}

	joined, err := b.registry.Join(s.ID, projectID)
	if err != nil {
		b.logger.Debug("join refused for closed room",
			zap.String("session_id", s.ID),
			zap.String("project_id", projectID.String()),
		)
		return apperrors.NotFound("project")
	}
	if joined {
		b.logger.Debug("session joined room",
			zap.String("session_id", s.ID),
			zap.String("project_id", projectID.String()),
		)
	}
	b.updateGauges()
	return nil
}

// Leave unsubscribes s from projectID. Leaving a room that was never joined is a no-op.
func (b *Broadcaster) Leave(s *Session, projectID uuid.UUID) {
	if b.registry.Leave(s.ID, projectID) {
		b.logger.Debug("session left room",
			zap.String("session_id", s.ID),
			zap.String("project_id", projectID.String()),
		)
	}
	b.updateGauges()
}

// Publish enqueues ev to every session subscribed to its project room and
// returns how many sessions accepted it.
func (b *Broadcaster) Publish(ev *events.ChangeEvent) int {
	delivered := b.broadcast(ev.ProjectID, eventMessage(ev), "")
	b.metrics.RecordPublish(string(ev.Kind), delivered)

	b.logger.Debug("event broadcast",
		zap.String("event_kind", string(ev.Kind)),
		zap.String("project_id", ev.ProjectID.String()),
		zap.Int("deliveries", delivered),
	)
	return delivered
}

// Typing relays a typing notice from s to the rest of the room. Only sessions
// already subscribed to the room may emit it.
func (b *Broadcaster) Typing(s *Session, projectID uuid.UUID, taskID string) error {
	if !b.registry.IsMember(s.ID, projectID) {
		return apperrors.Forbidden("join the project before sending typing notices")
	}

	msg := controlMessage(TypeUserTyping, projectID.String())
	msg.Payload = TypingPayload{UserID: s.Principal.ID, TaskID: taskID}
	b.broadcast(projectID, msg, s.ID)
	return nil
}

// CloseRoom notifies and unsubscribes every session in projectID's room.
func (b *Broadcaster) CloseRoom(projectID uuid.UUID) {
	removed := b.registry.CloseRoom(projectID)
	if len(removed) == 0 {
		return
	}

	msg := controlMessage(TypeRoomClosed, projectID.String())
	for _, sessionID := range removed {
		b.send(sessionID, msg)
	}

	b.logger.Info("room closed",
		zap.String("project_id", projectID.String()),
		zap.Int("sessions", len(removed)),
	)
	b.updateGauges()
}

// Send enqueues a message directly to s.
func (b *Broadcaster) Send(s *Session, msg Message) error {
	dropped, err := s.Enqueue(msg)
	if err != nil {
		b.metrics.RecordDrop(metrics.DropClosed)
		return err
	}
	if dropped {
		b.metrics.RecordDrop(metrics.DropQueueFull)
	}
	return nil
}

// Stats returns the number of connected sessions and non-empty rooms.
func (b *Broadcaster) Stats() Stats {
	b.mu.RLock()
	sessions := len(b.sessions)
	b.mu.RUnlock()

	return Stats{Sessions: sessions, Rooms: b.registry.Stats().Rooms}
}

func (b *Broadcaster) broadcast(projectID uuid.UUID, msg Message, exclude string) int {
	delivered := 0
	for _, sessionID := range b.registry.Members(projectID) {
		if sessionID == exclude {
			continue
		}
		if b.send(sessionID, msg) {
			delivered++
		}
	}
	return delivered
}

// send enqueues msg to one session. Failures are logged and counted, never retried.
func (b *Broadcaster) send(sessionID string, msg Message) bool {
	b.mu.RLock()
	s, ok := b.sessions[sessionID]
	b.mu.RUnlock()

	if !ok {
		b.metrics.RecordDrop(metrics.DropClosed)
		return false
	}

	if err := b.Send(s, msg); err != nil {
		if errors.Is(err, apperrors.ErrTransportUnavailable) {
			b.logger.Warn("dropping message for closed session",
				zap.String("session_id", sessionID),
				zap.String("type", msg.Type),
			)
		}
		return false
	}
	return true
}

func (b *Broadcaster) updateGauges() {
	st := b.Stats()
	b.metrics.SetRealtime(st.Sessions, st.Rooms)
}
