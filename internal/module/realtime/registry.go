package realtime

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks which sessions are subscribed to which project rooms.
// Both directions are kept under one mutex so they never disagree. A closed
// room stays closed: later joins for that project are refused.
type Registry struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]map[string]struct{}
	sessions map[string]map[uuid.UUID]struct{}
	closed   map[uuid.UUID]struct{}
}

// ErrRoomClosed is returned when joining a room whose project was deleted.
var ErrRoomClosed = errors.New("room closed")

// Stats is a snapshot of registry sizes.
type Stats struct {
	Sessions int `json:"sessions"`
	Rooms    int `json:"rooms"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[uuid.UUID]map[string]struct{}),
		sessions: make(map[string]map[uuid.UUID]struct{}),
		closed:   make(map[uuid.UUID]struct{}),
	}
}

// Join subscribes sessionID to projectID. It reports whether the subscription
// is new and fails with ErrRoomClosed once the room has been closed.
func (r *Registry) Join(sessionID string, projectID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.closed[projectID]; ok {
		return false, ErrRoomClosed
	}

	members, ok := r.rooms[projectID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[projectID] = members
	}
	if _, exists := members[sessionID]; exists {
		return false, nil
	}
	members[sessionID] = struct{}{}

	joined, ok := r.sessions[sessionID]
	if !ok {
		joined = make(map[uuid.UUID]struct{})
		r.sessions[sessionID] = joined
	}
	joined[projectID] = struct{}{}
	return true, nil
}

// Leave unsubscribes sessionID from projectID. It reports whether a subscription was removed.
func (r *Registry) Leave(sessionID string, projectID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[projectID]
	if !ok {
		return false
	}
	if _, exists := members[sessionID]; !exists {
		return false
	}
	r.unlink(sessionID, projectID)
	return true
}

// DropSession removes sessionID from every room and returns the rooms it had joined.
func (r *Registry) DropSession(sessionID string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.sessions[sessionID]
	left := make([]uuid.UUID, 0, len(joined))
	for projectID := range joined {
		left = append(left, projectID)
	}
	for _, projectID := range left {
		r.unlink(sessionID, projectID)
	}
	delete(r.sessions, sessionID)
	return left
}

// CloseRoom removes every subscription to projectID, marks the room closed and
// returns the affected sessions.
func (r *Registry) CloseRoom(projectID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed[projectID] = struct{}{}

	members := r.rooms[projectID]
	removed := make([]string, 0, len(members))
	for sessionID := range members {
		removed = append(removed, sessionID)
	}
	for _, sessionID := range removed {
		r.unlink(sessionID, projectID)
	}
	delete(r.rooms, projectID)
	return removed
}

// Members returns a snapshot of the sessions subscribed to projectID.
func (r *Registry) Members(projectID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[projectID]
	out := make([]string, 0, len(members))
	for sessionID := range members {
		out = append(out, sessionID)
	}
	return out
}

// Rooms returns a snapshot of the rooms sessionID has joined.
func (r *Registry) Rooms(sessionID string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.sessions[sessionID]
	out := make([]uuid.UUID, 0, len(joined))
	for projectID := range joined {
		out = append(out, projectID)
	}
	return out
}

// IsMember reports whether sessionID is subscribed to projectID.
func (r *Registry) IsMember(sessionID string, projectID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.rooms[projectID][sessionID]
	return ok
}

// Stats returns the number of sessions with at least one room and the number of non-empty rooms.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Sessions: len(r.sessions), Rooms: len(r.rooms)}
}

// unlink removes one edge from both indices and prunes empty sets. mu must be held.
func (r *Registry) unlink(sessionID string, projectID uuid.UUID) {
	if members, ok := r.rooms[projectID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, projectID)
		}
	}
	if joined, ok := r.sessions[sessionID]; ok {
		delete(joined, projectID)
		if len(joined) == 0 {
			delete(r.sessions, sessionID)
		}
	}
}
