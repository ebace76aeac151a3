package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
	apperrors "github.com/projecthub/server/internal/shared/errors"
)

// Session is one connected client. Outbound messages go through a bounded ring
// queue; when it is full the oldest message is discarded so a slow client
// never blocks publishers.
type Session struct {
	ID        string
	Principal model.Principal

	mu     sync.Mutex
	buf    []Message
	head   int
	size   int
	closed bool

	notify chan struct{}
	done   chan struct{}
}

func newSession(p model.Principal, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Session{
		ID:        uuid.NewString(),
		Principal: p,
		buf:       make([]Message, queueSize),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Enqueue adds msg to the outbound queue. It reports whether an older message
// was dropped to make room. A closed session returns ErrTransportUnavailable.
func (s *Session) Enqueue(msg Message) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, apperrors.TransportUnavailable(s.ID)
	}

	dropped := false
	if s.size == len(s.buf) {
		s.buf[s.head] = Message{}
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		dropped = true
	}
	s.buf[(s.head+s.size)%len(s.buf)] = msg
	s.size++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped, nil
}

// Drain removes and returns every queued message in enqueue order.
func (s *Session) Drain() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == 0 {
		return nil
	}
	out := make([]Message, s.size)
	for i := 0; i < s.size; i++ {
		idx := (s.head + i) % len(s.buf)
		out[i] = s.buf[idx]
		s.buf[idx] = Message{}
	}
	s.head, s.size = 0, 0
	return out
}

// Len returns the number of queued messages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Notify is signalled after each enqueue.
func (s *Session) Notify() <-chan struct{} {
	return s.notify
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close marks the session closed. Only the first call returns true.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	close(s.done)
	return true
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
