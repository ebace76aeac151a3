// Package memory implements the entity store in process memory. It backs tests
// and single-node development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
	"github.com/projecthub/server/internal/port/outbound"
	apperrors "github.com/projecthub/server/internal/shared/errors"
)

// Collection is a mutex-guarded map of records. Reads and writes exchange
// copies so callers never share memory with the store.
type Collection[T model.Document] struct {
	mu       sync.RWMutex
	resource string
	docs     map[uuid.UUID]T
	order    []uuid.UUID
	clone    func(T) T
	now      func() time.Time
}

// NewCollection creates an empty collection. clone must return a deep copy.
func NewCollection[T model.Document](resource string, clone func(T) T) *Collection[T] {
	return &Collection[T]{
		resource: resource,
		docs:     make(map[uuid.UUID]T),
		clone:    clone,
		now:      time.Now,
	}
}

func (c *Collection[T]) FindByID(_ context.Context, id uuid.UUID) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		var zero T
		return zero, apperrors.NotFound(c.resource)
	}
	return c.clone(doc), nil
}

func (c *Collection[T]) Find(_ context.Context, pred query.Predicate) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0)
	for i := len(c.order) - 1; i >= 0; i-- {
		doc := c.docs[c.order[i]]
		if query.Match(pred, doc) {
			out = append(out, c.clone(doc))
		}
	}
	return out, nil
}

func (c *Collection[T]) Insert(_ context.Context, doc T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	model.PrepareInsert(doc, c.now().UTC())
	if _, exists := c.docs[doc.GetID()]; exists {
		return apperrors.Conflict(c.resource + " already exists")
	}
	c.docs[doc.GetID()] = c.clone(doc)
	c.order = append(c.order, doc.GetID())
	return nil
}

func (c *Collection[T]) UpdateByID(_ context.Context, doc T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok := c.docs[doc.GetID()]
	if !ok {
		return apperrors.NotFound(c.resource)
	}
	if stored.GetVersion() != doc.GetVersion() {
		return apperrors.Conflict(c.resource + " was modified concurrently")
	}

	doc.SetVersion(doc.GetVersion() + 1)
	doc.Touch(c.now().UTC())
	c.docs[doc.GetID()] = c.clone(doc)
	return nil
}

func (c *Collection[T]) DeleteByID(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return apperrors.NotFound(c.resource)
	}
	c.remove(id)
	return nil
}

func (c *Collection[T]) DeleteMany(_ context.Context, pred query.Predicate) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for id, doc := range c.docs {
		if query.Match(pred, doc) {
			c.remove(id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// remove must be called with mu held.
func (c *Collection[T]) remove(id uuid.UUID) {
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Store is an in-memory EntityStore.
type Store struct {
	users    *Collection[*model.User]
	projects *Collection[*model.Project]
	tasks    *Collection[*model.Task]
}

var _ outbound.EntityStore = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:    NewCollection("user", (*model.User).Clone),
		projects: NewCollection("project", (*model.Project).Clone),
		tasks:    NewCollection("task", (*model.Task).Clone),
	}
}

func (s *Store) Users() outbound.Collection[*model.User]       { return s.users }
func (s *Store) Projects() outbound.Collection[*model.Project] { return s.projects }
func (s *Store) Tasks() outbound.Collection[*model.Task]       { return s.tasks }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
