package outbound

import (
	"context"

	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
)

// Collection is a typed view over one kind of stored record.
type Collection[T model.Document] interface {
	// FindByID returns the record or an ErrNotFound error.
	FindByID(ctx context.Context, id uuid.UUID) (T, error)

	// Find returns every record matching pred, newest first.
	Find(ctx context.Context, pred query.Predicate) ([]T, error)

	// Insert stores a new record. A missing id is generated and the version starts at 1.
	Insert(ctx context.Context, doc T) error

	// UpdateByID replaces the stored record if its version still equals doc's version.
	// On success doc's version is incremented. A stale version fails with ErrConflict.
	UpdateByID(ctx context.Context, doc T) error

	// DeleteByID removes the record or returns an ErrNotFound error.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// DeleteMany removes every record matching pred and returns the count removed.
	DeleteMany(ctx context.Context, pred query.Predicate) (int64, error)
}

// EntityStore groups the collections backing the service.
type EntityStore interface {
	Users() Collection[*model.User]
	Projects() Collection[*model.Project]
	Tasks() Collection[*model.Task]

	// Ping checks connectivity with the backing store.
	Ping(ctx context.Context) error
}
