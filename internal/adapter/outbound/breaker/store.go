// Package breaker guards an entity store with a circuit breaker so a failing
// backend is rejected fast instead of piling up slow requests.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
	"github.com/projecthub/server/internal/port/outbound"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/metrics"
)

// Settings configures the breaker.
type Settings struct {
	Name             string
	FailureThreshold uint32
	Timeout          time.Duration
	HalfOpenRequests uint32
}

// DefaultSettings returns the default breaker settings.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// isSuccessful treats domain outcomes as healthy responses. Only infrastructure
// failures count towards tripping the breaker.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrConflict) ||
		errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, context.Canceled)
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func execute[R any](cb *gobreaker.CircuitBreaker[any], fn func() (R, error)) (R, error) {
	res, err := cb.Execute(func() (any, error) {
		r, err := fn()
		return r, err
	})
	if err != nil {
		var zero R
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperrors.StoreUnavailable(err)
		}
		return zero, err
	}
	return res.(R), nil
}

// Collection wraps a collection with the store's breaker.
type Collection[T model.Document] struct {
	next     outbound.Collection[T]
	cb       *gobreaker.CircuitBreaker[any]
	resource string
	metrics  *metrics.Metrics
}

func (c *Collection[T]) conflict(err error) error {
	if errors.Is(err, apperrors.ErrConflict) {
		c.metrics.RecordStoreConflict(c.resource)
	}
	return err
}

func (c *Collection[T]) FindByID(ctx context.Context, id uuid.UUID) (T, error) {
	return execute(c.cb, func() (T, error) { return c.next.FindByID(ctx, id) })
}

func (c *Collection[T]) Find(ctx context.Context, pred query.Predicate) ([]T, error) {
	return execute(c.cb, func() ([]T, error) { return c.next.Find(ctx, pred) })
}

func (c *Collection[T]) Insert(ctx context.Context, doc T) error {
	_, err := execute(c.cb, func() (struct{}, error) { return struct{}{}, c.next.Insert(ctx, doc) })
	return c.conflict(err)
}

func (c *Collection[T]) UpdateByID(ctx context.Context, doc T) error {
	_, err := execute(c.cb, func() (struct{}, error) { return struct{}{}, c.next.UpdateByID(ctx, doc) })
	return c.conflict(err)
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := execute(c.cb, func() (struct{}, error) { return struct{}{}, c.next.DeleteByID(ctx, id) })
	return err
}

func (c *Collection[T]) DeleteMany(ctx context.Context, pred query.Predicate) (int64, error) {
	return execute(c.cb, func() (int64, error) { return c.next.DeleteMany(ctx, pred) })
}

// Store decorates an EntityStore. All collections share one breaker because
// they share one backend.
type Store struct {
	next     outbound.EntityStore
	cb       *gobreaker.CircuitBreaker[any]
	users    *Collection[*model.User]
	projects *Collection[*model.Project]
	tasks    *Collection[*model.Task]
}

var _ outbound.EntityStore = (*Store)(nil)

// Wrap returns next guarded by a circuit breaker.
func Wrap(next outbound.EntityStore, s Settings, logger *zap.Logger, m *metrics.Metrics) *Store {
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Interval:    60 * time.Second,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store breaker state changed",
				zap.String("store", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			m.SetBreakerState(name, stateValue(to))
		},
	})
	m.SetBreakerState(s.Name, stateValue(cb.State()))

	return &Store{
		next:     next,
		cb:       cb,
		users:    &Collection[*model.User]{next: next.Users(), cb: cb, resource: "user", metrics: m},
		projects: &Collection[*model.Project]{next: next.Projects(), cb: cb, resource: "project", metrics: m},
		tasks:    &Collection[*model.Task]{next: next.Tasks(), cb: cb, resource: "task", metrics: m},
	}
}

func (s *Store) Users() outbound.Collection[*model.User]       { return s.users }
func (s *Store) Projects() outbound.Collection[*model.Project] { return s.projects }
func (s *Store) Tasks() outbound.Collection[*model.Task]       { return s.tasks }

// Ping bypasses the breaker so health checks observe the real backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// State returns the current breaker state.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}
