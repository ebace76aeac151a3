// Package user serves the read-only user directory used to pick team members.
package user

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/access"
	"github.com/projecthub/server/internal/module/query"
	"github.com/projecthub/server/internal/port/outbound"
)

// Service provides user lookups.
type Service struct {
	store  outbound.EntityStore
	logger *zap.Logger
}

// NewService creates a new user service.
func NewService(store outbound.EntityStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// List returns the users matching f. Only admins and managers may list.
func (s *Service) List(ctx context.Context, p model.Principal, f query.UserFilter) ([]*model.User, error) {
	if err := access.AuthorizeListUsers(p); err != nil {
		s.logger.Debug("user listing denied",
			zap.String("user_id", p.ID.String()),
			zap.String("role", string(p.Role)),
		)
		return nil, err
	}
	return s.store.Users().Find(ctx, query.UserPredicate(f))
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.store.Users().FindByID(ctx, id)
}

// Me returns the account behind p.
func (s *Service) Me(ctx context.Context, p model.Principal) (*model.User, error) {
	return s.Get(ctx, p.ID)
}
