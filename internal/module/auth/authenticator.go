package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/port/outbound"
	apperrors "github.com/projecthub/server/internal/shared/errors"
)

// Authenticator resolves a bearer token into the principal making the request.
type Authenticator struct {
	jwt    *JWTManager
	users  outbound.Collection[*model.User]
	logger *zap.Logger
}

// NewAuthenticator creates a new authenticator.
func NewAuthenticator(jwt *JWTManager, users outbound.Collection[*model.User], logger *zap.Logger) *Authenticator {
	return &Authenticator{
		jwt:    jwt,
		users:  users,
		logger: logger,
	}
}

// Authenticate validates token and loads the user it names. The role comes from
// the stored user so role changes apply without reissuing tokens.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, apperrors.Unauthorized("missing token")
	}

	claims, err := a.jwt.ValidateAccessToken(token)
	if err != nil {
		a.logger.Debug("token rejected", zap.Error(err))
		return model.Principal{}, apperrors.Unauthorized("invalid or expired token")
	}

	user, err := a.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return model.Principal{}, apperrors.Unauthorized("user no longer exists")
		}
		return model.Principal{}, err
	}

	return user.Principal(), nil
}
