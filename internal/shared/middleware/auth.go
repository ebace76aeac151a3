package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/shared/response"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// PrincipalKey is the context key for the authenticated principal.
	PrincipalKey = "principal"
	// UserIDKey is the context key for the principal's user ID.
	UserIDKey = "user_id"
)

// Authenticator resolves a bearer token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Principal, error)
}

// Auth returns a middleware that requires a valid bearer token and stores the
// resulting principal in the context.
func Auth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := authn.Authenticate(c.Request.Context(), extractBearerToken(c))
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set(UserIDKey, principal.ID)
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	}
	return ""
}

// GetPrincipal returns the principal set by Auth.
func GetPrincipal(c *gin.Context) (model.Principal, bool) {
	if val, exists := c.Get(PrincipalKey); exists {
		if p, ok := val.(model.Principal); ok {
			return p, true
		}
	}
	return model.Principal{}, false
}

// GetUserID returns the user ID from context.
// Returns uuid.Nil if not found.
func GetUserID(c *gin.Context) uuid.UUID {
	if val, exists := c.Get(UserIDKey); exists {
		if userID, ok := val.(uuid.UUID); ok {
			return userID
		}
	}
	return uuid.Nil
}
