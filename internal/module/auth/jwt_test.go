package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/projecthub/server/internal/adapter/outbound/memory"
	"github.com/projecthub/server/internal/model"
	apperrors "github.com/projecthub/server/internal/shared/errors"
)

const testSecret = "test-secret-key-that-is-long-enough"

func newTestManager() *JWTManager {
	return NewJWTManager(&JWTConfig{
		Secret:            testSecret,
		AccessTokenExpiry: 15 * time.Minute,
		Issuer:            "test",
	})
}

func TestDefaultJWTConfig(t *testing.T) {
	config := DefaultJWTConfig()
	assert.Equal(t, 24*time.Hour, config.AccessTokenExpiry)
	assert.Equal(t, "projecthub", config.Issuer)
}

func TestJWTManager_RoundTrip(t *testing.T) {
	manager := newTestManager()
	user := &model.User{ID: uuid.New(), Role: model.UserRoleManager}

	token, expiresAt, err := manager.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.UserRoleManager, claims.Role)
	assert.Equal(t, user.ID.String(), claims.Subject)
}

func TestJWTManager_ValidateAccessToken_Rejects(t *testing.T) {
	manager := newTestManager()
	user := &model.User{ID: uuid.New(), Role: model.UserRoleMember}

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager(&JWTConfig{Secret: "another-secret-key-also-long", Issuer: "test"})
		token, _, err := other.GenerateAccessToken(user)
		require.NoError(t, err)

		_, err = manager.ValidateAccessToken(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTManager(&JWTConfig{Secret: testSecret, Issuer: "elsewhere"})
		token, _, err := other.GenerateAccessToken(user)
		require.NoError(t, err)

		_, err = manager.ValidateAccessToken(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("expired", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
			UserID: user.ID,
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = manager.ValidateAccessToken(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := manager.ValidateAccessToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestAuthenticator_Authenticate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	manager := newTestManager()
	authn := NewAuthenticator(manager, store.Users(), zap.NewNop())

	user := &model.User{Name: "Ada", Email: "ada@example.com", Role: model.UserRoleMember}
	require.NoError(t, store.Users().Insert(ctx, user))

	token, _, err := manager.GenerateAccessToken(user)
	require.NoError(t, err)

	t.Run("resolves principal", func(t *testing.T) {
		p, err := authn.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, p.ID)
		assert.Equal(t, model.UserRoleMember, p.Role)
	})

	t.Run("role is read from the stored user", func(t *testing.T) {
		stored, err := store.Users().FindByID(ctx, user.ID)
		require.NoError(t, err)
		stored.Role = model.UserRoleAdmin
		require.NoError(t, store.Users().UpdateByID(ctx, stored))

		p, err := authn.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.True(t, p.IsAdmin())
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := authn.Authenticate(ctx, "")
		assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	})

	t.Run("unknown user", func(t *testing.T) {
		ghost, _, err := manager.GenerateAccessToken(&model.User{ID: uuid.New()})
		require.NoError(t, err)

		_, err = authn.Authenticate(ctx, ghost)
		assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	})
}
