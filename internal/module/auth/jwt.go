package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTokenClaims = errors.New("invalid token claims")
)

// Claims represents JWT token claims. The role claim is informational; the
// authoritative role is read from the user record on every request.
type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID      `json:"user_id"`
	Role   model.UserRole `json:"role,omitempty"`
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		AccessTokenExpiry: 24 * time.Hour,
		Issuer:            "projecthub",
	}
}

// JWTManager handles JWT token operations.
type JWTManager struct {
	config *JWTConfig
}

// NewJWTManager creates a new JWT manager.
func NewJWTManager(config *JWTConfig) *JWTManager {
	if config == nil {
		config = DefaultJWTConfig()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = DefaultJWTConfig().AccessTokenExpiry
	}
	return &JWTManager{config: config}
}

// GenerateAccessToken signs an access token for user.
func (m *JWTManager) GenerateAccessToken(user *model.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.config.AccessTokenExpiry)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		UserID: user.ID,
		Role:   user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// ValidateAccessToken validates an access token and returns the claims.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidTokenClaims
	}

	return claims, nil
}
