package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/server/internal/port/outbound"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/logger"
	"github.com/projecthub/server/internal/shared/metrics"
	"github.com/projecthub/server/internal/shared/response"
)

const (
	// RateLimitRemaining is the header for remaining requests.
	RateLimitRemaining = "X-RateLimit-Remaining"
	// RateLimitLimit is the header for the limit.
	RateLimitLimit = "X-RateLimit-Limit"
	// RateLimitReset is the header for reset time.
	RateLimitReset = "X-RateLimit-Reset"
	// RetryAfter is the header for retry time.
	RetryAfter = "Retry-After"
)

// RateLimitConfig holds rate limit configuration.
type RateLimitConfig struct {
	// Name labels the limiter in keys, metrics and logs.
	Name string
	// Limit is the maximum number of requests.
	Limit int
	// Window is the time window.
	Window time.Duration
	// Message is returned to rejected callers.
	Message string
	// KeyFunc generates the rate limit key from request.
	// Default uses the authenticated user, falling back to client IP.
	KeyFunc func(*gin.Context) string
	// Metrics records rejected requests. May be nil.
	Metrics *metrics.Metrics
}

// APIRateLimitConfig is the general limiter applied to every API route.
func APIRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Name:    "api",
		Limit:   limit,
		Window:  window,
		Message: "Too many requests from this user, please try again later.",
	}
}

// CreateRateLimitConfig is the stricter limiter applied to resource creation.
func CreateRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Name:    "create",
		Limit:   limit,
		Window:  window,
		Message: "Too many resources created, please try again later.",
	}
}

// RateLimit returns a middleware that limits requests using the given limiter.
// A nil limiter disables limiting. Limiter failures let the request through.
func RateLimit(limiter outbound.RateLimiterPort, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = userOrIPKey
	}

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := cfg.Name + ":" + cfg.KeyFunc(c)
		ctx := c.Request.Context()

		allowed, err := limiter.Allow(ctx, key, cfg.Limit, cfg.Window)
		if err != nil {
			logger.FromContext(ctx).Warn("rate limiter unavailable",
				"limiter", cfg.Name,
				logger.Err(err),
			)
			c.Next()
			return
		}

		remaining, _ := limiter.GetRemaining(ctx, key, cfg.Limit, cfg.Window)

		c.Header(RateLimitLimit, strconv.Itoa(cfg.Limit))
		c.Header(RateLimitRemaining, strconv.Itoa(remaining))
		c.Header(RateLimitReset, strconv.FormatInt(time.Now().Add(cfg.Window).Unix(), 10))

		if !allowed {
			cfg.Metrics.RecordRateLimited(cfg.Name)
			c.Header(RetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			response.Error(c, apperrors.RateLimited(cfg.Message))
			return
		}

		c.Next()
	}
}

// userOrIPKey keys by authenticated user, falling back to the client IP.
func userOrIPKey(c *gin.Context) string {
	if userID := GetUserID(c); userID != uuid.Nil {
		return "user:" + userID.String()
	}
	return "ip:" + c.ClientIP()
}
