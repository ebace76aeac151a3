package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig returns the default CORS configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{
			"Content-Length", RequestIDHeader,
			RateLimitLimit, RateLimitRemaining, RateLimitReset, RetryAfter,
		},
		MaxAge: 12 * time.Hour,
	}
}

// CORS returns a CORS middleware with the given configuration. An empty
// origin list allows every origin.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		ExposeHeaders:    cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if len(c.AllowOrigins) == 0 || (len(c.AllowOrigins) == 1 && c.AllowOrigins[0] == "*") {
		c.AllowOrigins = nil
		c.AllowAllOrigins = true
	}
	return cors.New(c)
}
