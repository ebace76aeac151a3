package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/logger"
	"github.com/projecthub/server/internal/shared/response"
)

// Recovery returns a middleware that recovers from panics.
// If log is nil, it will use a default logger.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.New(nil)
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"client_ip", c.ClientIP(),
					"stack", string(debug.Stack()),
				)
				response.Error(c, apperrors.Internal("internal server error", nil))
			}
		}()
		c.Next()
	}
}
