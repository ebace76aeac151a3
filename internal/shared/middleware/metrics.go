package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/server/internal/shared/metrics"
)

// Metrics returns a middleware that records HTTP metrics.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		path := c.FullPath() // route pattern keeps label cardinality bounded
		if path == "" {
			path = "unmatched"
		}

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
