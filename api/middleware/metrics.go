package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/doctagger/doctagger/internal/observability/metrics"
)

// Metrics counts every request by method, route and status code.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}
