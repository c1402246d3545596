package middleware

import (
	"strconv"
	"time"

	"assessment-backend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// RequestMetrics records request durations by route template, so ids do not explode label cardinality.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.APIRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
