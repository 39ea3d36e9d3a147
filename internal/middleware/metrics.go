package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/vidyalaya-api/internal/service"
)

// Metrics observes method/route/status/duration for every request. Routes are
// recorded by template (e.g. /students/:id) to keep label cardinality bounded.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
