package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sheriapal/sheriapal-api/internal/service"
)

// Metrics observes method, route, status and latency for every request.
// Unregistered routes fall back to the raw URL path so 404s still show
// up, at the cost of unbounded label cardinality for those.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
