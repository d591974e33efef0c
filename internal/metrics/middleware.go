package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpRequestsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Number of HTTP requests partitioned by status code, method and HTTP path.",
	},
	[]string{"code", "method", "path"},
)

var httpLatencyMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Time spent on the request partitioned by status code, method and HTTP path.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"code", "method", "path"},
)

// Middleware records request counts and latency by route pattern.
// Unmatched routes are recorded under "unmatched" to keep label cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		code := strconv.Itoa(c.Writer.Status())
		httpRequestsMetric.WithLabelValues(code, c.Request.Method, path).Inc()
		httpLatencyMetric.WithLabelValues(code, c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
