package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	uniflowRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uniflow_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	uniflowRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uniflow_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	uniflowSignupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uniflow_signups_total",
		Help: "Total successful account signups.",
	})

	uniflowSigninsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uniflow_signins_total",
		Help: "Total signin attempts by result.",
	}, []string{"result"})

	uniflowOAuthLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uniflow_oauth_logins_total",
		Help: "Total OAuth logins by result.",
	}, []string{"result"})

	uniflowHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uniflow_health_checks_total",
		Help: "Total health check probes by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		uniflowRequestsTotal.WithLabelValues(method, path, status).Inc()
		uniflowRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordSignup records a successful signup.
func RecordSignup() {
	uniflowSignupsTotal.Inc()
}

// RecordSignin records a signin attempt.
func RecordSignin(success bool) {
	uniflowSigninsTotal.WithLabelValues(result(success)).Inc()
}

// RecordOAuthLogin records an OAuth login attempt.
func RecordOAuthLogin(success bool) {
	uniflowOAuthLoginsTotal.WithLabelValues(result(success)).Inc()
}

// RecordHealthCheck records a health check probe result.
func RecordHealthCheck(success bool) {
	uniflowHealthChecksTotal.WithLabelValues(result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
