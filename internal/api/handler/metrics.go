package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/extperm/internal/audit"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/jmerrifield20/extperm/internal/risk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	extpermExtensions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "extperm_extensions",
		Help: "Extensions in the most recent audit by risk tier.",
	}, []string{"tier"})

	extpermRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extperm_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	extpermRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "extperm_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	extpermInventoryFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extperm_inventory_fetch_total",
		Help: "Inventory fetches by result.",
	}, []string{"result"})

	extpermUpstreamProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "extperm_upstream_probes_total",
		Help: "Inventory host health probes by result.",
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

		extpermRequestsTotal.WithLabelValues(method, path, status).Inc()
		extpermRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordReport is an audit.ReportHook that updates the tier gauge and the
// inventory fetch counter. A failed fetch leaves the gauge untouched.
func RecordReport(r *audit.Report, fetchErr error) {
	switch {
	case fetchErr == nil:
		extpermInventoryFetchTotal.WithLabelValues("success").Inc()
	case errors.Is(fetchErr, inventory.ErrCapabilityUnavailable):
		extpermInventoryFetchTotal.WithLabelValues("unavailable").Inc()
		return
	default:
		extpermInventoryFetchTotal.WithLabelValues("error").Inc()
		return
	}
	for _, t := range risk.Tiers() {
		extpermExtensions.WithLabelValues(strings.ToLower(t.String())).Set(float64(r.Summary.Count(t)))
	}
}

// RecordUpstreamProbe records an inventory host health probe result.
func RecordUpstreamProbe(success bool) {
	if success {
		extpermUpstreamProbesTotal.WithLabelValues("success").Inc()
	} else {
		extpermUpstreamProbesTotal.WithLabelValues("failure").Inc()
	}
}
