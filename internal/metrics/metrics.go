//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package metrics provides Prometheus instrumentation for the sentinel.
package metrics

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel"

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status class.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DecisionsTotal counts per-user admission outcomes.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Total per-user access decisions by status and source.",
		},
		[]string{"status", "source"}, // granted|denied, real|synthetic
	)

	// ScoreUpdatesTotal counts ledger updates by reason.
	ScoreUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "score_updates_total",
			Help:      "Total risk score updates by reason.",
		},
		[]string{"reason"},
	)

	// TrapHitsTotal counts detected decoy reuse.
	TrapHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "traps",
		Name:      "hits_total",
		Help:      "Total payloads in which a registered decoy value was found.",
	})

	// TrapsInjectedTotal counts registered decoys by type.
	TrapsInjectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traps",
			Name:      "injected_total",
			Help:      "Total decoy values registered by trap type.",
		},
		[]string{"type"},
	)

	// DeceptionActivationsTotal counts partners switched into deception mode.
	DeceptionActivationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "deception_activations_total",
		Help:      "Total partners switched into deception mode.",
	})

	// RestrictionsTotal counts (partner, user) blocks by origin.
	RestrictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restriction",
			Name:      "added_total",
			Help:      "Total (partner, user) restrictions added by origin.",
		},
		[]string{"origin"}, // auto, admin, user
	)

	// NotificationsTotal counts user notifications by level.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total user notifications by level.",
		},
		[]string{"level"},
	)

	// SyntheticLatency observes the simulated retrieval delay of synthetic records.
	SyntheticLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "deception",
		Name:      "latency_seconds",
		Help:      "Simulated retrieval delay of synthetic records in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DecisionsTotal,
		ScoreUpdatesTotal,
		TrapHitsTotal,
		TrapsInjectedTotal,
		DeceptionActivationsTotal,
		RestrictionsTotal,
		NotificationsTotal,
		SyntheticLatency,
	)
}

// Middleware returns an echo middleware that records request metrics.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// route pattern, not the raw path, to bound cardinality
			path := c.Path()
			timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(c.Request().Method, path))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			timer.ObserveDuration()
			HTTPRequestsTotal.WithLabelValues(
				c.Request().Method,
				path,
				statusBucket(c.Response().Status),
			).Inc()
			return nil
		}
	}
}

// Handler returns the Prometheus exposition handler for the /metrics route.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

func statusBucket(code int) string {
	switch {
	case code < 100 || code > 599:
		return strconv.Itoa(code)
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
