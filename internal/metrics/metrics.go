// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics provides Prometheus metrics for the publish workflow and
// the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkflowTransitions counts publish workflow states reached.
	WorkflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proofpress",
			Name:      "workflow_transitions_total",
			Help:      "Total number of publish workflow states reached",
		},
		[]string{"state"},
	)

	// UpstreamDuration measures calls to the storage network and the ledger.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "proofpress",
			Name:      "upstream_duration_seconds",
			Help:      "Duration of upstream calls in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"upstream", "outcome"},
	)

	// DocumentCacheLookups counts metadata document lookups by tier.
	DocumentCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proofpress",
			Name:      "document_cache_lookups_total",
			Help:      "Metadata document lookups by serving tier",
		},
		[]string{"tier"},
	)

	// HTTPRequests counts API requests by route pattern and status class.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proofpress",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proofpress",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter",
		},
	)
)

// RecordTransition records that an article reached state.
func RecordTransition(state string) {
	WorkflowTransitions.WithLabelValues(state).Inc()
}

// ObserveUpstream records the duration and outcome of an upstream call
// that started at start.
func ObserveUpstream(upstream string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamDuration.WithLabelValues(upstream, outcome).Observe(time.Since(start).Seconds())
}

// RecordCacheLookup records which tier served a document.
func RecordCacheLookup(tier string) {
	DocumentCacheLookups.WithLabelValues(tier).Inc()
}
