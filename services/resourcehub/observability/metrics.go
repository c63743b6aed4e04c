// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and tracing for ResourceHub.
//
// # Description
//
// Metrics cover the HTTP surface (requests, latency, in-flight), domain
// activity (entities created, workflow transitions, audit events), the
// sweeper, the activity feed and request throttling. They are registered
// on a caller-supplied registry and exposed at /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every Record method is a no-op on a nil *Metrics.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "resourcehub"

const (
	httpSubsystem     = "http"
	domainSubsystem   = "domain"
	sweeperSubsystem  = "sweeper"
	activitySubsystem = "activity"
)

// Metrics holds all Prometheus collectors of the service.
type Metrics struct {
	// HTTPRequestsTotal counts requests. Labels: method, route, status.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration measures handler latency. Labels: method, route.
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPInFlight is the number of requests being served.
	HTTPInFlight prometheus.Gauge

	// RateLimitedTotal counts requests rejected with 429.
	RateLimitedTotal prometheus.Counter

	// AuthFailuresTotal counts rejected requests. Labels: reason
	// (unauthenticated, forbidden).
	AuthFailuresTotal *prometheus.CounterVec

	// EntitiesCreatedTotal counts created rows. Labels: resource_type.
	EntitiesCreatedTotal *prometheus.CounterVec

	// TransitionsTotal counts workflow actions. Labels: action, outcome.
	TransitionsTotal *prometheus.CounterVec

	// AuditEventsTotal counts recorded audit events. Labels: event_type,
	// outcome.
	AuditEventsTotal *prometheus.CounterVec

	// AuditWriteErrorsTotal counts audit events that failed to persist.
	AuditWriteErrorsTotal prometheus.Counter

	// SweeperRunsTotal counts sweeper cycles. Labels: result (ok, error).
	SweeperRunsTotal *prometheus.CounterVec

	// MilestonesMissedTotal counts milestones marked missed by the sweeper.
	MilestonesMissedTotal prometheus.Counter

	// AuditPurgedTotal counts audit rows removed by retention.
	AuditPurgedTotal prometheus.Counter

	// ActivityDroppedTotal counts slow activity subscribers that were cut.
	ActivityDroppedTotal prometheus.Counter
}

// NewMetrics creates and registers every collector on reg.
//
// # Inputs
//
//   - reg: Registry to register on. Use a fresh prometheus.NewRegistry()
//     per server so tests can build several instances.
//
// # Limitations
//
//   - Panics if the same registry is used twice (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),

		HTTPInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),

		RateLimitedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "rate_limited_total",
				Help:      "Total requests rejected by the rate limiter",
			},
		),

		AuthFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "auth_failures_total",
				Help:      "Total requests rejected by authentication or authorization",
			},
			[]string{"reason"},
		),

		EntitiesCreatedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: domainSubsystem,
				Name:      "entities_created_total",
				Help:      "Total entities created by resource type",
			},
			[]string{"resource_type"},
		),

		TransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: domainSubsystem,
				Name:      "request_transitions_total",
				Help:      "Total resource request workflow actions by action and outcome",
			},
			[]string{"action", "outcome"},
		),

		AuditEventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: domainSubsystem,
				Name:      "audit_events_total",
				Help:      "Total audit events recorded by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),

		AuditWriteErrorsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: domainSubsystem,
				Name:      "audit_write_errors_total",
				Help:      "Total audit events that could not be persisted",
			},
		),

		SweeperRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sweeperSubsystem,
				Name:      "runs_total",
				Help:      "Total sweeper cycles by result",
			},
			[]string{"result"},
		),

		MilestonesMissedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sweeperSubsystem,
				Name:      "milestones_missed_total",
				Help:      "Total milestones marked missed",
			},
		),

		AuditPurgedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sweeperSubsystem,
				Name:      "audit_purged_total",
				Help:      "Total audit entries removed by retention",
			},
		),

		ActivityDroppedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: activitySubsystem,
				Name:      "dropped_subscribers_total",
				Help:      "Total activity feed subscribers dropped for falling behind",
			},
		),
	}
}

// RegisterActivitySubscribers exposes a gauge backed by count, usually the
// activity hub's Len.
func (m *Metrics) RegisterActivitySubscribers(reg prometheus.Registerer, count func() int) {
	promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: activitySubsystem,
			Name:      "subscribers",
			Help:      "Number of connected activity feed subscribers",
		},
		func() float64 { return float64(count()) },
	)
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordHTTPRequest records a finished request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RequestStarted increments the in-flight gauge.
func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.HTTPInFlight.Inc()
}

// RequestFinished decrements the in-flight gauge.
func (m *Metrics) RequestFinished() {
	if m == nil {
		return
	}
	m.HTTPInFlight.Dec()
}

// RecordRateLimited counts a throttled request.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

// RecordAuthFailure counts a rejected request by reason.
func (m *Metrics) RecordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordCreated counts a created entity.
func (m *Metrics) RecordCreated(resourceType string) {
	if m == nil {
		return
	}
	m.EntitiesCreatedTotal.WithLabelValues(resourceType).Inc()
}

// RecordTransition counts a workflow action.
func (m *Metrics) RecordTransition(action string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "rejected"
	}
	m.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordAuditEvent counts a persisted audit event.
func (m *Metrics) RecordAuditEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.AuditEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordAuditWriteError counts an audit event that failed to persist.
func (m *Metrics) RecordAuditWriteError() {
	if m == nil {
		return
	}
	m.AuditWriteErrorsTotal.Inc()
}

// RecordSweep records one sweeper cycle.
func (m *Metrics) RecordSweep(missed int, purged int64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SweeperRunsTotal.WithLabelValues(result).Inc()
	m.MilestonesMissedTotal.Add(float64(missed))
	m.AuditPurgedTotal.Add(float64(purged))
}

// RecordActivityDrop counts a dropped activity subscriber.
func (m *Metrics) RecordActivityDrop() {
	if m == nil {
		return
	}
	m.ActivityDroppedTotal.Inc()
}
