// Package metrics exposes Prometheus counters for the appointment workflows.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics is safe to use as a nil pointer; every method is a no-op then.
type WorkflowMetrics struct {
	bookings   *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	narrations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "workflow",
			Name:      "bookings_total",
			Help:      "Booking and reschedule attempts by outcome",
		}, []string{"workflow", "outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "workflow",
			Name:      "conflicts_total",
			Help:      "Proposed times that collided with an existing appointment",
		}, []string{"workflow"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "workflow",
			Name:      "doctor_decisions_total",
			Help:      "Doctor confirm/reject decisions by outcome",
		}, []string{"action", "outcome"}),
		narrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "workflow",
			Name:      "narrations_total",
			Help:      "Rendered workflow narratives by source",
		}, []string{"source"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "workflow",
			Name:      "duration_seconds",
			Help:      "End-to-end workflow latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.conflicts, m.decisions, m.narrations, m.duration)
	return m
}

func (m *WorkflowMetrics) ObserveBooking(workflow, outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(workflow, outcome).Inc()
}

func (m *WorkflowMetrics) ObserveConflict(workflow string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(workflow).Inc()
}

func (m *WorkflowMetrics) ObserveDecision(action, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(action, outcome).Inc()
}

func (m *WorkflowMetrics) ObserveNarration(source string) {
	if m == nil {
		return
	}
	m.narrations.WithLabelValues(source).Inc()
}

func (m *WorkflowMetrics) ObserveDuration(workflow string, started time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(workflow).Observe(time.Since(started).Seconds())
}
