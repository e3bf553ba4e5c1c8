// Package metrics provides Prometheus instrumentation for Parley.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResendDecisions counts auto-resend decision evaluations
	ResendDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_resend_decisions_total",
			Help: "Total number of auto-resend decision evaluations",
		},
		[]string{"decider", "decision"},
	)

	// ApprovalDispatches counts approval decision dispatches
	ApprovalDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_approval_dispatches_total",
			Help: "Total number of approval decision dispatches",
		},
		[]string{"mode", "status"},
	)

	// FramesSent counts outgoing persistent-stream frames
	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_frames_sent_total",
			Help: "Total number of frames sent on the persistent stream",
		},
		[]string{"frame_type"},
	)

	// TurnsDropped counts turns dropped by history truncation
	TurnsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_turns_dropped_total",
			Help: "Total number of turns dropped by outgoing history truncation",
		},
	)

	// PayloadBytes tracks outgoing payload sizes
	PayloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_payload_bytes",
			Help:    "Size of outgoing payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"transport"},
	)

	// ConnectionsOpen tracks open persistent-stream connections
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_connections_open",
			Help: "Number of open persistent-stream connections",
		},
	)

	// EventsReceived counts incoming wire events by type
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_events_received_total",
			Help: "Total number of incoming wire events",
		},
		[]string{"event_type"},
	)

	// TurnsPruned counts turns removed by history retention sweeps
	TurnsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_turns_pruned_total",
			Help: "Total number of turns pruned from the history store",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordResendDecision records one auto-resend decision evaluation.
func RecordResendDecision(decider string, decision bool) {
	outcome := "false"
	if decision {
		outcome = "true"
	}
	ResendDecisions.WithLabelValues(decider, outcome).Inc()
}

// RecordDispatch records an approval dispatch attempt.
func RecordDispatch(mode, status string) {
	ApprovalDispatches.WithLabelValues(mode, status).Inc()
}

// RecordFrame records an outgoing persistent-stream frame.
func RecordFrame(frameType string) {
	FramesSent.WithLabelValues(frameType).Inc()
}

// RecordTruncation records turns dropped by history truncation.
func RecordTruncation(dropped int) {
	TurnsDropped.Add(float64(dropped))
}

// RecordPayload records an outgoing payload size.
func RecordPayload(transport string, bytes int) {
	PayloadBytes.WithLabelValues(transport).Observe(float64(bytes))
}

// RecordEvent records an incoming wire event.
func RecordEvent(eventType string) {
	EventsReceived.WithLabelValues(eventType).Inc()
}

// RecordPrune records turns removed by a retention sweep.
func RecordPrune(count int64) {
	TurnsPruned.Add(float64(count))
}
