// Package metrics exposes Prometheus instrumentation for the emergency core.
// Construct once in the composition root; services take a possibly-nil
// pointer so tests don't fight over the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the emergency core's Prometheus collectors.
type Metrics struct {
	BlocksProcessed   prometheus.Counter
	RemarksDecoded    prometheus.Counter
	DecodesFailed     prometheus.Counter
	DuplicatesDropped prometheus.Counter
	Reconnects        prometheus.Counter
	ListenerListening prometheus.Gauge

	ReportsCreated   prometheus.Counter
	ReportsSubmitted prometheus.Counter
	SubmitFailures   prometheus.Counter
	SubmitDuration   prometheus.Histogram
}

// New registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		BlocksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailguard_blocks_processed_total",
			Help: "Finalized blocks scanned for emergency remarks",
		}),
		RemarksDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailguard_remarks_decoded_total",
			Help: "Remark records successfully decoded into emergencies",
		}),
		DecodesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailguard_remark_decode_failures_total",
			Help: "Ledger events that did not decode as emergency remarks",
		}),
		DuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailguard_duplicate_events_dropped_total",
			Help: "Events suppressed by the recent-event window",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailguard_listener_reconnects_total",
			Help: "Reconnection attempts scheduled after listener errors",
		}),
		ListenerListening: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trailguard_listener_listening",
			Help: "1 while the remark listener has a live subscription",
		}),
		ReportsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailguard_reports_created_total",
			Help: "Emergency reports created by the pipeline",
		}),
		ReportsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailguard_reports_submitted_total",
			Help: "Emergency reports confirmed on the ledger",
		}),
		SubmitFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trailguard_report_submit_failures_total",
			Help: "Ledger submissions that failed or were rejected",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trailguard_report_submit_duration_seconds",
			Help:    "Latency of ledger submissions",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
