// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine and gateway collectors. Create one per
// process with New and share it between the engine and the HTTP server.
type Metrics struct {
	RoundsTotal        *prometheus.CounterVec
	ContributionsTotal *prometheus.CounterVec
	UploadsTotal       prometheus.Counter
	RoundDuration      prometheus.Histogram
	PhaseDuration      *prometheus.HistogramVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_rounds_total",
				Help: "Total orchestration rounds by outcome.",
			},
			[]string{"status"},
		),
		ContributionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_contributions_total",
				Help: "Total alter contributions by outcome.",
			},
			[]string{"status"},
		),
		UploadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quorum_uploads_total",
				Help: "Total document uploads ingested.",
			},
		),
		RoundDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quorum_round_duration_seconds",
				Help:    "Wall-clock duration of complete rounds.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quorum_phase_duration_seconds",
				Help:    "Wall-clock duration of individual phases.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"phase"},
		),
	}
	reg.MustRegister(
		m.RoundsTotal,
		m.ContributionsTotal,
		m.UploadsTotal,
		m.RoundDuration,
		m.PhaseDuration,
	)
	return m
}
