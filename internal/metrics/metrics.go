// Package metrics exposes the daemon's operational counters and gauges via
// github.com/prometheus/client_golang. It carries no write paths of its
// own: every update is fired from a point the coordinator's or the HTTP
// layer's control flow already visits.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the daemon registers. Construct one with
// NewMetrics and register it with a prometheus.Registerer (or leave it
// unregistered in tests that don't care about /metrics).
type Metrics struct {
	SyncRunsTotal      *prometheus.CounterVec
	CurrentHeight      prometheus.Gauge
	Halted             prometheus.Gauge
	WitnessDivergences prometheus.Counter
	SyncDuration       prometheus.Histogram
}

// NewMetrics constructs the collector set. namespace prefixes every metric
// name (e.g. "lightanchor_sync_runs_total").
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SyncRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of sync runs, labeled by outcome (success, fork, error).",
		}, []string{"outcome"}),
		CurrentHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trusted_height",
			Help:      "Height of the most recently committed trusted block.",
		}),
		Halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "halted",
			Help:      "1 if the sync coordinator is currently halted due to a detected fork, else 0.",
		}),
		WitnessDivergences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "witness_divergences_total",
			Help:      "Total number of confirmed witness header divergences (forks) detected.",
		}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Wall-clock duration of a verification+detection run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// MustRegister registers every collector with reg, panicking on a
// duplicate-registration error (a startup-time programming error, the same
// convention prometheus's own MustRegister uses).
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.SyncRunsTotal, m.CurrentHeight, m.Halted, m.WitnessDivergences, m.SyncDuration)
}
