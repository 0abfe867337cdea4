// Package stvmetrics provides the prometheus collectors the engine and
// batch harnesses report through, replacing the teacher's generic
// metrics.Metrics/Averager wrapper (metrics/metrics.go,
// protocol/wave/metrics.go) with concrete counters and histograms for this
// domain.
package stvmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors registered for one engine/harness
// invocation. The zero value is usable: every method no-ops against
// nil collectors, mirroring the teacher's optional-registerer pattern.
type Metrics struct {
	CountsProcessed   prometheus.Counter
	TiesEncountered   prometheus.Counter
	TiesUnresolved    prometheus.Counter
	MarginProposals   prometheus.Counter
	MonteCarloRuns    prometheus.Counter
	CountDuration     prometheus.Histogram
}

// New constructs collectors and registers them against reg. Pass a nil
// Registerer to get collectors that are never registered (useful for
// ad-hoc, single-shot engine invocations that don't want a /metrics
// endpoint).
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		CountsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "counts_processed_total",
			Help: "Number of distribution-of-preferences counts processed.",
		}),
		TiesEncountered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ties_encountered_total",
			Help: "Number of tie-resolution junctures reached.",
		}),
		TiesUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ties_unresolved_total",
			Help: "Number of ties that surfaced ErrTieUnresolved.",
		}),
		MarginProposals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "margin_proposals_evaluated_total",
			Help: "Number of margin-search vote-change proposals evaluated.",
		}),
		MonteCarloRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "montecarlo_runs_total",
			Help: "Number of randomized-count Monte Carlo runs completed.",
		}),
		CountDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "count_duration_seconds",
			Help:    "Wall-clock time to process a single count.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.CountsProcessed, m.TiesEncountered, m.TiesUnresolved,
			m.MarginProposals, m.MonteCarloRuns, m.CountDuration,
		} {
			_ = reg.Register(c)
		}
	}
	return m
}

func (m *Metrics) countProcessed() {
	if m != nil && m.CountsProcessed != nil {
		m.CountsProcessed.Inc()
	}
}

// ObserveCount records that one count finished processing.
func (m *Metrics) ObserveCount() { m.countProcessed() }

// ObserveMarginProposal records that one margin-search vote-change
// proposal was evaluated.
func (m *Metrics) ObserveMarginProposal() {
	if m != nil && m.MarginProposals != nil {
		m.MarginProposals.Inc()
	}
}

// ObserveCountDuration records the wall-clock time one count took.
func (m *Metrics) ObserveCountDuration(d time.Duration) {
	if m != nil && m.CountDuration != nil {
		m.CountDuration.Observe(d.Seconds())
	}
}

// ObserveMonteCarloRun records one completed randomized count.
func (m *Metrics) ObserveMonteCarloRun() {
	if m != nil && m.MonteCarloRuns != nil {
		m.MonteCarloRuns.Inc()
	}
}

// ObserveTie records a tie-resolution juncture, and whether it was
// ultimately resolved.
func (m *Metrics) ObserveTie(resolved bool) {
	if m == nil {
		return
	}
	if m.TiesEncountered != nil {
		m.TiesEncountered.Inc()
	}
	if !resolved && m.TiesUnresolved != nil {
		m.TiesUnresolved.Inc()
	}
}
