// Package metrics holds the Prometheus collectors for a repertoire build.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExplorerRequests counts explorer lookups by result
	// (ok, cache_hit, throttled, error).
	ExplorerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repertoire_explorer_requests_total",
		Help: "Opening explorer lookups by result",
	}, []string{"result"})

	// ExplorerLatency tracks explorer round trips that reached the network.
	ExplorerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "repertoire_explorer_request_duration_seconds",
		Help:    "Opening explorer request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	// EngineCalls counts evaluator calls by kind (bestmove, evaluate) and result.
	EngineCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repertoire_engine_calls_total",
		Help: "Evaluator calls by kind and result",
	}, []string{"kind", "result"})

	// Selections counts candidate selector outcomes (approved, no_candidate, failed).
	Selections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repertoire_selections_total",
		Help: "Candidate selector outcomes",
	}, []string{"outcome"})

	// LinesExpanded counts lines taken off the work queue.
	LinesExpanded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repertoire_lines_expanded_total",
		Help: "Opening lines expanded",
	})

	// TerminalLines counts terminal lines emitted before finalization.
	TerminalLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repertoire_terminal_lines_total",
		Help: "Terminal lines emitted",
	})

	// Books counts starting lines processed by result (ok, error).
	Books = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repertoire_books_total",
		Help: "Starting lines processed by result",
	}, []string{"result"})
)
