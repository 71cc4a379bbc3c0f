// Package observability exposes the prometheus metrics surfaced by the
// module graph, HMR propagator, and dependency optimizer.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GraphNodesTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "devgraph_graph_nodes_total",
		Help: "Total number of module nodes in the graph, by environment.",
	}, []string{"environment"})

	GraphEdgesTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "devgraph_graph_edges_total",
		Help: "Total number of import edges in the graph, by environment.",
	}, []string{"environment"})

	InvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devgraph_invalidations_total",
		Help: "Total number of module invalidations.",
	}, []string{"environment", "mode"}) // mode: soft|hard

	HMRUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devgraph_hmr_updates_total",
		Help: "Total number of fine-grained HMR update payloads emitted.",
	}, []string{"type"}) // type: js-update|css-update

	HMRFullReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devgraph_hmr_full_reloads_total",
		Help: "Total number of full-reload payloads emitted.",
	}, []string{"reason"}) // reason: dead-end|optimizer

	PropagationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devgraph_hmr_propagation_seconds",
		Help:    "Time spent walking the module graph for one file-change event.",
		Buckets: prometheus.DefBuckets,
	})

	OptimizerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devgraph_optimizer_state",
		Help: "Current optimizer state: 0=idle 1=scanning 2=debouncing 3=processing 4=committing.",
	})

	OptimizerDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devgraph_optimizer_discovered_total",
		Help: "Total number of missing imports registered with the optimizer.",
	})

	OptimizerDiscoveredEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devgraph_optimizer_discovered_evicted_total",
		Help: "Total number of discovered deps evicted from the LRU before their batch committed.",
	})

	OptimizerCommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devgraph_optimizer_commits_total",
		Help: "Total number of bundler runs resolved, by outcome.",
	}, []string{"outcome"}) // outcome: committed|cancelled|failed

	OptimizerBundleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devgraph_optimizer_bundle_seconds",
		Help:    "Time spent inside a single bundler invocation.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devgraph_watcher_events_total",
		Help: "Total number of filesystem events received by the watcher.",
	})
)
