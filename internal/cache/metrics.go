// Package cache – Prometheus instrumentation
//
// Collectors follow the label discipline used by the HTTP middleware: the
// only label is the entity kind, which keeps cardinality bounded to a handful
// of series per collector.
package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	// cacheHits counts reads served from a fresh entry without a refetch.
	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entity_cache_hits_total",
			Help: "Reads served from a fresh cache entry.",
		},
		[]string{"kind"},
	)

	// cacheMisses counts reads that scheduled a background or blocking load.
	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entity_cache_misses_total",
			Help: "Reads that required a loader invocation (stale, forced, or absent).",
		},
		[]string{"kind"},
	)

	// cacheRefreshes counts loader completions by outcome.
	// outcome ∈ {applied, dropped, error}.
	cacheRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entity_cache_refresh_total",
			Help: "Loader completions by outcome (applied, dropped, error).",
		},
		[]string{"kind", "outcome"},
	)

	// cacheEntries gauges the current number of cached entries.
	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "entity_cache_entries",
			Help: "Current number of entries held by the entity cache.",
		},
	)

	// cacheEvictions counts entries removed by the inactivity GC.
	cacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "entity_cache_evictions_total",
			Help: "Entries evicted after the inactivity window.",
		},
	)
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheRefreshes, cacheEntries, cacheEvictions)
}
