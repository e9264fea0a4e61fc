// Package metrics exposes Prometheus counters for the resolver and the
// analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcome label values.
const (
	OutcomeDirect   = "direct"
	OutcomeWarning  = "warning"
	OutcomeNotFound = "not_found"
)

// Job outcome label values.
const (
	JobOutcomeCompleted = "completed"
	JobOutcomeRetried   = "retried"
	JobOutcomeTerminal  = "terminal"
)

var (
	// ResolutionsTotal counts resolutions by outcome.
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkguard_resolutions_total",
		Help: "Total short code resolutions by outcome.",
	}, []string{"outcome"})

	// CacheHitsTotal counts resolver cache hits and misses.
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkguard_cache_lookups_total",
		Help: "Total resolver cache lookups by result.",
	}, []string{"result"})

	// JobsProcessedTotal counts analysis jobs by outcome.
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkguard_jobs_processed_total",
		Help: "Total analysis jobs processed by outcome.",
	}, []string{"outcome"})

	// ProviderCallsTotal counts calls to the text-analysis provider.
	ProviderCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkguard_provider_calls_total",
		Help: "Total text-analysis provider calls by result.",
	}, []string{"result"})

	// HitFlushDrops counts hit-counter increments dropped because the
	// buffer was full.
	HitFlushDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkguard_hit_buffer_drops_total",
		Help: "Total hit-counter increments dropped due to a full buffer.",
	})
)
