// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitoring implements C19: structured JSON operations logging
// (go.uber.org/zap) and counters/gauges/histograms
// (prometheus/client_golang), grounded on r3e-network-service_layer's
// pkg/metrics package and the teacher's existing prometheus dependency
// (promhttp is already wired in cmd/cie/index.go).
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds this service's Prometheus collectors, separate from
// the default global registry so tests can spin up isolated instances.
var Registry = prometheus.NewRegistry()

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leindex",
			Subsystem: "tier2_cache",
			Name:      "queries_total",
			Help:      "Total Tier 2 cache queries by source (miss|fresh|stale).",
		},
		[]string{"source"},
	)

	rebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leindex",
			Subsystem: "tier2_cache",
			Name:      "rebuilds_total",
			Help:      "Total background rebuilds by outcome (completed|failed).",
		},
		[]string{"outcome"},
	)

	searchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "leindex",
			Subsystem: "search",
			Name:      "backend_duration_seconds",
			Help:      "Duration of a single backend's search call.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"backend"},
	)

	crossProjectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leindex",
			Subsystem: "search",
			Name:      "cross_project_failures_total",
			Help:      "Total per-project failures observed during cross-project fan-out, by status.",
		},
		[]string{"status"},
	)

	memoryRSS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "leindex",
			Subsystem: "memory",
			Name:      "rss_mb",
			Help:      "Current resident set size in megabytes.",
		},
	)

	memoryThresholdLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "leindex",
			Subsystem: "memory",
			Name:      "threshold_level",
			Help:      "Current memory threshold level: 0=normal,1=warning,2=prompt,3=emergency.",
		},
	)

	projectsIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "leindex",
			Subsystem: "tier1",
			Name:      "projects_indexed_total",
			Help:      "Total project_indexed events applied to the metadata store.",
		},
	)
)

func init() {
	Registry.MustRegister(
		queriesTotal,
		rebuildsTotal,
		searchDuration,
		crossProjectFailures,
		memoryRSS,
		memoryThresholdLevel,
		projectsIndexedTotal,
	)
}

// RecordQuery increments the Tier 2 query counter for source (spec §4.9
// stats: queries/hits/misses/stale_serves).
func RecordQuery(source string) { queriesTotal.WithLabelValues(source).Inc() }

// RecordRebuild increments the rebuild outcome counter.
func RecordRebuild(outcome string) { rebuildsTotal.WithLabelValues(outcome).Inc() }

// ObserveBackendSearch records how long a single backend call took.
func ObserveBackendSearch(backend string, d time.Duration) {
	searchDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordCrossProjectStatus increments the per-project fan-out outcome
// counter (ok|error|timeout).
func RecordCrossProjectStatus(status string) { crossProjectFailures.WithLabelValues(status).Inc() }

// SetMemoryRSS publishes the latest RSS sample in megabytes.
func SetMemoryRSS(mb float64) { memoryRSS.Set(mb) }

// SetMemoryThresholdLevel publishes the current threshold level as an
// ordinal (spec §4.3: normal=0, warning=1, prompt=2, emergency=3).
func SetMemoryThresholdLevel(level int) { memoryThresholdLevel.Set(float64(level)) }

// RecordProjectIndexed increments the lifetime project_indexed counter.
func RecordProjectIndexed() { projectsIndexedTotal.Inc() }
