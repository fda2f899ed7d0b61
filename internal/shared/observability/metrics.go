package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_analysis_seconds",
		Help:    "Time spent on a full repository analysis run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	FileAnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "atlas_file_analysis_seconds",
		Help:    "Time spent classifying a single source file.",
		Buckets: prometheus.DefBuckets,
	})

	FilesAnalyzedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_files_analyzed_total",
		Help: "Total number of candidate files fetched and parsed to completion.",
	})

	FilesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_files_skipped_total",
		Help: "Total number of candidate files skipped, by reason.",
	}, []string{"reason"})

	FetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_fetch_failures_total",
		Help: "Total number of upstream fetch failures, by kind.",
	}, []string{"kind"})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_cache_hits_total",
		Help: "Total number of analysis runs served from cache.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atlas_cache_misses_total",
		Help: "Total number of analysis runs that required a fresh analysis.",
	})

	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_cache_evictions_total",
		Help: "Total number of cache records evicted, by reason.",
	}, []string{"reason"})

	EntitiesDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atlas_entities_discovered",
		Help: "Number of entities discovered in the most recent run.",
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atlas_active_runs",
		Help: "Number of analysis runs currently in flight.",
	})
)
