// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

// Package metrics provides Prometheus instrumentation for the engine:
// recognition-cache efficiency, notebook store operation latency, LRU window
// behavior and bytes written per storage path. Collectors register against
// the default registry; the embedding application decides whether and where
// to expose them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recognition cache metrics

	RecognitionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkstore_recognition_cache_hits_total",
			Help: "Total number of recognition cache hits",
		},
	)

	RecognitionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkstore_recognition_cache_misses_total",
			Help: "Total number of recognition cache misses",
		},
	)

	RecognitionCacheExpirations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkstore_recognition_cache_expirations_total",
			Help: "Total number of entries removed by TTL expiry (lazy or swept)",
		},
	)

	RecognitionCacheWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkstore_recognition_cache_write_failures_total",
			Help: "Total number of suppressed cache write failures",
		},
	)

	// Notebook store metrics

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkstore_notebook_operation_duration_seconds",
			Help:    "Duration of notebook store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "store", "retrieve", "update", "delete", "clean", "reconcile"
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkstore_notebook_operation_errors_total",
			Help: "Total number of failed notebook store operations",
		},
		[]string{"operation", "error_type"},
	)

	StoreBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkstore_notebook_bytes_written_total",
			Help: "Total uncompressed bytes written, by storage path",
		},
		[]string{"path"}, // "inline", "chunked"
	)

	// LRU window metrics

	LRUEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkstore_notebook_lru_entries",
			Help: "Current number of materialized documents in the LRU window",
		},
	)

	LRUEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkstore_notebook_lru_evictions_total",
			Help: "Total number of LRU capacity evictions (in-memory only, never durable)",
		},
	)
)

// ObserveStoreOperation records the duration of a notebook store operation.
//
//	defer metrics.ObserveStoreOperation("store", time.Now())
func ObserveStoreOperation(operation string, start time.Time) {
	StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordStoreError increments the error counter for an operation.
func RecordStoreError(operation, errorType string) {
	StoreOperationErrors.WithLabelValues(operation, errorType).Inc()
}
