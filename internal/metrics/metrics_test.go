// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecognitionCacheCounters(t *testing.T) {
	before := testutil.ToFloat64(RecognitionCacheHits)
	RecognitionCacheHits.Inc()
	after := testutil.ToFloat64(RecognitionCacheHits)

	if after != before+1 {
		t.Errorf("Expected hit counter to increase by 1, got %f -> %f", before, after)
	}
}

func TestObserveStoreOperation(t *testing.T) {
	start := time.Now().Add(-10 * time.Millisecond)
	ObserveStoreOperation("store", start)

	count := testutil.CollectAndCount(StoreOperationDuration)
	if count == 0 {
		t.Error("Expected at least one histogram series after observation")
	}
}

func TestRecordStoreError(t *testing.T) {
	RecordStoreError("retrieve", "corrupted")

	got := testutil.ToFloat64(StoreOperationErrors.WithLabelValues("retrieve", "corrupted"))
	if got < 1 {
		t.Errorf("Expected error counter >= 1, got %f", got)
	}
}
