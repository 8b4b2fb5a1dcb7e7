// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordQueryIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(queriesTotal.WithLabelValues("miss"))
	RecordQuery("miss")
	after := testutil.ToFloat64(queriesTotal.WithLabelValues("miss"))
	require.Equal(t, before+1, after)
}

func TestObserveBackendSearchRecordsHistogram(t *testing.T) {
	require.NotPanics(t, func() { ObserveBackendSearch("vector", 10*time.Millisecond) })
}

func TestSetMemoryThresholdLevel(t *testing.T) {
	SetMemoryThresholdLevel(2)
	require.Equal(t, 2.0, testutil.ToFloat64(memoryThresholdLevel))
}
