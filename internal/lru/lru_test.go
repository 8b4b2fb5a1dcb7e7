// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package lru

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBudgetInvariantHoldsAfterEveryWrite(t *testing.T) {
	tr := New[string, string](100)

	require.True(t, tr.Put("a", "A", 40))
	require.LessOrEqual(t, tr.TotalBytes(), int64(100))

	require.True(t, tr.Put("b", "B", 40))
	require.LessOrEqual(t, tr.TotalBytes(), int64(100))

	// This insert forces eviction of "a" (LRU end) to stay under budget.
	require.True(t, tr.Put("c", "C", 40))
	require.LessOrEqual(t, tr.TotalBytes(), int64(100))

	_, ok := tr.Peek("a")
	require.False(t, ok, "oldest entry should have been evicted")
}

func TestRejectsEntryLargerThanBudget(t *testing.T) {
	tr := New[string, string](50)
	ok := tr.Put("huge", "X", 200)
	require.False(t, ok)
	require.Equal(t, int64(1), tr.Stats().Rejected)
	require.Equal(t, int64(0), tr.TotalBytes())
}

func TestUpdatingExistingKeyAdjustsByteTotalCorrectly(t *testing.T) {
	tr := New[string, string](1000)
	tr.Put("k", "small", 10)
	require.Equal(t, int64(10), tr.TotalBytes())

	tr.Put("k", "bigger", 30)
	require.Equal(t, int64(30), tr.TotalBytes(), "byte total must reflect the new size, not old+new")
}

func TestGetPromotesRecency(t *testing.T) {
	tr := New[string, string](100)
	tr.Put("a", "A", 40)
	tr.Put("b", "B", 40)

	_, ok := tr.Get("a") // promote a to MRU
	require.True(t, ok)

	// Inserting c forces an eviction; b (now LRU) should go, not a.
	tr.Put("c", "C", 40)

	_, aOK := tr.Peek("a")
	_, bOK := tr.Peek("b")
	require.True(t, aOK)
	require.False(t, bOK)
}
