// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package tier2

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestStaleAllowedCacheScenario is spec §8 scenario 2.
func TestStaleAllowedCacheScenario(t *testing.T) {
	c := New(1<<20, 2)

	compute1 := func() (any, int64, error) { return []string{"hit1"}, 16, nil }
	res, err := c.Query("K", []string{"P"}, compute1)
	require.NoError(t, err)
	require.Equal(t, SourceMiss, res.Source)

	c.MarkProjectStale("P")

	var rebuildGate sync.WaitGroup
	rebuildGate.Add(1)
	compute2 := func() (any, int64, error) {
		rebuildGate.Wait()
		return []string{"hit2"}, 16, nil
	}
	res, err = c.Query("K", []string{"P"}, compute2)
	require.NoError(t, err)
	require.Equal(t, SourceStale, res.Source)
	require.True(t, res.IsStale)
	require.True(t, res.RebuildInProgress)
	require.Equal(t, []string{"hit1"}, res.Data)

	rebuildGate.Done()
	require.True(t, c.WaitForRebuilds(time.Second))

	res, err = c.Query("K", []string{"P"}, compute1)
	require.NoError(t, err)
	require.Equal(t, SourceFresh, res.Source)
	require.Equal(t, []string{"hit2"}, res.Data)
}

// TestOneRebuildUnderConcurrency is spec §8 scenario 3.
func TestOneRebuildUnderConcurrency(t *testing.T) {
	c := New(1<<20, 4)

	_, err := c.Query("K", nil, func() (any, int64, error) { return "v1", 8, nil })
	require.NoError(t, err)
	setStale(c, "K")

	var computeCalls atomic.Int64
	var startGate sync.WaitGroup
	startGate.Add(1)

	var wg sync.WaitGroup
	results := make([]Result, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			startGate.Wait()
			res, err := c.Query("K", nil, func() (any, int64, error) {
				computeCalls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return "v2", 8, nil
			})
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	startGate.Done()
	wg.Wait()

	for _, r := range results {
		require.Equal(t, SourceStale, r.Source)
		require.Equal(t, "v1", r.Data)
	}
	require.True(t, c.WaitForRebuilds(time.Second))
	require.Equal(t, int64(1), c.Stats().RebuildsTriggered)
	require.LessOrEqual(t, computeCalls.Load(), int64(1))
}

func setStale(c *Cache, key string) {
	e, ok := c.tracker.Peek(key)
	if !ok {
		return
	}
	updated := e.Value
	updated.isStale = true
	c.tracker.Put(key, updated, e.Bytes)
}

func TestKeyDeterminism(t *testing.T) {
	k1, err := Key("search", map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	k2, err := Key("search", map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	require.Equal(t, k1, k2, "key must not depend on map iteration order")
}

func TestKeyRejectsCallables(t *testing.T) {
	_, err := Key("search", map[string]any{"fn": func() {}})
	require.Error(t, err)
}

func TestRebuildFailureLeavesStaleEntryInPlace(t *testing.T) {
	c := New(1<<20, 2)
	_, err := c.Query("K", nil, func() (any, int64, error) { return "v1", 8, nil })
	require.NoError(t, err)
	setStale(c, "K")

	res, err := c.Query("K", nil, func() (any, int64, error) {
		return nil, 0, assertBoom
	})
	require.NoError(t, err)
	require.Equal(t, SourceStale, res.Source)

	require.True(t, c.WaitForRebuilds(time.Second))
	require.Equal(t, int64(1), c.Stats().RebuildsFailed)

	res, err = c.Query("K", nil, func() (any, int64, error) { return "v3", 8, nil })
	require.NoError(t, err)
	require.Equal(t, SourceStale, res.Source, "still stale: a failed rebuild must not clear the flag")
	require.Equal(t, "v1", res.Data, "the second query observes the pre-rebuild data synchronously, regardless of the new rebuild it triggers")
}

var assertBoom = errBoom{}

type errBoom struct{}

func (errBoom) Error() string { return "rebuild boom" }
