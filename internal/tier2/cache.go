// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package tier2

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/lru"
)

// Source tags where a query result came from (spec §4.9, §4.10).
type Source string

const (
	SourceMiss  Source = "miss"
	SourceFresh Source = "fresh"
	SourceStale Source = "stale"
)

// Result is what Query returns to callers.
type Result struct {
	Data               any
	Source             Source
	IsStale            bool
	RebuildInProgress  bool
	ComputedAt         time.Time
	StalenessAgeSec    float64
}

// ComputeFn recomputes a query's data and reports its size in bytes. It
// takes no arguments: a caller closes over whatever it needs (e.g. the
// project ids to pass to C13's cross_project_search).
type ComputeFn func() (data any, sizeBytes int64, err error)

// entry is the C9-owned record layered in the C7 tracker's Value slot.
type entry struct {
	data              any
	computedAt        time.Time
	involvedProjects  map[string]struct{}
	isStale           bool
}

// Stats mirrors spec §4.9's counters.
type Stats struct {
	Queries            int64
	Hits               int64
	Misses             int64
	StaleServes        int64
	RebuildsTriggered  int64
	RebuildsCompleted  int64
	RebuildsFailed     int64
	CurrentlyRebuilding int64
}

// Cache is the Tier 2 Query Cache, layered over the C7 LRU tracker.
type Cache struct {
	tracker *lru.Tracker[string, entry]

	rebuildMu      sync.Mutex
	rebuilding     map[string]struct{}
	rebuildWorkers chan struct{} // bounds concurrent rebuild goroutines (spec §5: "small fixed pool, default 2")

	stats struct {
		queries, hits, misses, staleServes               atomic.Int64
		rebuildsTriggered, rebuildsCompleted, rebuildsFailed atomic.Int64
	}
}

// New constructs a Cache budgeted to maxBytes with up to rebuildWorkers
// concurrent background rebuild jobs (spec §5 default 2).
func New(maxBytes int64, rebuildWorkers int) *Cache {
	if rebuildWorkers <= 0 {
		rebuildWorkers = 2
	}
	return &Cache{
		tracker:        lru.New[string, entry](maxBytes),
		rebuilding:     make(map[string]struct{}),
		rebuildWorkers: make(chan struct{}, rebuildWorkers),
	}
}

// Query implements spec §4.9's three-way miss/fresh/stale contract. The
// caller's compute is only ever run synchronously on a miss; on stale hit
// it is run in the background, at most once per key (spec §8 "one-rebuild
// rule").
func (c *Cache) Query(key string, involvedProjects []string, compute ComputeFn) (Result, error) {
	c.stats.queries.Add(1)

	if e, ok := c.tracker.Get(key); ok {
		if !e.Value.isStale {
			c.stats.hits.Add(1)
			return Result{
				Data:       e.Value.data,
				Source:     SourceFresh,
				ComputedAt: e.Value.computedAt,
			}, nil
		}

		c.stats.staleServes.Add(1)
		inProgress := c.triggerRebuildOnce(key, compute)
		return Result{
			Data:              e.Value.data,
			Source:            SourceStale,
			IsStale:           true,
			RebuildInProgress: inProgress,
			ComputedAt:        e.Value.computedAt,
			StalenessAgeSec:   time.Since(e.Value.computedAt).Seconds(),
		}, nil
	}

	c.stats.misses.Add(1)
	data, sizeBytes, err := compute()
	if err != nil {
		return Result{}, err
	}

	involved := make(map[string]struct{}, len(involvedProjects))
	for _, p := range involvedProjects {
		involved[p] = struct{}{}
	}
	now := time.Now()
	c.tracker.Put(key, entry{data: data, computedAt: now, involvedProjects: involved}, sizeBytes)

	return Result{Data: data, Source: SourceMiss, ComputedAt: now}, nil
}

// triggerRebuildOnce submits a background rebuild for key if one is not
// already in flight, and reports whether a rebuild is (now) in progress.
// The check-and-mark is done under rebuildMu so concurrent callers agree
// on exactly one submission (spec §4.9 step 3, §8 "one-rebuild rule").
func (c *Cache) triggerRebuildOnce(key string, compute ComputeFn) bool {
	c.rebuildMu.Lock()
	if _, already := c.rebuilding[key]; already {
		c.rebuildMu.Unlock()
		return true
	}
	c.rebuilding[key] = struct{}{}
	c.rebuildMu.Unlock()

	c.stats.rebuildsTriggered.Add(1)
	go c.runRebuild(key, compute)
	return true
}

func (c *Cache) runRebuild(key string, compute ComputeFn) {
	c.rebuildWorkers <- struct{}{}
	defer func() { <-c.rebuildWorkers }()

	defer func() {
		c.rebuildMu.Lock()
		delete(c.rebuilding, key)
		c.rebuildMu.Unlock()
	}()

	data, sizeBytes, err := compute()
	if err != nil {
		c.stats.rebuildsFailed.Add(1)
		// A failing rebuild leaves the previous stale entry in place
		// (spec §7): we simply don't touch the tracker.
		return
	}

	// If the entry was evicted in the interim, discard and exit (spec
	// §4.9 step 2).
	old, ok := c.tracker.Peek(key)
	if !ok {
		return
	}

	c.tracker.Put(key, entry{
		data:             data,
		computedAt:       time.Now(),
		involvedProjects: old.Value.involvedProjects,
		isStale:          false,
	}, sizeBytes)
	c.stats.rebuildsCompleted.Add(1)
}

// MarkProjectStale sets is_stale=true on every entry whose involved-
// projects set contains projectID. Entries are never deleted by this
// call — eviction stays purely LRU/size-driven via C7 (spec §4.9).
func (c *Cache) MarkProjectStale(projectID string) {
	for _, key := range c.tracker.Keys() {
		e, ok := c.tracker.Peek(key)
		if !ok {
			continue
		}
		if _, involved := e.Value.involvedProjects[projectID]; !involved {
			continue
		}
		updated := e.Value
		updated.isStale = true
		c.tracker.Put(key, updated, e.Bytes)
	}
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.rebuildMu.Lock()
	inFlight := int64(len(c.rebuilding))
	c.rebuildMu.Unlock()

	return Stats{
		Queries:             c.stats.queries.Load(),
		Hits:                c.stats.hits.Load(),
		Misses:              c.stats.misses.Load(),
		StaleServes:         c.stats.staleServes.Load(),
		RebuildsTriggered:   c.stats.rebuildsTriggered.Load(),
		RebuildsCompleted:   c.stats.rebuildsCompleted.Load(),
		RebuildsFailed:      c.stats.rebuildsFailed.Load(),
		CurrentlyRebuilding: inFlight,
	}
}

// WaitForRebuilds blocks (for tests) until no rebuild is in flight or
// timeout elapses; returns whether it settled before the deadline.
func (c *Cache) WaitForRebuilds(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.rebuildMu.Lock()
		n := len(c.rebuilding)
		c.rebuildMu.Unlock()
		if n == 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
