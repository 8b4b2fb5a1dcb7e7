// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lru implements the LRU Size-Budgeted Tracker (C7): an ordered
// key→value map with byte-size accounting that evicts from the LRU end
// until the configured byte budget is satisfied. hashicorp/golang-lru/v2
// gives us the ordering machinery (it tracks entry count, not bytes); the
// byte-budget accounting is layered on top, matching the teacher corpus's
// general practice of wrapping a narrow library with the exact semantics
// the spec calls for rather than hand-rolling an intrusive list.
package lru

import (
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// Entry is what callers get back from Get/Peek.
type Entry[V any] struct {
	Value      V
	Bytes      int64
	LastAccess int64 // unix nanos, for eviction-scoring consumers
}

// Stats holds the tracker's counters (spec §4.7).
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Rejected  int64 // entries whose single size exceeds the budget
}

// Tracker is a thread-safe, byte-budgeted LRU cache over keys of type K.
type Tracker[K comparable, V any] struct {
	mu        sync.Mutex
	inner     *lru.LRU[K, Entry[V]]
	maxBytes  int64
	curBytes  int64
	stats     Stats
	nowFn     func() int64
	onEvict   func(key K, entry Entry[V])
}

// New creates a Tracker budgeted to maxBytes. nowFn defaults to
// time.Now().UnixNano and is overridable for deterministic tests.
func New[K comparable, V any](maxBytes int64) *Tracker[K, V] {
	t := &Tracker[K, V]{maxBytes: maxBytes, nowFn: defaultNow}
	// unbounded count; our own byte accounting drives eviction, not the
	// inner LRU's own Add() capacity.
	inner, _ := lru.NewLRU[K, Entry[V]](math.MaxInt, func(key K, value Entry[V]) {
		t.curBytes -= value.Bytes
		t.stats.Evictions++
		if t.onEvict != nil {
			t.onEvict(key, value)
		}
	})
	t.inner = inner
	return t
}

// OnEvict registers a callback invoked (under the tracker's lock) whenever
// an entry is evicted, by any path — LRU overflow or explicit Remove.
func (t *Tracker[K, V]) OnEvict(fn func(key K, entry Entry[V])) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEvict = fn
}

// Put inserts or updates key with the given value and byte size. If
// sizeBytes alone exceeds the budget the entry is rejected outright
// (spec §4.7 "Rejects an entry whose single size exceeds budget (logged
// warning)") and Put returns false.
func (t *Tracker[K, V]) Put(key K, value V, sizeBytes int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sizeBytes > t.maxBytes {
		t.stats.Rejected++
		return false
	}

	// Peek (not Get) so updating an existing key doesn't itself count as a
	// hit, and subtract its old size before re-adding: Add() on an
	// existing key updates the value in place without invoking onEvict,
	// so the byte total must be corrected here rather than relying on the
	// eviction callback.
	if old, ok := t.inner.Peek(key); ok {
		t.curBytes -= old.Bytes
	}

	t.inner.Add(key, Entry[V]{Value: value, Bytes: sizeBytes, LastAccess: t.nowFn()})
	t.curBytes += sizeBytes

	for t.curBytes > t.maxBytes {
		_, _, ok := t.inner.RemoveOldest()
		if !ok {
			break
		}
	}
	return true
}

// Get promotes key to most-recently-used and returns its entry.
func (t *Tracker[K, V]) Get(key K) (Entry[V], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.inner.Get(key)
	if !ok {
		t.stats.Misses++
		return Entry[V]{}, false
	}
	t.stats.Hits++
	e.LastAccess = t.nowFn()
	t.inner.Add(key, e) // refresh recency + stamp without changing bytes accounting
	return e, true
}

// Peek returns an entry without affecting recency.
func (t *Tracker[K, V]) Peek(key K) (Entry[V], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.Peek(key)
}

// Remove evicts key explicitly, returning whether it was present.
func (t *Tracker[K, V]) Remove(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.Remove(key)
}

// Keys returns all keys, least-recently-used first.
func (t *Tracker[K, V]) Keys() []K {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.Keys()
}

// TotalBytes returns the current byte total — this must always equal the
// sum of entry sizes outside of an update's critical section (spec §5's
// "derived invariant").
func (t *Tracker[K, V]) TotalBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.curBytes
}

// Len returns the number of resident entries.
func (t *Tracker[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inner.Len()
}

// Stats returns a snapshot of the tracker's counters.
func (t *Tracker[K, V]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// SetNowFunc overrides the clock used for LastAccess stamping; used by
// tests that need deterministic recency ordering.
func (t *Tracker[K, V]) SetNowFunc(fn func() int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nowFn = fn
}

func defaultNow() int64 { return nowNanos() }
