// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

import (
	"container/heap"
	"sync"
	"time"
)

// Action is one queued memory-relief action (spec §4.4). Actions are
// idempotent by contract of their Run function — a retried run must be
// safe.
type Action struct {
	Kind          ActionKind
	Priority      int // higher runs first
	Payload       map[string]any
	EstimatedMB   float64
	Run           func() (actualMB float64, err error)
}

// ActionResult is the per-action outcome from ExecuteAll.
type ActionResult struct {
	Kind        ActionKind
	Success     bool
	ActualMB    float64
	Duration    time.Duration
	Err         error
}

// actionHeap is a container/heap max-heap on Priority. No example repo in
// this corpus carries a generic priority-queue library (the ones that
// ship a queue — e.g. Action Queue style components — build directly on
// container/heap), so this stays on the standard library; see DESIGN.md.
type actionHeap []*Action

func (h actionHeap) Len() int            { return len(h) }
func (h actionHeap) Less(i, j int) bool  { return h[i].Priority > h[j].Priority }
func (h actionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *actionHeap) Push(x any)         { *h = append(*h, x.(*Action)) }
func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ActionQueue is a thread-safe priority queue of memory actions.
type ActionQueue struct {
	mu sync.Mutex
	h  actionHeap
}

// NewActionQueue returns an empty queue.
func NewActionQueue() *ActionQueue {
	q := &ActionQueue{}
	heap.Init(&q.h)
	return q
}

// Push enqueues an action.
func (q *ActionQueue) Push(a *Action) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, a)
}

// Len reports the number of queued actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// ExecuteAll drains the queue in priority order, running each action and
// recording a result. A failing action is logged in its result but does
// not abort the drain (spec §4.4).
func (q *ActionQueue) ExecuteAll() []ActionResult {
	q.mu.Lock()
	pending := make([]*Action, 0, q.h.Len())
	for q.h.Len() > 0 {
		pending = append(pending, heap.Pop(&q.h).(*Action))
	}
	q.mu.Unlock()

	results := make([]ActionResult, 0, len(pending))
	for _, a := range pending {
		start := time.Now()
		actual, err := a.Run()
		results = append(results, ActionResult{
			Kind:     a.Kind,
			Success:  err == nil,
			ActualMB: actual,
			Duration: time.Since(start),
			Err:      err,
		})
	}
	return results
}
