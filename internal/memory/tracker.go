// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory implements the Memory Tracker (C2), the Threshold State
// Machine (C3), the Action Queue (C4), and the Eviction Engine (C5).
// RSS sampling uses gopsutil/v3 rather than any gc/object-count heuristic
// (spec §9 "Python-isms to discard").
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is a point-in-time MemorySnapshot (spec §3).
type Snapshot struct {
	At               time.Time
	RSSMB            float64
	HeapMB           float64
	ThreadCount      int
	LoadedFileCount  int
	CachedQueryCount int

	// Breakdown attributes bytes to the components we can actually
	// account for; everything else falls into Other (spec §4.2 "the
	// tracker does not pretend to know more than it does").
	GlobalIndexMB float64
	ProjectsMB    float64
	OverheadMB    float64
	OtherMB       float64
}

// Breakdown is an injectable accessor so the tracker can attribute RSS
// without depending on the registry/cache packages directly (avoids an
// import cycle and keeps C2 a leaf component per spec §2).
type Breakdown func() (globalIndexMB, projectsMB, overheadMB float64, loadedFiles, cachedQueries int)

// Tracker samples process RSS on a cadence and keeps a bounded ring
// buffer of the last maxSamples snapshots (default 100, spec §4.2).
type Tracker struct {
	mu          sync.RWMutex
	ring        []Snapshot
	maxSamples  int
	proc        *process.Process
	breakdown   Breakdown
	degraded    bool
	lastErr     error
}

// NewTracker constructs a Tracker for the current process.
func NewTracker(maxSamples int, breakdown Breakdown) (*Tracker, error) {
	if maxSamples <= 0 {
		maxSamples = 100
	}
	proc, err := process.NewProcess(int32(currentPID()))
	if err != nil {
		return nil, err
	}
	return &Tracker{maxSamples: maxSamples, proc: proc, breakdown: breakdown}, nil
}

// Sample takes one RSS measurement and appends it to the ring buffer. If
// the OS probe fails, the sample is skipped and the tracker is marked
// degraded rather than erroring out (spec §4.2 "Failure semantics").
func (t *Tracker) Sample(ctx context.Context) {
	info, err := t.proc.MemoryInfoWithContext(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.degraded = true
		t.lastErr = err
		return
	}
	t.degraded = false
	t.lastErr = nil

	snap := Snapshot{
		At:    time.Now(),
		RSSMB: bytesToMB(info.RSS),
		HeapMB: bytesToMB(info.RSS), // gopsutil reports RSS; a Go-heap-specific
		// figure would need runtime.MemStats, deliberately not mixed in here
		// since that is a different address space accounting than RSS.
	}

	if t.breakdown != nil {
		gi, proj, overhead, loadedFiles, cachedQueries := t.breakdown()
		snap.GlobalIndexMB = gi
		snap.ProjectsMB = proj
		snap.OverheadMB = overhead
		attributed := gi + proj + overhead
		if snap.RSSMB > attributed {
			snap.OtherMB = snap.RSSMB - attributed
		}
		snap.LoadedFileCount = loadedFiles
		snap.CachedQueryCount = cachedQueries
	} else {
		snap.OtherMB = snap.RSSMB
	}

	t.ring = append(t.ring, snap)
	if len(t.ring) > t.maxSamples {
		t.ring = t.ring[len(t.ring)-t.maxSamples:]
	}
}

// CurrentMB returns the most recent RSS sample, or 0 if none yet taken.
func (t *Tracker) CurrentMB() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.ring) == 0 {
		return 0
	}
	return t.ring[len(t.ring)-1].RSSMB
}

// PeakMB returns the maximum RSS across the retained ring buffer.
func (t *Tracker) PeakMB() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var peak float64
	for _, s := range t.ring {
		if s.RSSMB > peak {
			peak = s.RSSMB
		}
	}
	return peak
}

// GrowthRateMBPerMin estimates the slope of RSS over the retained window
// using the first and last samples.
func (t *Tracker) GrowthRateMBPerMin() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.ring) < 2 {
		return 0
	}
	first, last := t.ring[0], t.ring[len(t.ring)-1]
	elapsed := last.At.Sub(first.At).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return (last.RSSMB - first.RSSMB) / elapsed
}

// Recent returns the last n snapshots, oldest first.
func (t *Tracker) Recent(n int) []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n <= 0 || n > len(t.ring) {
		n = len(t.ring)
	}
	out := make([]Snapshot, n)
	copy(out, t.ring[len(t.ring)-n:])
	return out
}

// Healthy reports whether the most recent sample attempt succeeded.
func (t *Tracker) Healthy() (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.degraded, t.lastErr
}

func bytesToMB(b uint64) float64 { return float64(b) / (1024 * 1024) }
