// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search implements the multi-backend search merger (C12), the
// backend adapter contract and graceful degradation (C11/C14), the
// cross-project search fan-out (C13), and the query router (C10).
package search

import (
	"math"
	"sort"
)

// Result is one match from a single backend, before or after merging.
type Result struct {
	FilePath      string
	StartLine     int
	EndLine       int
	HasLineInfo   bool
	Score         float64
	BackendsFound map[string]float64 // backend name -> its original score
	Payload       any
	Rank          int
}

// BackendRanked is one backend's ranked result list, used by RRF.
type BackendRanked struct {
	Backend string
	Results []Result // already ordered best-first by this backend
}

const rrfK = 60

// MergeRRF implements spec §4.12's default Reciprocal Rank Fusion: for a
// result at rank r (1-based) in backend b's list, its contribution is
// 1/(k+r); the final score sums contributions across backends that
// returned it, then results are deduplicated and truncated to maxResults.
func MergeRRF(backends []BackendRanked, maxResults int) []Result {
	// Grouped by file path, but a path's group can hold several entries:
	// only entries whose line ranges actually overlap (the same check
	// Dedup uses) are collapsed into one another. Three disjoint matches
	// in the same file never collide here just because they share a path.
	byPath := make(map[string][]*Result)
	var order []string

	for _, b := range backends {
		for i, r := range b.Results {
			rank := i + 1
			contribution := 1.0 / float64(rrfK+rank)

			merged := false
			for _, existing := range byPath[r.FilePath] {
				if overlaps(*existing, r) {
					existing.Score += contribution
					if cur, ok := existing.BackendsFound[b.Backend]; !ok || r.Score > cur {
						existing.BackendsFound[b.Backend] = r.Score
					}
					mergeLineInfo(existing, r)
					merged = true
					break
				}
			}
			if !merged {
				cp := r
				cp.Score = contribution
				cp.BackendsFound = map[string]float64{b.Backend: r.Score}
				if _, ok := byPath[r.FilePath]; !ok {
					order = append(order, r.FilePath)
				}
				byPath[r.FilePath] = append(byPath[r.FilePath], &cp)
			}
		}
	}

	flat := make([]Result, 0, len(order))
	for _, k := range order {
		for _, r := range byPath[k] {
			flat = append(flat, *r)
		}
	}

	deduped := Dedup(flat)
	return rankAndTruncate(deduped, maxResults)
}

// DefaultWeights is the spec §4.12 default weighting for weighted merge.
var DefaultWeights = map[string]float64{
	"vector":   0.5,
	"fulltext": 0.3,
	"regex":    0.2,
}

// MergeWeighted implements spec §4.12's weighted strategy: per-backend
// scores are min-max normalized to [0,1] within that backend's own list,
// then combined as Σ w_b·norm_b(score_b), multiplied by
// presence/total_backends to penalize partial coverage.
func MergeWeighted(backends []BackendRanked, weights map[string]float64, maxResults int) []Result {
	if weights == nil {
		weights = DefaultWeights
	}
	totalBackends := len(backends)

	type acc struct {
		result   Result
		weighted float64
		presence int
	}
	// Same overlap-aware grouping as MergeRRF: a path's group holds one
	// acc per distinct (non-overlapping) location, not one per path.
	byPath := make(map[string][]*acc)
	var order []string

	for _, b := range backends {
		norm := minMaxNormalize(scoresOf(b.Results))
		w := weights[b.Backend]
		for i, r := range b.Results {
			contribution := w * norm[i]

			merged := false
			for _, a := range byPath[r.FilePath] {
				if overlaps(a.result, r) {
					mergeLineInfo(&a.result, r)
					if cur, ok := a.result.BackendsFound[b.Backend]; !ok || r.Score > cur {
						a.result.BackendsFound[b.Backend] = r.Score
					}
					a.weighted += contribution
					a.presence++
					merged = true
					break
				}
			}
			if !merged {
				cp := r
				cp.BackendsFound = map[string]float64{b.Backend: r.Score}
				if _, ok := byPath[r.FilePath]; !ok {
					order = append(order, r.FilePath)
				}
				byPath[r.FilePath] = append(byPath[r.FilePath], &acc{result: cp, weighted: contribution, presence: 1})
			}
		}
	}

	flat := make([]Result, 0)
	for _, k := range order {
		for _, a := range byPath[k] {
			a.result.Score = a.weighted * (float64(a.presence) / float64(totalBackends))
			flat = append(flat, a.result)
		}
	}

	deduped := Dedup(flat)
	return rankAndTruncate(deduped, maxResults)
}

func scoresOf(results []Result) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.Score
	}
	return out
}

// minMaxNormalize scales values to [0,1]; a constant list maps to all 1s.
func minMaxNormalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(values))
	if max == min {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out
}

// Percentile returns the p-th percentile (0..100) of values using
// linear interpolation between closest ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ZScore standardizes values to zero mean, unit variance; a zero-variance
// list maps to all zeros.
func ZScore(values []float64) []float64 {
	n := float64(len(values))
	if n == 0 {
		return nil
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= n
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= n
	std := math.Sqrt(variance)
	out := make([]float64, len(values))
	if std == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// overlaps reports whether two line ranges overlap, per spec §4.12's
// collision rule: r1.start ≤ r2.end ∧ r1.end ≥ r2.start.
func overlaps(a, b Result) bool {
	if !a.HasLineInfo || !b.HasLineInfo {
		return true // "if either has no line info, any same-path pair collides"
	}
	return a.StartLine <= b.EndLine && a.EndLine >= b.StartLine
}

func mergeLineInfo(dst *Result, src Result) {
	if !dst.HasLineInfo || !src.HasLineInfo {
		return
	}
	if src.StartLine < dst.StartLine {
		dst.StartLine = src.StartLine
	}
	if src.EndLine > dst.EndLine {
		dst.EndLine = src.EndLine
	}
}

// Dedup collides same-file, overlapping-range results (spec §4.12): the
// higher-scored payload wins, backends_found is unioned, per-backend
// scores take the max, and the line range widens to the union. No two
// results in the output share a file_path with overlapping ranges (spec
// §8 "Merger dedup").
func Dedup(results []Result) []Result {
	// group by file path first — only same-path results can collide.
	byPath := make(map[string][]Result)
	var pathOrder []string
	for _, r := range results {
		if _, ok := byPath[r.FilePath]; !ok {
			pathOrder = append(pathOrder, r.FilePath)
		}
		byPath[r.FilePath] = append(byPath[r.FilePath], r)
	}

	out := make([]Result, 0, len(results))
	for _, path := range pathOrder {
		out = append(out, collidePath(byPath[path])...)
	}
	return out
}

func collidePath(group []Result) []Result {
	merged := make([]Result, 0, len(group))
	for _, r := range group {
		placed := false
		for i := range merged {
			if overlaps(merged[i], r) {
				merged[i] = combine(merged[i], r)
				placed = true
				break
			}
		}
		if !placed {
			merged = append(merged, r)
		}
	}
	return merged
}

func combine(a, b Result) Result {
	winner, loser := a, b
	if b.Score > a.Score {
		winner, loser = b, a
	}
	out := winner
	out.BackendsFound = make(map[string]float64, len(a.BackendsFound)+len(b.BackendsFound))
	for k, v := range a.BackendsFound {
		out.BackendsFound[k] = v
	}
	for k, v := range b.BackendsFound {
		if cur, ok := out.BackendsFound[k]; !ok || v > cur {
			out.BackendsFound[k] = v
		}
	}
	mergeLineInfo(&out, loser)
	return out
}

// rankAndTruncate sorts by score descending, stamps a stable 1..N rank,
// and truncates to maxResults (0 = unlimited). Scores are clamped to
// (0,1] — the RRF bound of spec §8.
func rankAndTruncate(results []Result, maxResults int) []Result {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	for i := range results {
		if results[i].Score <= 0 {
			results[i].Score = math.SmallestNonzeroFloat64
		}
		if results[i].Score > 1 {
			results[i].Score = 1
		}
		results[i].Rank = i + 1
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}
