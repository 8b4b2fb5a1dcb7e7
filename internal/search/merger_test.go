// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeRRFCombinesRanksAcrossBackends(t *testing.T) {
	vector := BackendRanked{Backend: "vector", Results: []Result{
		{FilePath: "a.go", Score: 0.9},
		{FilePath: "b.go", Score: 0.8},
	}}
	fulltext := BackendRanked{Backend: "fulltext", Results: []Result{
		{FilePath: "b.go", Score: 12.0},
		{FilePath: "a.go", Score: 10.0},
	}}

	merged := MergeRRF([]BackendRanked{vector, fulltext}, 0)
	require.Len(t, merged, 2)

	// a.go: rank1 in vector (1/61) + rank2 in fulltext (1/62)
	// b.go: rank2 in vector (1/62) + rank1 in fulltext (1/61)
	// both backends agree roughly symmetrically, so scores should be
	// extremely close; a.go was rank-1 somewhere and b.go too.
	require.InDelta(t, merged[0].Score, merged[1].Score, 1e-9)
	for _, r := range merged {
		require.Len(t, r.BackendsFound, 2)
		require.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestMergeRRFScoreNeverExceedsOne(t *testing.T) {
	many := make([]BackendRanked, 0, 10)
	for i := 0; i < 10; i++ {
		many = append(many, BackendRanked{Backend: "b", Results: []Result{{FilePath: "x.go", Score: 1}}})
	}
	merged := MergeRRF(many, 0)
	require.Len(t, merged, 1)
	require.LessOrEqual(t, merged[0].Score, 1.0)
}

func TestMergeWeightedPenalizesPartialCoverage(t *testing.T) {
	backends := []BackendRanked{
		{Backend: "vector", Results: []Result{{FilePath: "only-vector.go", Score: 1.0}, {FilePath: "both.go", Score: 0.5}}},
		{Backend: "fulltext", Results: []Result{{FilePath: "both.go", Score: 5.0}}},
	}
	merged := MergeWeighted(backends, nil, 0)

	var both, onlyVector Result
	for _, r := range merged {
		if r.FilePath == "both.go" {
			both = r
		} else {
			onlyVector = r
		}
	}
	require.Greater(t, both.Score, onlyVector.Score, "a result seen by both backends should outrank a single-backend one of similar normalized strength")
}

func TestMergeRRFKeepsDisjointSameFileMatchesSeparate(t *testing.T) {
	regex := BackendRanked{Backend: "regex", Results: []Result{
		{FilePath: "f.go", StartLine: 10, EndLine: 10, HasLineInfo: true, Score: 1},
		{FilePath: "f.go", StartLine: 50, EndLine: 50, HasLineInfo: true, Score: 1},
		{FilePath: "f.go", StartLine: 90, EndLine: 90, HasLineInfo: true, Score: 1},
	}}

	merged := MergeRRF([]BackendRanked{regex}, 0)
	require.Len(t, merged, 3, "three non-overlapping matches in one file must not collapse into one result")

	lines := map[int]bool{}
	for _, r := range merged {
		lines[r.StartLine] = true
		require.Equal(t, r.StartLine, r.EndLine, "ranges must not be widened across disjoint matches")
	}
	require.Equal(t, map[int]bool{10: true, 50: true, 90: true}, lines)
}

func TestMergeRRFCollidesOverlappingSameFileMatchesAcrossBackends(t *testing.T) {
	vector := BackendRanked{Backend: "vector", Results: []Result{
		{FilePath: "f.go", StartLine: 10, EndLine: 20, HasLineInfo: true, Score: 0.9},
	}}
	fulltext := BackendRanked{Backend: "fulltext", Results: []Result{
		{FilePath: "f.go", StartLine: 15, EndLine: 25, HasLineInfo: true, Score: 0.8},
	}}

	merged := MergeRRF([]BackendRanked{vector, fulltext}, 0)
	require.Len(t, merged, 1, "overlapping ranges for the same file across backends must collide")
	require.Equal(t, 10, merged[0].StartLine)
	require.Equal(t, 25, merged[0].EndLine)
	require.Len(t, merged[0].BackendsFound, 2)
}

func TestMaxResultsTruncates(t *testing.T) {
	backends := []BackendRanked{
		{Backend: "regex", Results: []Result{
			{FilePath: "1.go", Score: 1}, {FilePath: "2.go", Score: 1}, {FilePath: "3.go", Score: 1},
		}},
	}
	merged := MergeRRF(backends, 2)
	require.Len(t, merged, 2)
}

func TestDedupCollidesOverlappingRangesSamePath(t *testing.T) {
	results := []Result{
		{FilePath: "f.go", StartLine: 10, EndLine: 20, HasLineInfo: true, Score: 0.5, BackendsFound: map[string]float64{"vector": 0.5}},
		{FilePath: "f.go", StartLine: 15, EndLine: 25, HasLineInfo: true, Score: 0.9, BackendsFound: map[string]float64{"fulltext": 0.9}},
		{FilePath: "f.go", StartLine: 100, EndLine: 110, HasLineInfo: true, Score: 0.3, BackendsFound: map[string]float64{"regex": 0.3}},
	}
	out := Dedup(results)
	require.Len(t, out, 2, "the two overlapping ranges collide; the disjoint one stays separate")

	var collided Result
	for _, r := range out {
		if r.StartLine == 10 {
			collided = r
		}
	}
	require.Equal(t, 10, collided.StartLine)
	require.Equal(t, 25, collided.EndLine, "line range widens to the union")
	require.Len(t, collided.BackendsFound, 2, "backends_found is unioned")
	require.Equal(t, 0.9, collided.Score, "higher-scored result's payload/score wins")
}

func TestDedupNoLineInfoAlwaysCollides(t *testing.T) {
	results := []Result{
		{FilePath: "f.go", HasLineInfo: false, Score: 0.2, BackendsFound: map[string]float64{"regex": 0.2}},
		{FilePath: "f.go", HasLineInfo: false, Score: 0.4, BackendsFound: map[string]float64{"fulltext": 0.4}},
	}
	out := Dedup(results)
	require.Len(t, out, 1)
}

func TestMinMaxNormalizeConstantListMapsToOnes(t *testing.T) {
	out := minMaxNormalize([]float64{5, 5, 5})
	for _, v := range out {
		require.Equal(t, 1.0, v)
	}
}

func TestPercentileInterpolates(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	require.InDelta(t, 1.0, Percentile(values, 0), 1e-9)
	require.InDelta(t, 4.0, Percentile(values, 100), 1e-9)
	require.InDelta(t, 2.5, Percentile(values, 50), 1e-9)
}

func TestZScoreZeroVarianceIsAllZeros(t *testing.T) {
	out := ZScore([]float64{3, 3, 3})
	for _, v := range out {
		require.Equal(t, 0.0, v)
	}
}

func TestClamp01(t *testing.T) {
	require.Equal(t, 0.0, Clamp01(-1))
	require.Equal(t, 1.0, Clamp01(2))
	require.Equal(t, 0.5, Clamp01(0.5))
}
