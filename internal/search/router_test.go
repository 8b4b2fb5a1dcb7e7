// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterMergesAvailableBackends(t *testing.T) {
	vector := &fakeBackend{kind: KindVector, results: map[string][]Result{"P": {{FilePath: "a.go", Score: 0.9}}}}
	fulltext := &fakeBackend{kind: KindFulltext, results: map[string][]Result{"P": {{FilePath: "a.go", Score: 5}}}}

	r := NewRouter(map[Kind]Backend{KindVector: vector, KindFulltext: fulltext})
	results, err := r.Route(context.Background(), "P", "q", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].BackendsFound, 2)
}

func TestRouterDegradesWhenNoBackendAvailable(t *testing.T) {
	regex := &fakeBackend{kind: KindRegex, results: map[string][]Result{"P": {{FilePath: "x.go", Score: 1}}}}
	r := NewRouter(map[Kind]Backend{KindRegex: regex})

	results, err := r.Route(context.Background(), "OTHER", "q", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestRouterWeightedStrategy(t *testing.T) {
	vector := &fakeBackend{kind: KindVector, results: map[string][]Result{"P": {{FilePath: "a.go", Score: 1}}}}
	r := NewRouter(map[Kind]Backend{KindVector: vector}).WithStrategy(StrategyWeighted, nil)

	results, err := r.Route(context.Background(), "P", "q", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
