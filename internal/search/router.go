// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"fmt"
)

// Strategy selects how a single project's backends are combined.
type Strategy string

const (
	StrategyRRF      Strategy = "rrf"
	StrategyWeighted Strategy = "weighted"
)

// Router is the C10 Query Router: given a query, it dispatches to every
// available backend for a project and merges their ranked lists via C12.
// It is the single entry point C9's compute functions call for a
// per-project search.
type Router struct {
	backends map[Kind]Backend
	strategy Strategy
	weights  map[string]float64
}

// NewRouter constructs a Router over the given backend set, defaulting
// to RRF fusion (spec §4.12 "RRF (default)").
func NewRouter(backends map[Kind]Backend) *Router {
	return &Router{backends: backends, strategy: StrategyRRF}
}

// WithStrategy returns a Router configured to merge with strategy (and,
// for weighted, the given per-backend weights; nil uses DefaultWeights).
func (r *Router) WithStrategy(strategy Strategy, weights map[string]float64) *Router {
	cp := *r
	cp.strategy = strategy
	cp.weights = weights
	return &cp
}

// Route queries every backend available for projectID concurrently-free
// (backends are themselves expected to be fast local lookups) and
// fuses the results. If no backend is available it degrades via
// SearchOneDegraded instead of failing outright (spec §4.14). If backends
// are available but every one of them fails, Route returns the last error.
func (r *Router) Route(ctx context.Context, projectID, query string, maxResults int) ([]Result, error) {
	var ranked []BackendRanked
	var lastErr error
	anyAvailable := false

	for _, kind := range []Kind{KindVector, KindFulltext, KindRegex} {
		b, ok := r.backends[kind]
		if !ok || !b.Available(projectID) {
			continue
		}
		anyAvailable = true
		results, err := b.Search(ctx, projectID, query, maxResults)
		if err != nil {
			lastErr = err
			continue // a failing backend is skipped while another one answers
		}
		ranked = append(ranked, BackendRanked{Backend: string(kind), Results: results})
	}

	if anyAvailable && len(ranked) == 0 {
		return nil, fmt.Errorf("every available backend failed: %w", lastErr)
	}

	if !anyAvailable {
		degraded, err := SearchOneDegraded(ctx, r.backends, DegradationChain, projectID, query, maxResults)
		if err != nil {
			return nil, fmt.Errorf("degraded search: %w", err)
		}
		return degraded.Results, nil
	}

	if r.strategy == StrategyWeighted {
		return MergeWeighted(ranked, r.weights, maxResults), nil
	}
	return MergeRRF(ranked, maxResults), nil
}
