// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"time"
)

// Backend is the common contract every search backend implements (spec
// §4.11). Adapters wrap a concrete engine (coder/hnsw for vector,
// blevesearch/bleve for full-text, stdlib regexp for regex) behind this interface so the router and the degradation
// chain never depend on a concrete engine type.
type Backend interface {
	Name() string
	Search(ctx context.Context, projectID, query string, limit int) ([]Result, error)
	// Available reports whether the backend is currently usable for
	// projectID (e.g. its index files exist and loaded without error).
	Available(projectID string) bool
}

// Kind enumerates the three backend families spec §4.11 names.
type Kind string

const (
	KindVector   Kind = "vector"
	KindFulltext Kind = "fulltext"
	KindRegex    Kind = "regex"
)

// DegradationChain orders fallback preference per spec §4.14: semantic
// search is the ideal, full-text is the next best approximation, and a
// literal regex/grep scan is the backstop that is "always available, if
// slow" because it needs no built index at all.
var DegradationChain = []Kind{KindVector, KindFulltext, KindRegex}

// SearchOneDegraded tries each backend of chain, in order, against
// projectID until one reports Available and returns results without
// error; it records which backend actually served the query (spec §4.14
// "degraded: true flag + which backend served it").
func SearchOneDegraded(ctx context.Context, backends map[Kind]Backend, chain []Kind, projectID, query string, limit int) (DegradedResult, error) {
	if chain == nil {
		chain = DegradationChain
	}
	var lastErr error
	for i, kind := range chain {
		b, ok := backends[kind]
		if !ok || !b.Available(projectID) {
			continue
		}
		results, err := b.Search(ctx, projectID, query, limit)
		if err != nil {
			lastErr = err
			continue
		}
		return DegradedResult{
			Results:    results,
			ServedBy:   kind,
			Degraded:   i > 0,
			Attempted:  chain[:i+1],
		}, nil
	}
	if lastErr != nil {
		return DegradedResult{}, lastErr
	}
	return DegradedResult{Attempted: chain}, nil
}

// DegradedResult reports which backend actually served a degraded query.
type DegradedResult struct {
	Results   []Result
	ServedBy  Kind
	Degraded  bool
	Attempted []Kind
}

// DefaultBackendTimeout is the per-backend call budget spec §4.13
// attaches to cross-project fan-out; a single project's slow backend
// must not stall the others.
const DefaultBackendTimeout = 5 * time.Second
