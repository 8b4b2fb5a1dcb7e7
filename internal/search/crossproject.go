// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	lxerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
)

// ProjectStatus is one project's outcome within a cross-project search.
type ProjectStatus string

const (
	ProjectOK      ProjectStatus = "ok"
	ProjectError   ProjectStatus = "error"
	ProjectTimeout ProjectStatus = "timeout"
)

// ProjectSearchResult is one project's contribution to a fan-out (spec
// §4.13 step 4).
type ProjectSearchResult struct {
	ProjectID string
	Status    ProjectStatus
	Matches   int
	Results   []Result
	Err       error
}

// CrossProjectSearchResult is the aggregate fan-out outcome (spec §4.13
// step 5), also the value C9's compute_fn returns for cacheable
// cross-project queries.
type CrossProjectSearchResult struct {
	ProjectResults     []ProjectSearchResult
	TotalResults       int
	SuccessfulProjects int
	FailedProjects     int
}

// maxPatternLength bounds the query string (spec §4.13 step 1).
const maxPatternLength = 1024

// forbiddenSubstrings reject obviously malicious patterns (spec §4.13
// step 1: "reject obviously malicious substrings like ../, null bytes,
// path-traversal fragments").
var forbiddenSubstrings = []string{"../", "..\\", "\x00"}

// ValidatePattern implements spec §4.13 step 1.
func ValidatePattern(pattern string) error {
	if len(pattern) == 0 {
		return lxerrors.NewInvalidPattern(pattern, "pattern must not be empty")
	}
	if len(pattern) > maxPatternLength {
		return lxerrors.NewInvalidPattern(pattern, "pattern exceeds maximum length")
	}
	for _, bad := range forbiddenSubstrings {
		if strings.Contains(pattern, bad) {
			return lxerrors.NewInvalidPattern(pattern, "pattern contains a path-traversal or null-byte fragment")
		}
	}
	if strings.Count(pattern, "*") > 20 || strings.Count(pattern, "|") > 20 {
		return lxerrors.NewInvalidPattern(pattern, "pattern has an excessive number of wildcards or alternations")
	}
	return nil
}

// ProjectResolver answers which registered project ids exist, letting
// this package stay independent of the registry's storage concerns.
type ProjectResolver interface {
	AllProjectIDs() []string
	Exists(id string) bool
}

// CrossProjectSearch is the C13 entry point: it validates pattern,
// resolves project_ids, fans out to each project's Router.Route with a
// per-project timeout, and tolerates partial failure (spec §4.13).
func CrossProjectSearch(
	ctx context.Context,
	router *Router,
	resolver ProjectResolver,
	pattern string,
	projectIDs []string,
	maxResultsPerProject int,
	perProjectTimeout time.Duration,
) (CrossProjectSearchResult, error) {
	if err := ValidatePattern(pattern); err != nil {
		return CrossProjectSearchResult{}, err
	}

	targets := projectIDs
	if len(targets) == 0 {
		targets = resolver.AllProjectIDs()
	} else {
		for _, id := range targets {
			if !resolver.Exists(id) {
				return CrossProjectSearchResult{}, lxerrors.NewProjectNotFound(id)
			}
		}
	}

	if perProjectTimeout <= 0 {
		perProjectTimeout = DefaultBackendTimeout
	}

	results := make([]ProjectSearchResult, len(targets))
	var mu sync.Mutex
	var g errgroup.Group

	for i, id := range targets {
		i, id := i, id
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, perProjectTimeout)
			defer cancel()

			matches, err := router.Route(pctx, id, pattern, maxResultsPerProject)
			var r ProjectSearchResult
			switch {
			case err != nil && pctx.Err() == context.DeadlineExceeded:
				r = ProjectSearchResult{ProjectID: id, Status: ProjectTimeout, Err: err}
			case err != nil:
				r = ProjectSearchResult{ProjectID: id, Status: ProjectError, Err: err}
			default:
				r = ProjectSearchResult{ProjectID: id, Status: ProjectOK, Matches: len(matches), Results: matches}
			}
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil // a single project's failure never aborts the group (spec §4.13 step 3)
		})
	}
	_ = g.Wait() // errors are captured per-result above, never propagated from the group itself

	agg := CrossProjectSearchResult{ProjectResults: results}
	for _, r := range results {
		if r.Status == ProjectOK {
			agg.SuccessfulProjects++
			agg.TotalResults += r.Matches
		} else {
			agg.FailedProjects++
		}
	}

	if len(targets) > 0 && agg.SuccessfulProjects == 0 {
		failedIDs := make([]string, 0, len(results))
		for _, r := range results {
			failedIDs = append(failedIDs, r.ProjectID)
		}
		return agg, lxerrors.NewAllProjectsFailed(failedIDs)
	}
	return agg, nil
}
