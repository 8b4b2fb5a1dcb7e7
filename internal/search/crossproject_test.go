// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	lxerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
)

type fakeBackend struct {
	kind    Kind
	results map[string][]Result // projectID -> results
	fail    map[string]bool
	delay   map[string]time.Duration
}

func (b *fakeBackend) Name() string { return string(b.kind) }
func (b *fakeBackend) Available(projectID string) bool {
	_, ok := b.results[projectID]
	return ok || b.fail[projectID]
}
func (b *fakeBackend) Search(ctx context.Context, projectID, query string, limit int) ([]Result, error) {
	if d, ok := b.delay[projectID]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.fail[projectID] {
		return nil, errors.New("backend boom")
	}
	return b.results[projectID], nil
}

type fakeResolver struct{ ids []string }

func (f fakeResolver) AllProjectIDs() []string { return f.ids }
func (f fakeResolver) Exists(id string) bool {
	for _, x := range f.ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestCrossProjectSearchPartialFailureTolerant(t *testing.T) {
	backend := &fakeBackend{
		kind: KindRegex,
		results: map[string][]Result{
			"A": {{FilePath: "a.go", Score: 1}},
			"C": {{FilePath: "c.go", Score: 1}},
		},
		fail: map[string]bool{"B": true},
	}
	router := NewRouter(map[Kind]Backend{KindRegex: backend})
	resolver := fakeResolver{ids: []string{"A", "B", "C"}}

	res, err := CrossProjectSearch(context.Background(), router, resolver, "needle", nil, 10, time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessfulProjects)
	require.Equal(t, 1, res.FailedProjects)
	require.Equal(t, 2, res.TotalResults)
}

func TestCrossProjectSearchUnknownProjectID(t *testing.T) {
	backend := &fakeBackend{kind: KindRegex, results: map[string][]Result{"A": {}}}
	router := NewRouter(map[Kind]Backend{KindRegex: backend})
	resolver := fakeResolver{ids: []string{"A"}}

	_, err := CrossProjectSearch(context.Background(), router, resolver, "needle", []string{"ghost"}, 10, time.Second)
	require.Error(t, err)
	kind, ok := lxerrors.KindOf(err)
	require.True(t, ok)
	require.Equal(t, lxerrors.KindProjectNotFound, kind)
}

func TestCrossProjectSearchAllProjectsFailed(t *testing.T) {
	backend := &fakeBackend{kind: KindRegex, fail: map[string]bool{"A": true, "B": true}}
	router := NewRouter(map[Kind]Backend{KindRegex: backend})
	resolver := fakeResolver{ids: []string{"A", "B"}}

	_, err := CrossProjectSearch(context.Background(), router, resolver, "needle", nil, 10, time.Second)
	require.Error(t, err)
	kind, ok := lxerrors.KindOf(err)
	require.True(t, ok)
	require.Equal(t, lxerrors.KindAllProjectsFailed, kind)
}

func TestCrossProjectSearchPerProjectTimeout(t *testing.T) {
	backend := &fakeBackend{
		kind:    KindRegex,
		results: map[string][]Result{"SLOW": {{FilePath: "x.go", Score: 1}}, "FAST": {{FilePath: "y.go", Score: 1}}},
		delay:   map[string]time.Duration{"SLOW": 50 * time.Millisecond},
	}
	router := NewRouter(map[Kind]Backend{KindRegex: backend})
	resolver := fakeResolver{ids: []string{"SLOW", "FAST"}}

	res, err := CrossProjectSearch(context.Background(), router, resolver, "needle", nil, 10, 5*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1, res.SuccessfulProjects)
	require.Equal(t, 1, res.FailedProjects)
	for _, r := range res.ProjectResults {
		if r.ProjectID == "SLOW" {
			require.Equal(t, ProjectTimeout, r.Status)
		}
	}
}

func TestValidatePatternRejectsPathTraversalAndNullBytes(t *testing.T) {
	require.Error(t, ValidatePattern("../../etc/passwd"))
	require.Error(t, ValidatePattern("bad\x00byte"))
	require.Error(t, ValidatePattern(""))
}

func TestValidatePatternAcceptsOrdinaryPattern(t *testing.T) {
	require.NoError(t, ValidatePattern("func.*Search"))
}
