// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tier1 implements the Tier 1 Metadata Store (C8): always-fresh,
// in-process project metadata with lazily recomputed global aggregates.
// It subscribes to the Event Bus (C1) and applies project_indexed /
// project_updated events synchronously, matching spec §5's ordering
// guarantee ("a project_indexed event is fully applied before any later
// observer sees either it or a later event").
package tier1

import (
	"sort"
	"strings"
	"sync"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/eventbus"
)

// IndexStatus is the closed set of project index states (spec §3).
type IndexStatus string

const (
	StatusBuilding  IndexStatus = "building"
	StatusCompleted IndexStatus = "completed"
	StatusError     IndexStatus = "error"
	StatusPartial   IndexStatus = "partial"
)

// ProjectMetadata is the Tier 1 record for one project (spec §3).
type ProjectMetadata struct {
	ID               string
	Path             string
	Name             string
	LastIndexed      int64 // unix nanos
	SymbolCount      int
	FileCount        int
	LanguageCounts   map[string]int
	DependencyIDs    []string
	Health           float64
	Status           IndexStatus
	EstimatedSizeMB  float64
	ErrorMessage     string
}

func (p ProjectMetadata) clone() ProjectMetadata {
	cp := p
	cp.LanguageCounts = make(map[string]int, len(p.LanguageCounts))
	for k, v := range p.LanguageCounts {
		cp.LanguageCounts[k] = v
	}
	cp.DependencyIDs = append([]string(nil), p.DependencyIDs...)
	return cp
}

// GlobalStats is the derived, never-persisted aggregate view (spec §3).
type GlobalStats struct {
	TotalProjects int
	TotalFiles    int
	TotalSymbols  int
	Languages     map[string]int
	MeanHealth    float64
	TotalSizeMB   float64
}

// ProjectIndexedPayload is the event_bus payload for "project_indexed"
// and "project_updated".
type ProjectIndexedPayload struct {
	ID              string
	Path            string
	Name            string
	Status          IndexStatus
	FileCount       int
	SymbolCount     int
	LanguageCounts  map[string]int
	DependencyIDs   []string
	EstimatedSizeMB float64
	ErrorMessage    string
	IndexedAtNanos  int64
}

// healthFor maps status to the health score of spec §4.8: completed→1.0,
// partial→0.7, building→0.5, error→0.0.
func healthFor(status IndexStatus) float64 {
	switch status {
	case StatusCompleted:
		return 1.0
	case StatusPartial:
		return 0.7
	case StatusBuilding:
		return 0.5
	default:
		return 0.0
	}
}

// Store holds all projects' metadata in process memory.
type Store struct {
	mu          sync.RWMutex
	projects    map[string]ProjectMetadata
	dirty       bool
	cachedStats GlobalStats

	onProjectChange func(projectID string)
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{projects: make(map[string]ProjectMetadata)}
}

// OnProjectChange registers a callback fired (under no lock) after a
// project's metadata changes — Tier 2 (C9) uses this to call
// mark_project_stale without Tier 1 depending on Tier 2 (spec §2 data
// flow: "C8 synchronously updates Tier 1; C9 marks ... stale").
func (s *Store) OnProjectChange(fn func(projectID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProjectChange = fn
}

// Subscribe wires the store to bus events "project_indexed" and
// "project_updated".
func (s *Store) Subscribe(bus *eventbus.Bus) {
	handler := func(evt eventbus.Event) error {
		payload, ok := evt.Payload.(ProjectIndexedPayload)
		if !ok {
			return nil
		}
		s.Apply(payload)
		return nil
	}
	bus.Subscribe("project_indexed", handler)
	bus.Subscribe("project_updated", handler)
}

// Apply replaces a project's metadata atomically (spec §4.8). Applying
// the same payload twice is idempotent — the second application
// overwrites with bit-identical data, per spec §8's round-trip law.
func (s *Store) Apply(p ProjectIndexedPayload) {
	meta := ProjectMetadata{
		ID:              p.ID,
		Path:            p.Path,
		Name:            p.Name,
		LastIndexed:     p.IndexedAtNanos,
		SymbolCount:     p.SymbolCount,
		FileCount:       p.FileCount,
		LanguageCounts:  p.LanguageCounts,
		DependencyIDs:   p.DependencyIDs,
		Health:          healthFor(p.Status),
		Status:          p.Status,
		EstimatedSizeMB: p.EstimatedSizeMB,
		ErrorMessage:    p.ErrorMessage,
	}

	s.mu.Lock()
	s.projects[p.ID] = meta.clone()
	s.dirty = true
	cb := s.onProjectChange
	s.mu.Unlock()

	if cb != nil {
		cb(p.ID)
	}
}

// Get returns one project's metadata.
func (s *Store) Get(id string) (ProjectMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return ProjectMetadata{}, false
	}
	return p.clone(), true
}

// HealthCategory buckets a project's Health score for dashboard filtering,
// mirroring original_source/ dashboard.py's HealthCategory enum
// (healthy >= 0.8, warning 0.5-0.79, critical < 0.5).
type HealthCategory string

const (
	HealthHealthy  HealthCategory = "healthy"
	HealthWarning  HealthCategory = "warning"
	HealthCritical HealthCategory = "critical"
)

func categoryFor(health float64) HealthCategory {
	switch {
	case health >= 0.8:
		return HealthHealthy
	case health >= 0.5:
		return HealthWarning
	default:
		return HealthCritical
	}
}

// SortField enumerates the dashboard sort keys, ported from
// original_source/ dashboard.py's SortField enum.
type SortField string

const (
	SortByName          SortField = "name"
	SortByPath          SortField = "path"
	SortByLastIndexed   SortField = "last_indexed"
	SortByFileCount     SortField = "file_count"
	SortBySymbolCount   SortField = "symbol_count"
	SortByHealthScore   SortField = "health_score"
	SortBySizeMB        SortField = "size_mb"
	SortByLanguageCount SortField = "language_count"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Filters narrows ListProjects (spec §4.8), expanded with the dashboard
// filter surface from original_source/ dashboard.py's DashboardFilter
// (health-category bucket, min/max file and symbol counts, ID prefix).
type Filters struct {
	Status          IndexStatus
	Language        string
	MinHealth       float64
	MaxHealth       float64 // 0 means unbounded
	HealthCategory  HealthCategory
	MinFileCount    int
	MaxFileCount    int // 0 means unbounded
	MinSymbolCount  int
	MaxSymbolCount  int // 0 means unbounded
	ProjectIDPrefix string
}

// Sort orders ListProjects' result, ported from original_source/
// dashboard.py's DashboardSort (field + order, default name/asc).
type Sort struct {
	Field SortField
	Order SortOrder
}

// ListProjects returns projects matching filters, sorted per sortBy (zero
// value sorts by name ascending, the dashboard default), up to limit
// (0 = no limit). Language membership is case-insensitive.
func (s *Store) ListProjects(f Filters, sortBy Sort, limit int) []ProjectMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProjectMetadata, 0, len(s.projects))
	for _, p := range s.projects {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Language != "" && !hasLanguage(p.LanguageCounts, f.Language) {
			continue
		}
		if p.Health < f.MinHealth {
			continue
		}
		if f.MaxHealth > 0 && p.Health > f.MaxHealth {
			continue
		}
		if f.HealthCategory != "" && categoryFor(p.Health) != f.HealthCategory {
			continue
		}
		if p.FileCount < f.MinFileCount {
			continue
		}
		if f.MaxFileCount > 0 && p.FileCount > f.MaxFileCount {
			continue
		}
		if p.SymbolCount < f.MinSymbolCount {
			continue
		}
		if f.MaxSymbolCount > 0 && p.SymbolCount > f.MaxSymbolCount {
			continue
		}
		if f.ProjectIDPrefix != "" && !strings.HasPrefix(p.ID, f.ProjectIDPrefix) {
			continue
		}
		out = append(out, p.clone())
	}

	sortProjects(out, sortBy)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortProjects(projects []ProjectMetadata, sortBy Sort) {
	field := sortBy.Field
	if field == "" {
		field = SortByName
	}
	less := func(i, j int) bool {
		a, b := projects[i], projects[j]
		switch field {
		case SortByPath:
			return a.Path < b.Path
		case SortByLastIndexed:
			return a.LastIndexed < b.LastIndexed
		case SortByFileCount:
			return a.FileCount < b.FileCount
		case SortBySymbolCount:
			return a.SymbolCount < b.SymbolCount
		case SortByHealthScore:
			return a.Health < b.Health
		case SortBySizeMB:
			return a.EstimatedSizeMB < b.EstimatedSizeMB
		case SortByLanguageCount:
			return len(a.LanguageCounts) < len(b.LanguageCounts)
		default:
			return a.Name < b.Name
		}
	}
	if sortBy.Order == SortDesc {
		sort.SliceStable(projects, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(projects, less)
}

func hasLanguage(counts map[string]int, lang string) bool {
	want := strings.ToLower(lang)
	for k := range counts {
		if strings.ToLower(k) == want {
			return true
		}
	}
	return false
}

// GlobalStats recomputes (if dirty) and returns the aggregate view.
func (s *Store) GlobalStats() GlobalStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.cachedStats = computeStats(s.projects)
		s.dirty = false
	}
	return s.cachedStats
}

func computeStats(projects map[string]ProjectMetadata) GlobalStats {
	stats := GlobalStats{Languages: make(map[string]int)}
	var healthSum float64
	for _, p := range projects {
		stats.TotalProjects++
		stats.TotalFiles += p.FileCount
		stats.TotalSymbols += p.SymbolCount
		stats.TotalSizeMB += p.EstimatedSizeMB
		healthSum += p.Health
		for lang, count := range p.LanguageCounts {
			stats.Languages[lang] += count
		}
	}
	if stats.TotalProjects > 0 {
		stats.MeanHealth = healthSum / float64(stats.TotalProjects)
	}
	return stats
}

// Dashboard is the payload returned by dashboard() (spec §6).
type Dashboard struct {
	Projects []ProjectMetadata
	Stats    GlobalStats
}

// GetDashboardData returns the full project list plus lazily recomputed
// global stats. Required to complete in <1ms for ≤100 projects (spec
// §4.8) — the map copy dominates cost and is linear in project count.
func (s *Store) GetDashboardData() Dashboard {
	s.mu.RLock()
	projects := make([]ProjectMetadata, 0, len(s.projects))
	for _, p := range s.projects {
		projects = append(projects, p.clone())
	}
	dirty := s.dirty
	cached := s.cachedStats
	all := s.projects
	s.mu.RUnlock()

	stats := cached
	if dirty {
		s.mu.Lock()
		if s.dirty {
			s.cachedStats = computeStats(all)
			s.dirty = false
		}
		stats = s.cachedStats
		s.mu.Unlock()
	}

	return Dashboard{Projects: projects, Stats: stats}
}

// Remove deletes a project's metadata (used by unregister / orphan purge
// flows in C15/C17).
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	s.dirty = true
}
