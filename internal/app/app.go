// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app composes every leaf component (C1-C19) into one running
// Global Index instance. It mirrors the teacher's cmd/cie/serve.go
// cieServer: one struct holding every subsystem's handle, constructed
// bottom-up per spec §2's dependency ordering and torn down top-down.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/config"
	lxerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/eventbus"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/memory"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/monitoring"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/registry"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/search"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/tier1"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/tier2"
	"github.com/scooter-lacroix/LeIndex-sub001/pkg/chunking"
)

// App is one running Global Index process: every component wired
// together and exercised through the same paths a real deployment
// would use (indexing a project touches the registry, the two search
// backends, Tier 1, and the event bus in the same call).
type App struct {
	DataDir string

	Logger *zap.Logger
	Config *config.Manager
	Bus    *eventbus.Bus

	Tier1 *tier1.Store
	Tier2 *tier2.Cache

	Tracker      *memory.Tracker
	StateMachine *memory.StateMachine
	Actions      *memory.ActionQueue
	memoryCron   *cron.Cron

	Registry *registry.Registry
	Lock     *registry.ArtifactLock
	Backup   *registry.BackupScheduler

	Extractor *chunking.Extractor
	Vector    *search.VectorBackend
	Fulltext  *search.FulltextBackend
	Regex     *search.RegexBackend
	Router    *search.Router

	Watcher *Watcher

	projectRootsMu sync.RWMutex
	projectRoots   map[string]string // project id -> indexed repo root
}

// New wires every component in the bottom-up order spec §2 lists them
// in: Event Bus and Config Manager first (nothing depends on anything),
// then Tier 1 (subscribes to the bus), then Tier 2, then the memory
// subsystem (reads Tier 1/Tier 2 for its breakdown), then the durable
// Registry, then the search backends and Router that sit on top of
// everything an indexed project produces.
func New(dataDir string, development bool) (*App, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("app: create data dir: %w", err)
	}

	logger, err := monitoring.NewOpsLogger(development)
	if err != nil {
		return nil, fmt.Errorf("app: build logger: %w", err)
	}

	configPath := filepath.Join(dataDir, "config.yaml")
	cfg := config.DefaultConfig()
	if _, statErr := os.Stat(configPath); statErr == nil {
		if loaded, loadErr := config.Load(configPath); loadErr == nil {
			cfg = loaded
		}
	}
	mgr, err := config.NewManager(cfg, configPath)
	if err != nil {
		return nil, fmt.Errorf("app: config manager: %w", err)
	}

	bus := eventbus.New()
	bus.OnDeliveryError(func(evtType string, _ eventbus.Token, deliveryErr error) {
		monitoring.Component(logger, "eventbus").Warn("subscriber removed after delivery error",
			zap.String("event_type", evtType), zap.Error(deliveryErr))
	})

	t1 := tier1.NewStore()
	t1.Subscribe(bus)

	t2 := tier2.New(int64(cfg.Memory.GlobalIndexMB)<<20, cfg.Performance.ParallelWorkers)
	t1.OnProjectChange(func(projectID string) { t2.MarkProjectStale(projectID) })

	tracker, err := memory.NewTracker(100, func() (globalIndexMB, projectsMB, overheadMB float64, loadedFiles, cachedQueries int) {
		stats := t1.GlobalStats()
		cacheStats := t2.Stats()
		return stats.TotalSizeMB, stats.TotalSizeMB, 0, stats.TotalFiles, int(cacheStats.Queries)
	})
	if err != nil {
		return nil, fmt.Errorf("app: memory tracker: %w", err)
	}

	sm, err := memory.NewStateMachine(memory.Thresholds{
		Warning:   cfg.Memory.WarningPct,
		Prompt:    cfg.Memory.PromptPct,
		Emergency: cfg.Memory.EmergencyPct,
	})
	if err != nil {
		return nil, fmt.Errorf("app: threshold state machine: %w", err)
	}

	dbPath := filepath.Join(dataDir, "registry.db")
	reg, err := registry.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("app: open registry: %w", err)
	}

	lock := registry.NewArtifactLock(filepath.Join(dataDir, "registry.lock"))

	return newWithRegistry(dataDir, logger, mgr, bus, t1, t2, tracker, sm, reg, lock)
}

func newWithRegistry(
	dataDir string,
	logger *zap.Logger,
	mgr *config.Manager,
	bus *eventbus.Bus,
	t1 *tier1.Store,
	t2 *tier2.Cache,
	tracker *memory.Tracker,
	sm *memory.StateMachine,
	reg *registry.Registry,
	lock *registry.ArtifactLock,
) (*App, error) {
	dbPath := filepath.Join(dataDir, "registry.db")
	backupDir := filepath.Join(dataDir, "backups")
	backup := registry.NewBackupScheduler(dbPath, backupDir, 7, slog.Default())
	if err := backup.Start(""); err != nil {
		monitoring.Component(logger, "backup_scheduler").Warn("failed to start", zap.Error(err))
	}

	extractor := chunking.NewExtractor()
	vector := search.NewVectorBackend(stubEmbedder)
	fulltext := search.NewFulltextBackend()
	regexBackend := search.NewRegexBackend()

	router := search.NewRouter(map[search.Kind]search.Backend{
		search.KindVector:   vector,
		search.KindFulltext: fulltext,
		search.KindRegex:    regexBackend,
	})

	a := &App{
		DataDir:      dataDir,
		Logger:       logger,
		Config:       mgr,
		Bus:          bus,
		Tier1:        t1,
		Tier2:        t2,
		Tracker:      tracker,
		StateMachine: sm,
		Actions:      memory.NewActionQueue(),
		Registry:     reg,
		Lock:         lock,
		Backup:       backup,
		Extractor:    extractor,
		Vector:       vector,
		Fulltext:     fulltext,
		Regex:        regexBackend,
		Router:       router,
		projectRoots: make(map[string]string),
	}

	if err := a.startMemoryMonitor(""); err != nil {
		monitoring.Component(logger, "memory").Warn("failed to start sampling cron", zap.Error(err))
	}

	watcher, err := newWatcher(a)
	if err != nil {
		monitoring.Component(logger, "watcher").Warn("failed to start fsnotify watcher", zap.Error(err))
	} else {
		a.Watcher = watcher
		go watcher.Run(context.Background())
	}

	return a, nil
}

// AllProjectIDs implements search.ProjectResolver, backed by the
// registry so cross-project search always reflects durable state.
func (a *App) AllProjectIDs() []string {
	records, err := a.Registry.ListAll()
	if err != nil {
		return nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// Exists implements search.ProjectResolver.
func (a *App) Exists(id string) bool {
	_, err := a.Registry.Get(id)
	return err == nil
}

// IndexProject walks a repository root, extracts chunks from every .go
// file, and feeds the vector and full-text backends (C11), the regex
// backend's root registration, the Tier 1 store (via the event bus, per
// spec §5's ordering guarantee), and the durable Registry (C15) — one
// call exercises nearly every component this app wires together.
func (a *App) IndexProject(ctx context.Context, projectID, repoRoot string) (ProjectStats, error) {
	a.projectRootsMu.Lock()
	a.projectRoots[projectID] = repoRoot
	a.projectRootsMu.Unlock()
	a.Regex.RegisterRoot(projectID, repoRoot)

	var files []string
	err := filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".go" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return ProjectStats{}, lxerrors.NewInternal("app.index", "walk repo root", err)
	}

	var allChunks []chunking.Chunk
	languageCounts := map[string]int{"go": 0}
	for _, f := range files {
		content, readErr := os.ReadFile(f)
		if readErr != nil {
			continue
		}
		rel, relErr := filepath.Rel(repoRoot, f)
		if relErr != nil {
			rel = f
		}
		chunks, extractErr := a.Extractor.ExtractFile(ctx, rel, content)
		if extractErr != nil {
			continue
		}
		allChunks = append(allChunks, chunks...)
		languageCounts["go"]++
	}

	vectorChunks := chunking.ToVectorChunks(allChunks)
	if err := a.Vector.IndexChunks(projectID, vectorChunks); err != nil {
		return ProjectStats{}, err
	}
	if err := a.Fulltext.IndexChunks(projectID, vectorChunks); err != nil {
		return ProjectStats{}, err
	}

	stats := ProjectStats{
		ProjectID:   projectID,
		FileCount:   len(files),
		SymbolCount: len(allChunks),
	}

	a.Bus.Emit(eventbus.Event{
		Type: "project_indexed",
		Payload: tier1.ProjectIndexedPayload{
			ID:              projectID,
			Path:            repoRoot,
			Name:            filepath.Base(repoRoot),
			Status:          tier1.StatusCompleted,
			FileCount:       stats.FileCount,
			SymbolCount:     stats.SymbolCount,
			LanguageCounts:  languageCounts,
			EstimatedSizeMB: estimateSizeMB(stats.FileCount),
			IndexedAtNanos:  time.Now().UnixNano(),
		},
	})

	if _, err := a.Registry.AutoRegister(projectID, repoRoot, stats.FileCount, nil, nil, repoRoot); err != nil {
		return stats, err
	}

	monitoring.RecordRebuild("success")
	monitoring.RecordProjectIndexed()

	if a.Watcher != nil {
		a.Watcher.WatchProject(projectID, repoRoot)
	}

	return stats, nil
}

// ProjectStats is the summary IndexProject reports to its caller.
type ProjectStats struct {
	ProjectID   string
	FileCount   int
	SymbolCount int
}

func estimateSizeMB(fileCount int) float64 {
	return float64(fileCount) * 0.05
}

// stubEmbedder is the default Embedder (search.Embedder): a
// deterministic, dependency-free bag-of-bytes projection. A production
// deployment replaces this with a real embedding provider; the vector
// backend's contract (spec §4.11) only requires a stable mapping from
// text to a fixed-width vector.
func stubEmbedder(text string) ([]float32, error) {
	const dims = 32
	vec := make([]float32, dims)
	for i, b := range []byte(text) {
		vec[i%dims] += float32(b) / 255.0
	}
	return vec, nil
}

// Close shuts down every component top-down: the memory-sampling cron and
// the watcher first, then the backup scheduler (so no snapshot races the
// registry's close), then drains any in-flight Tier 2 rebuilds, and
// finally closes the registry.
func (a *App) Close() error {
	a.stopMemoryMonitor()
	if a.Watcher != nil {
		_ = a.Watcher.Close()
	}
	a.Backup.Stop()
	a.Tier2.WaitForRebuilds(5 * time.Second)
	return a.Registry.Close()
}
