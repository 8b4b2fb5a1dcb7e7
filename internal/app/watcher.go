// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/monitoring"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/registry"
)

// watchSkipDirs mirrors the teacher's cmd/cie/watch.go: directories that
// burn file-descriptor budget and watch-event noise without ever holding
// source worth reindexing.
var watchSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, "bin": true,
}

const watchDebounce = 2 * time.Second

// Watcher is the fsnotify-backed project-root monitor: it watches every
// indexed project's repository tree and, on a debounced burst of
// filesystem events, triggers an incremental reindex of that project
// plus an orphan rescan of the data root (spec §4.16's detection half).
// Grounded on teacher cmd/cie/watch.go's runWatchAndReindex.
type Watcher struct {
	app *App
	fsw *fsnotify.Watcher

	mu     sync.Mutex
	roots  map[string]string      // watched dir -> project id that owns it
	timers map[string]*time.Timer // project id -> pending debounce timer

	logger *zap.Logger
	done   chan struct{}
}

// newWatcher constructs a Watcher bound to a. It watches nothing until
// WatchProject registers a project's root.
func newWatcher(a *App) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		app:    a,
		fsw:    fsw,
		roots:  make(map[string]string),
		timers: make(map[string]*time.Timer),
		logger: a.Logger,
		done:   make(chan struct{}),
	}, nil
}

// WatchProject adds repoRoot (and every non-skipped subdirectory) to the
// watch set for projectID. Safe to call again for a project already
// watched — fsnotify.Add on an already-watched path is a no-op.
func (w *Watcher) WatchProject(projectID, repoRoot string) {
	count := 0
	_ = filepath.Walk(repoRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if watchSkipDirs[base] || (strings.HasPrefix(base, ".") && path != repoRoot) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		count++
		return nil
	})

	w.mu.Lock()
	w.roots[repoRoot] = projectID
	w.mu.Unlock()

	monitoring.Component(w.logger, "watcher").Info("watching project root",
		zap.String("project_id", projectID), zap.Int("dirs", count))
}

// projectFor returns the project id whose watched root is the longest
// prefix match of path, the same "which root owns this event" lookup
// teacher watch.go skips by only ever watching one repo at a time —
// Global Index watches many, so the lookup is explicit here.
func (w *Watcher) projectFor(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var bestRoot, bestID string
	for root, id := range w.roots {
		if strings.HasPrefix(path, root) && len(root) > len(bestRoot) {
			bestRoot, bestID = root, id
		}
	}
	return bestID, bestRoot != ""
}

// Run drains fsnotify events until ctx is done or Close is called,
// debouncing per-project bursts before triggering a reindex.
func (w *Watcher) Run(ctx context.Context) {
	log := monitoring.Component(w.logger, "watcher")
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			projectID, found := w.projectFor(event.Name)
			if !found {
				continue
			}
			w.scheduleReindex(projectID)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("fsnotify error", zap.Error(err))
		}
	}
}

// scheduleReindex (re)starts projectID's debounce timer; the timer's
// fire is what actually triggers the reindex, so a burst of events
// collapses into a single rebuild (teacher watch.go's debounce).
func (w *Watcher) scheduleReindex(projectID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[projectID]; ok {
		t.Stop()
	}
	w.timers[projectID] = time.AfterFunc(watchDebounce, func() { w.reindex(projectID) })
}

// reindex re-walks and re-feeds projectID's backends, then rescans the
// data root for orphaned index payloads (spec §4.16's "change detection
// feeding ... orphan rescans").
func (w *Watcher) reindex(projectID string) {
	log := monitoring.Component(w.logger, "watcher")

	w.app.projectRootsMu.RLock()
	root := w.app.projectRoots[projectID]
	w.app.projectRootsMu.RUnlock()
	if root == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := w.app.IndexProject(ctx, projectID, root); err != nil {
		log.Warn("auto-reindex failed", zap.String("project_id", projectID), zap.Error(err))
		return
	}
	log.Info("auto-reindex completed", zap.String("project_id", projectID))

	orphans, err := registry.FindOrphans(w.app.Registry, w.app.DataDir, 4)
	if err != nil {
		log.Warn("orphan rescan failed", zap.Error(err))
		return
	}
	if len(orphans) > 0 {
		log.Warn("orphan rescan found unregistered index payloads", zap.Int("count", len(orphans)))
	}
}

// Close stops the watch loop and releases the underlying fsnotify
// watcher's file descriptors.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
