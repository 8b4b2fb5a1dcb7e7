// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	lxerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
)

// OrphanEntry is one index payload found on disk with no matching
// registry row (spec §4.16).
type OrphanEntry struct {
	Path           string // absolute path to the orphaned index file
	InferredID     string
	InferredSizeMB float64
}

// FindOrphans scans indexRoot up to maxDepth for well-formed ".idx"
// payload files whose inferred project id is not present in reg. It
// does not follow symlinks outside indexRoot (spec §4.16 "must not
// follow symlinks outside the configured roots").
func FindOrphans(reg *Registry, indexRoot string, maxDepth int) ([]OrphanEntry, error) {
	known, err := reg.ListAll()
	if err != nil {
		return nil, err
	}
	knownIDs := make(map[string]struct{}, len(known))
	for _, rec := range known {
		knownIDs[rec.ID] = struct{}{}
	}

	var orphans []OrphanEntry
	base := filepath.Clean(indexRoot)

	err = filepath.Walk(indexRoot, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil // best-effort: skip unreadable entries
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, linkErr := filepath.EvalSymlinks(path)
			if linkErr != nil || !strings.HasPrefix(target, base) {
				return nil // refuse to follow symlinks escaping the configured root
			}
		}
		if info.IsDir() {
			depth := strings.Count(strings.TrimPrefix(path, base), string(filepath.Separator))
			if depth > maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".idx" {
			return nil
		}

		id := strings.TrimSuffix(filepath.Base(path), ".idx")
		if _, ok := knownIDs[id]; ok {
			return nil
		}

		sizeMB := float64(info.Size()) / (1024 * 1024)
		orphans = append(orphans, OrphanEntry{Path: path, InferredID: id, InferredSizeMB: sizeMB})
		return nil
	})
	if err != nil {
		return nil, lxerrors.NewInternal("orphan_detector", "walk index root", err)
	}
	return orphans, nil
}

// RegisterOrphan adds an orphan to the registry with default metadata
// (spec §4.16 "register: add to registry with defaults").
func RegisterOrphan(reg *Registry, o OrphanEntry) error {
	now := time.Now()
	return reg.Insert(Record{
		ID:            o.InferredID,
		Path:          o.Path,
		CreatedAt:     now,
		IndexedAt:     now,
		IndexLocation: o.Path,
	})
}

// PurgeOrphan deletes the orphaned index file from disk (spec §4.16
// "purge: delete files").
func PurgeOrphan(o OrphanEntry) error {
	if err := os.Remove(o.Path); err != nil {
		return lxerrors.NewOrphanPurge(o.Path, err)
	}
	return nil
}
