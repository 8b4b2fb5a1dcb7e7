// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	lxerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
)

// BackupScheduler runs a startup backup plus a periodic (default 24h)
// backup of the registry database, keeping at most maxSnapshots
// rotated copies (spec §4.17). Grounded on r3e-network-service_layer's
// go.mod, which carries robfig/cron/v3 for exactly this kind of
// calendar-cadence background job.
type BackupScheduler struct {
	dbPath       string
	backupDir    string
	maxSnapshots int
	logger       *slog.Logger

	cron *cron.Cron
}

// NewBackupScheduler constructs a scheduler that backs up dbPath into
// backupDir, retaining at most maxSnapshots rotated copies.
func NewBackupScheduler(dbPath, backupDir string, maxSnapshots int, logger *slog.Logger) *BackupScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSnapshots <= 0 {
		maxSnapshots = 7
	}
	return &BackupScheduler{
		dbPath:       dbPath,
		backupDir:    backupDir,
		maxSnapshots: maxSnapshots,
		logger:       logger,
		cron:         cron.New(),
	}
}

// Start runs an immediate startup backup (spec §4.17 "startup check"),
// then schedules the recurring cadence (default every 24h, expressed as
// a cron spec so callers can tighten it for testing).
func (s *BackupScheduler) Start(cronSpec string) error {
	if err := s.RunOnce(); err != nil {
		s.logger.Warn("backup_scheduler.startup_backup_failed", "error", err)
	}

	if cronSpec == "" {
		cronSpec = "@every 24h"
	}
	_, err := s.cron.AddFunc(cronSpec, func() {
		if err := s.RunOnce(); err != nil {
			s.logger.Warn("backup_scheduler.periodic_backup_failed", "error", err)
		}
	})
	if err != nil {
		return lxerrors.NewInternal("backup_scheduler", "register cron job", err)
	}
	s.cron.Start()
	return nil
}

// Stop gracefully stops the scheduler, waiting up to 60s for any
// in-flight backup to finish (spec §4.17 "graceful shutdown with 60s
// grace").
func (s *BackupScheduler) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.logger.Warn("backup_scheduler.shutdown_grace_exceeded")
	}
}

// RunOnce performs a single backup-and-rotate cycle: copy dbPath into
// backupDir with a timestamped name, then delete the oldest snapshots
// beyond maxSnapshots.
func (s *BackupScheduler) RunOnce() error {
	if err := os.MkdirAll(s.backupDir, 0o750); err != nil {
		return lxerrors.NewInternal("backup_scheduler", "create backup dir", err)
	}

	name := fmt.Sprintf("registry-%s.db", time.Now().UTC().Format("20060102T150405Z"))
	dest := filepath.Join(s.backupDir, name)
	if err := copyFile(s.dbPath, dest); err != nil {
		return lxerrors.NewInternal("backup_scheduler", "copy registry database", err)
	}

	s.logger.Info("backup_scheduler.snapshot_created", "path", dest)
	return s.rotate()
}

func (s *BackupScheduler) rotate() error {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return lxerrors.NewInternal("backup_scheduler", "list backup dir", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // timestamped names sort chronologically

	excess := len(names) - s.maxSnapshots
	for i := 0; i < excess; i++ {
		path := filepath.Join(s.backupDir, names[i])
		if err := os.Remove(path); err != nil {
			s.logger.Warn("backup_scheduler.rotation_remove_failed", "path", path, "error", err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
