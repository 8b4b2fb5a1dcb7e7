// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunOnceCreatesBackupFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "registry.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("sqlite-bytes"), 0o600))
	backupDir := filepath.Join(dir, "backups")

	s := NewBackupScheduler(dbPath, backupDir, 7, nil)
	require.NoError(t, s.RunOnce())

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRotateKeepsOnlyMaxSnapshots(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o750))

	for i := 0; i < 5; i++ {
		name := filepath.Join(backupDir, "registry-"+string(rune('a'+i))+".db")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o600))
	}

	s := NewBackupScheduler(filepath.Join(dir, "registry.db"), backupDir, 3, nil)
	require.NoError(t, s.rotate())

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 3, "rotation must prune down to maxSnapshots")
}
