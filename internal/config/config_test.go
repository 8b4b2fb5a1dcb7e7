// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThresholdOrderingInvariant(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory.WarningPct = 0.95
	cfg.Memory.PromptPct = 0.90
	require.Error(t, cfg.Validate())
}

func TestGlobalIndexMBBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory.TotalBudgetMB = 1000
	cfg.Memory.GlobalIndexMB = 900 // > 50%
	require.Error(t, cfg.Validate())

	cfg.Memory.GlobalIndexMB = 50 // < 10%
	require.Error(t, cfg.Validate())

	cfg.Memory.GlobalIndexMB = 300 // within range
	require.NoError(t, cfg.Validate())
}

func TestReloadAtomicityScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Memory.TotalBudgetMB = 4096
	require.NoError(t, Save(cfg, path))

	mgr, err := NewManager(cfg, path)
	require.NoError(t, err)

	var seenOld, seenNew int
	mgr.Subscribe(func(old, new *Config) {
		seenOld = old.Memory.TotalBudgetMB
		seenNew = new.Memory.TotalBudgetMB
	})

	valid := DefaultConfig()
	valid.Memory.TotalBudgetMB = 6144
	valid.Memory.GlobalIndexMB = 1024 // keep within [10%, 50%] of the new budget
	require.NoError(t, Save(valid, path))

	status, err := mgr.Reload()
	require.NoError(t, err)
	require.Equal(t, ReloadSuccess, status)
	require.Equal(t, 4096, seenOld)
	require.Equal(t, 6144, seenNew)
	require.Equal(t, 6144, mgr.Current().Memory.TotalBudgetMB)

	// Write an invalid config: warning_% > prompt_%.
	invalidYAML := `
version: "1"
memory:
  total_budget_mb: 6144
  global_index_mb: 1024
  warning_pct: 0.95
  prompt_pct: 0.90
  emergency_pct: 0.98
projects:
  estimated_mb: 128
  priority: normal
  max_file_size: 1048576
performance:
  cache_enabled: true
  cache_ttl_seconds: 300
  parallel_workers: 4
  batch_size: 500
`
	require.NoError(t, os.WriteFile(path, []byte(invalidYAML), 0600))

	status, err = mgr.Reload()
	require.Error(t, err)
	require.Equal(t, ReloadValidationFailed, status)

	// A read after a failed reload still observes the old (6144) config.
	require.Equal(t, 6144, mgr.Current().Memory.TotalBudgetMB)
}

func TestReloadReentrantReturnsAlreadyInProgress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := DefaultConfig()
	require.NoError(t, Save(cfg, path))

	mgr, err := NewManager(cfg, path)
	require.NoError(t, err)

	mgr.mu.Lock()
	mgr.reloading = true
	mgr.mu.Unlock()

	status, err := mgr.Reload()
	require.NoError(t, err)
	require.Equal(t, ReloadAlreadyInProgress, status)
}
