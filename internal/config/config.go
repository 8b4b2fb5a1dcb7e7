// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config implements the Config Manager (C6): a hierarchical YAML
// configuration, validated on load/reload, atomically swapped so readers
// never observe a half-updated struct, with observer fan-out on reload.
//
// Structurally this generalizes the teacher's single-section
// cmd/cie/config.go Config/LoadConfig/SaveConfig into the three-section
// schema (memory/projects/performance) spec §4.6 names.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
	"gopkg.in/yaml.v3"
)

const schemaVersion = "1"

// Priority is a project's eviction/scheduling priority class.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Memory holds the memory-budget section of the config.
type Memory struct {
	TotalBudgetMB  int     `yaml:"total_budget_mb"`
	GlobalIndexMB  int     `yaml:"global_index_mb"`
	WarningPct     float64 `yaml:"warning_pct"`
	PromptPct      float64 `yaml:"prompt_pct"`
	EmergencyPct   float64 `yaml:"emergency_pct"`
}

// Projects holds project-default settings.
type Projects struct {
	EstimatedMB int      `yaml:"estimated_mb"`
	Priority    Priority `yaml:"priority"`
	MaxFileSize int64    `yaml:"max_file_size"`
}

// Performance holds performance-tuning knobs.
type Performance struct {
	CacheEnabled    bool `yaml:"cache_enabled"`
	CacheTTLSeconds int  `yaml:"cache_ttl_seconds"`
	ParallelWorkers int  `yaml:"parallel_workers"`
	BatchSize       int  `yaml:"batch_size"`
}

// Config is the top-level, version-tagged live configuration (spec §3).
type Config struct {
	Version     string      `yaml:"version"`
	Memory      Memory      `yaml:"memory"`
	Projects    Projects    `yaml:"projects"`
	Performance Performance `yaml:"performance"`
}

// DefaultConfig mirrors teacher DefaultConfig's role: sensible local
// development defaults, overridable via the YAML file (no environment
// variables are consulted).
func DefaultConfig() *Config {
	return &Config{
		Version: schemaVersion,
		Memory: Memory{
			TotalBudgetMB: 4096,
			GlobalIndexMB: 512,
			WarningPct:    0.80,
			PromptPct:     0.93,
			EmergencyPct:  0.98,
		},
		Projects: Projects{
			EstimatedMB: 128,
			Priority:    PriorityNormal,
			MaxFileSize: 1 << 20,
		},
		Performance: Performance{
			CacheEnabled:    true,
			CacheTTLSeconds: 300,
			ParallelWorkers: 4,
			BatchSize:       500,
		},
	}
}

// clone deep-copies a Config (spec §4.6 step 3: "deep-copy old and new for
// observer payloads"). Config is a flat value type so a struct copy is a
// true deep copy.
func (c *Config) clone() *Config {
	cp := *c
	return &cp
}

// Validate enforces the rule set of spec §4.6: threshold ordering,
// global_index_mb within [10%, 50%] of total_budget_mb, and basic
// positivity/enum constraints.
func (c *Config) Validate() error {
	if c.Memory.TotalBudgetMB <= 0 {
		return lerrors.NewConfigValidation("memory.total_budget_mb must be positive", nil)
	}
	if !(c.Memory.WarningPct < c.Memory.PromptPct && c.Memory.PromptPct < c.Memory.EmergencyPct) {
		return lerrors.NewConfigValidation(
			fmt.Sprintf("thresholds must satisfy warning < prompt < emergency, got %.2f < %.2f < %.2f",
				c.Memory.WarningPct, c.Memory.PromptPct, c.Memory.EmergencyPct), nil)
	}
	if c.Memory.WarningPct <= 0 || c.Memory.EmergencyPct > 1.0 {
		return lerrors.NewConfigValidation("thresholds must lie in (0, 1]", nil)
	}
	minGI := 0.10 * float64(c.Memory.TotalBudgetMB)
	maxGI := 0.50 * float64(c.Memory.TotalBudgetMB)
	if float64(c.Memory.GlobalIndexMB) < minGI || float64(c.Memory.GlobalIndexMB) > maxGI {
		return lerrors.NewConfigValidation(
			fmt.Sprintf("memory.global_index_mb=%d must be within [10%%, 50%%] of total_budget_mb=%d",
				c.Memory.GlobalIndexMB, c.Memory.TotalBudgetMB), nil)
	}
	switch c.Projects.Priority {
	case PriorityHigh, PriorityNormal, PriorityLow:
	default:
		return lerrors.NewConfigValidation(fmt.Sprintf("projects.priority %q is not one of high|normal|low", c.Projects.Priority), nil)
	}
	if c.Projects.MaxFileSize <= 0 {
		return lerrors.NewConfigValidation("projects.max_file_size must be positive", nil)
	}
	if c.Performance.ParallelWorkers <= 0 || c.Performance.BatchSize <= 0 {
		return lerrors.NewConfigValidation("performance.parallel_workers and batch_size must be positive", nil)
	}
	return nil
}

// ReloadStatus is the outcome of a Manager.Reload call (spec §4.6).
type ReloadStatus string

const (
	ReloadSuccess           ReloadStatus = "success"
	ReloadValidationFailed  ReloadStatus = "validation_failed"
	ReloadAlreadyInProgress ReloadStatus = "already_in_progress"
)

// ReloadEvent records one reload attempt for the bounded history.
type ReloadEvent struct {
	At     time.Time
	Status ReloadStatus
	Detail string
}

// Observer receives deep copies of (old, new) after a successful reload,
// called outside the manager's lock (spec §4.6 step 5, §9 "Observer
// payloads").
type Observer func(old, new *Config)

// Manager owns the single process-wide live Config reference (spec §9
// "Global state"). All reads/writes are serialized by mu; reload is
// re-entrancy guarded by reloading.
type Manager struct {
	mu        sync.RWMutex
	current   *Config
	path      string
	observers []Observer
	reloading bool

	historyMu sync.Mutex
	history   []ReloadEvent
	maxHist   int

	stats struct {
		reloads     int64
		failures    int64
		alreadyBusy int64
	}
}

// NewManager constructs a Manager around an already-validated initial
// config. path is the YAML file backing future Reload calls (may be
// empty if the manager is only ever updated programmatically).
func NewManager(initial *Config, path string) (*Manager, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &Manager{current: initial.clone(), path: path, maxHist: 50}, nil
}

// Current returns a deep copy of the live config. Copying on read keeps
// the zero-cost invariant that a caller can never observe a later
// mutation through a reference they already hold.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

// Subscribe registers an observer for future successful reloads.
func (m *Manager) Subscribe(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// Reload re-reads the config file at m.path, validates it, and atomically
// swaps the live config in on success. On validation failure the old
// config is kept and ReloadValidationFailed is returned. Concurrent
// reloads return ReloadAlreadyInProgress rather than blocking (spec §4.6
// "ALREADY_IN_PROGRESS if invoked re-entrantly").
func (m *Manager) Reload() (ReloadStatus, error) {
	m.mu.Lock()
	if m.reloading {
		m.stats.alreadyBusy++
		m.mu.Unlock()
		return ReloadAlreadyInProgress, nil
	}
	m.reloading = true
	path := m.path
	oldCfy := m.current.clone()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.reloading = false
		m.mu.Unlock()
	}()

	newCfg, err := loadFromFile(path)
	if err == nil {
		err = newCfg.Validate()
	}
	if err != nil {
		m.recordHistory(ReloadEvent{At: time.Now(), Status: ReloadValidationFailed, Detail: err.Error()})
		m.mu.Lock()
		m.stats.failures++
		m.mu.Unlock()
		return ReloadValidationFailed, err
	}

	newCfyForObservers := newCfg.clone()

	m.mu.Lock()
	m.current = newCfg
	m.stats.reloads++
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	// Notify outside the lock (spec §4.6 step 5) so a misbehaving
	// observer cannot deadlock the manager; each call is isolated with a
	// recover so one panicking observer doesn't block the others.
	for _, obs := range observers {
		notifyOne(obs, oldCfy, newCfyForObservers)
	}

	m.recordHistory(ReloadEvent{At: time.Now(), Status: ReloadSuccess})
	return ReloadSuccess, nil
}

func notifyOne(obs Observer, old, new *Config) {
	defer func() { recover() }() //nolint:errcheck // isolate one bad observer
	obs(old, new)
}

func (m *Manager) recordHistory(ev ReloadEvent) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	m.history = append(m.history, ev)
	if len(m.history) > m.maxHist {
		m.history = m.history[len(m.history)-m.maxHist:]
	}
}

// History returns a copy of the bounded reload history, most recent last.
func (m *Manager) History() []ReloadEvent {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	return append([]ReloadEvent(nil), m.history...)
}

// Stats mirrors the teacher's pattern of exposing simple counters for
// get_config_stats() (spec §6).
type Stats struct {
	Reloads       int64
	Failures      int64
	AlreadyBusy   int64
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Reloads: m.stats.reloads, Failures: m.stats.failures, AlreadyBusy: m.stats.alreadyBusy}
}

// loadFromFile reads and parses path — same shape as teacher LoadConfig,
// minus its environment overrides: no environment variable is applied.
func loadFromFile(path string) (*Config, error) {
	if path == "" {
		return nil, lerrors.NewConfigValidation("no config path configured for reload", nil)
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, lerrors.New(lerrors.KindConfigValidation, "config_manager", "cannot read configuration file", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, lerrors.New(lerrors.KindConfigValidation, "config_manager", "invalid YAML", path, err)
	}
	if cfg.Version == "" {
		cfg.Version = schemaVersion
	}
	return &cfg, nil
}

// Save writes cfg to path as YAML with 0600 permissions, creating the
// parent directory with 0700 if needed (spec §6 "0600 perms, parent
// 0700"), same enforcement as teacher SaveConfig.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return lerrors.NewInternal("config_manager", "marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return lerrors.NewPermission("config_manager", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return lerrors.NewPermission("config_manager", path, err)
	}
	return nil
}

// Load reads and validates the config at path without installing it into
// a Manager — used by cmd/leindex at startup before the Manager exists.
func Load(path string) (*Config, error) {
	cfg, err := loadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
