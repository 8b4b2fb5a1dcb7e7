// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/memory"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/monitoring"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/tier1"
)

// startMemoryMonitor registers the cron entry that drives C2 → C3 → C5:
// every tick it samples RSS (C2), classifies it against the configured
// thresholds (C3), and — only at the critical level — runs emergency
// eviction (C5) against the projects currently indexed in this process.
// Same cadence idiom as the Backup Scheduler (C18): a robfig/cron/v3
// "@every" entry, not a bespoke goroutine+ticker.
func (a *App) startMemoryMonitor(cronSpec string) error {
	if cronSpec == "" {
		cronSpec = "@every 30s"
	}
	c := cron.New()
	_, err := c.AddFunc(cronSpec, func() {
		a.sampleAndClassify(context.Background())
	})
	if err != nil {
		return err
	}
	c.Start()
	a.memoryCron = c
	return nil
}

// stopMemoryMonitor stops the cron entry, if one was started.
func (a *App) stopMemoryMonitor() {
	if a.memoryCron == nil {
		return
	}
	<-a.memoryCron.Stop().Done()
}

// sampleAndClassify runs one full C2 → C3 → C5 cycle. At LevelCritical,
// spec §4.3's "invoking emergency eviction is automatic and does not
// require external dispatch" applies: no caller outside this loop
// triggers EmergencyEviction.
func (a *App) sampleAndClassify(ctx context.Context) {
	a.Tracker.Sample(ctx)

	budgetMB := float64(a.Config.Current().Memory.TotalBudgetMB)
	warning, level := a.StateMachine.Classify(a.Tracker.CurrentMB(), budgetMB)

	log := monitoring.Component(a.Logger, "memory")
	if warning != nil {
		log.Warn("threshold crossed",
			zap.String("level", string(level)),
			zap.String("urgency", warning.Urgency),
			zap.Float64("usage_fraction", warning.UsageFraction))
	}

	if level != memory.LevelCritical {
		return
	}

	candidates := a.evictionCandidates()
	if len(candidates) == 0 {
		return
	}

	targetMB := float64(a.Config.Current().Memory.GlobalIndexMB) * 0.5
	result := memory.EmergencyEviction(candidates, targetMB)
	log.Warn("emergency eviction run",
		zap.Bool("success", result.Success),
		zap.Strings("evicted", result.Evicted),
		zap.Float64("freed_mb", result.FreedMB),
		zap.Duration("duration", result.Duration))
}

// evictionCandidates builds the C5 candidate list from every project
// this process has indexed. Priority is normal for everything — the
// registry does not yet expose a pinning surface (spec §9 Open
// Questions), so nothing is ever marked Pinned here. Unload releases a
// project's Tier 2 cached query results, the resident state this
// in-process cache actually holds for it; EstimatedSizeMB (Tier 1's own
// accounting) stands in for the bytes freed.
func (a *App) evictionCandidates() []memory.Candidate {
	a.projectRootsMu.RLock()
	ids := make([]string, 0, len(a.projectRoots))
	for id := range a.projectRoots {
		ids = append(ids, id)
	}
	a.projectRootsMu.RUnlock()

	out := make([]memory.Candidate, 0, len(ids))
	for _, id := range ids {
		meta, ok := a.Tier1.Get(id)
		if !ok {
			continue
		}
		projectID := id
		freedMB := meta.EstimatedSizeMB
		out = append(out, memory.Candidate{
			ProjectID:   projectID,
			LastAccess:  time.Unix(0, meta.LastIndexed),
			Priority:    memory.EvictionPriorityNormal,
			EstimatedMB: freedMB,
			Building:    meta.Status == tier1.StatusBuilding,
			Unload: func() (float64, error) {
				a.Tier2.MarkProjectStale(projectID)
				return freedMB, nil
			},
		})
	}
	return out
}
