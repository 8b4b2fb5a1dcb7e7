// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

import "fmt"

// Level is the closed set of usage classifications (spec §4.3).
type Level string

const (
	LevelHealthy  Level = "healthy"
	LevelCaution  Level = "caution"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// ActionKind is the closed set of memory-relief action kinds (spec §4.3,
// §4.4).
type ActionKind string

const (
	ActionGC               ActionKind = "garbage_collect"
	ActionClearQueryCache  ActionKind = "clear_query_cache"
	ActionUnloadFiles      ActionKind = "unload_files"
	ActionUnloadProjects   ActionKind = "unload_projects"
	ActionEmergencyEvict   ActionKind = "emergency_evict"
)

// Warning is the ThresholdWarning emitted on a rising-edge crossing
// (spec §4.3). It is transient — never persisted (spec §3).
type Warning struct {
	Level           Level
	Urgency         string
	Recommendation  string
	SuggestedKinds  []ActionKind
	UsageFraction   float64
}

// Thresholds holds the three fractions the state machine classifies
// against; must satisfy Warning < Prompt < Emergency (spec §4.3, §8).
type Thresholds struct {
	Warning   float64
	Prompt    float64
	Emergency float64
}

// Validate enforces the ordering invariant.
func (th Thresholds) Validate() error {
	if !(th.Warning < th.Prompt && th.Prompt < th.Emergency) {
		return fmt.Errorf("threshold ordering violated: warning=%v prompt=%v emergency=%v", th.Warning, th.Prompt, th.Emergency)
	}
	return nil
}

// StateMachine classifies a usage fraction against Thresholds and emits
// one Warning per rising-edge crossing — it remembers the last level so
// repeated samples at the same level (or falling back) do not re-emit.
type StateMachine struct {
	thresholds Thresholds
	lastLevel  Level
}

// NewStateMachine constructs a StateMachine; th must already satisfy
// Validate (the Config Manager enforces this at load time per spec §4.3).
func NewStateMachine(th Thresholds) (*StateMachine, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &StateMachine{thresholds: th, lastLevel: LevelHealthy}, nil
}

// classify maps a usage fraction to a Level given the thresholds.
func classify(fraction float64, th Thresholds) Level {
	switch {
	case fraction >= th.Emergency:
		return LevelCritical
	case fraction >= th.Prompt:
		return LevelWarning
	case fraction >= th.Warning:
		return LevelCaution
	default:
		return LevelHealthy
	}
}

var levelRank = map[Level]int{
	LevelHealthy:  0,
	LevelCaution:  1,
	LevelWarning:  2,
	LevelCritical: 3,
}

// Classify evaluates a snapshot's RSS against totalBudgetMB and emits a
// Warning only on a rising edge (spec §4.3 "rising edges only"). A
// falling level, or repeated samples at the same level, return (nil,
// level).
func (sm *StateMachine) Classify(rssMB, totalBudgetMB float64) (*Warning, Level) {
	fraction := 0.0
	if totalBudgetMB > 0 {
		fraction = rssMB / totalBudgetMB
	}
	level := classify(fraction, sm.thresholds)

	rising := levelRank[level] > levelRank[sm.lastLevel]
	sm.lastLevel = level

	if !rising || level == LevelHealthy {
		return nil, level
	}

	return &Warning{
		Level:          level,
		Urgency:        urgencyFor(level),
		Recommendation: recommendationFor(level),
		SuggestedKinds: suggestedActionsFor(level),
		UsageFraction:  fraction,
	}, level
}

func urgencyFor(l Level) string {
	switch l {
	case LevelCaution:
		return "low"
	case LevelWarning:
		return "elevated"
	case LevelCritical:
		return "immediate"
	default:
		return "none"
	}
}

func recommendationFor(l Level) string {
	switch l {
	case LevelCaution:
		return "memory usage is climbing; consider clearing unused caches"
	case LevelWarning:
		return "memory usage is high; client should release idle projects or reduce concurrency"
	case LevelCritical:
		return "memory usage is critical; the system is freeing memory automatically"
	default:
		return ""
	}
}

func suggestedActionsFor(l Level) []ActionKind {
	switch l {
	case LevelCaution:
		return []ActionKind{ActionGC}
	case LevelWarning:
		return []ActionKind{ActionGC, ActionClearQueryCache, ActionUnloadFiles}
	case LevelCritical:
		return []ActionKind{ActionClearQueryCache, ActionUnloadProjects, ActionEmergencyEvict}
	default:
		return nil
	}
}
