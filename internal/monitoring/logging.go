// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitoring

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewOpsLogger builds the structured JSON operations logger used across
// every component (spec §4.19's "Structured JSON ops log"), grounded on
// r3e-network-service_layer's go.uber.org/zap dependency. Event names
// follow the teacher's slog dotted-namespace convention
// ("component.event", e.g. "tier2_cache.rebuild_failed") so a reader
// moving between the two logging styles sees the same vocabulary.
func NewOpsLogger(development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	return cfg.Build()
}

// Component returns a child logger tagged with a stable "component"
// field, mirroring the teacher's per-subsystem slog.With(...) pattern.
func Component(logger *zap.Logger, name string) *zap.Logger {
	return logger.With(zap.String("component", name))
}
