// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errors defines the categorized error kinds the Global Index
// surfaces to callers (spec §7). Every kind carries the component that
// raised it plus a detail bag so Monitoring (C19) can log it structurely
// and a client can branch on a stable error_type tag.
package errors

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories from spec §7.
type Kind string

const (
	KindConfigValidation    Kind = "ConfigValidationError"
	KindProjectNotFound     Kind = "ProjectNotFoundError"
	KindInvalidPattern      Kind = "InvalidPatternError"
	KindAllProjectsFailed   Kind = "AllProjectsFailedError"
	KindCache               Kind = "CacheError"
	KindRouting             Kind = "RoutingError"
	KindBackendUnavailable  Kind = "BackendUnavailableError"
	KindMigration           Kind = "MigrationError"
	KindOrphanPurge         Kind = "OrphanPurgeError"
	KindTransient           Kind = "TransientError"
	KindPermission          Kind = "PermissionError"
	KindInternal            Kind = "InternalError"
)

// GlobalIndexError is the single error type every component returns;
// the categories of spec §4.18 (CacheError with component=tier2_cache,
// RoutingError with component=query_router, etc.) are told apart by Kind
// and Component rather than by separate types.
type GlobalIndexError struct {
	Kind      Kind
	Component string
	Message   string
	Detail    string
	Fields    map[string]any
	Cause     error
}

func (e *GlobalIndexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %s (%v)", e.Kind, e.Component, e.Message, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %s: %s", e.Kind, e.Component, e.Message, e.Detail)
}

func (e *GlobalIndexError) Unwrap() error { return e.Cause }

// New builds a GlobalIndexError. component is the owning subsystem name
// used both for the error tag and for the structured log entry C19 emits.
func New(kind Kind, component, message, detail string, cause error) *GlobalIndexError {
	return &GlobalIndexError{Kind: kind, Component: component, Message: message, Detail: detail, Cause: cause}
}

// WithField attaches a detail field and returns the same error for chaining.
func (e *GlobalIndexError) WithField(key string, value any) *GlobalIndexError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// Convenience constructors mirroring the teacher's NewConfigError /
// NewPermissionError / NewInternalError style (cmd/cie/config.go), widened
// to the spec's full kind set.

func NewConfigValidation(detail string, cause error) *GlobalIndexError {
	return New(KindConfigValidation, "config_manager", "configuration failed validation", detail, cause)
}

func NewProjectNotFound(projectID string) *GlobalIndexError {
	return New(KindProjectNotFound, "query_router", "unknown project id", projectID, nil).
		WithField("project_id", projectID)
}

func NewInvalidPattern(pattern, reason string) *GlobalIndexError {
	return New(KindInvalidPattern, "cross_project_search", "search pattern rejected", reason, nil).
		WithField("pattern", pattern)
}

func NewAllProjectsFailed(failed []string) *GlobalIndexError {
	return New(KindAllProjectsFailed, "cross_project_search", "every project in the fan-out failed", fmt.Sprintf("%d projects failed", len(failed)), nil).
		WithField("failed_projects", failed)
}

func NewCache(detail string, cause error) *GlobalIndexError {
	return New(KindCache, "tier2_cache", "query cache violation", detail, cause)
}

func NewRouting(detail string) *GlobalIndexError {
	return New(KindRouting, "query_router", "cannot route query", detail, nil)
}

func NewBackendUnavailable(backend string) *GlobalIndexError {
	return New(KindBackendUnavailable, "backend_adapters", "backend unavailable", backend, nil).
		WithField("backend", backend)
}

func NewMigration(detail string, cause error) *GlobalIndexError {
	return New(KindMigration, "binary_serializer", "unsupported on-disk format", detail, cause)
}

func NewOrphanPurge(path string, cause error) *GlobalIndexError {
	return New(KindOrphanPurge, "orphan_detector", "cannot purge orphaned index", path, cause)
}

func NewPermission(component, detail string, cause error) *GlobalIndexError {
	return New(KindPermission, component, "permission denied", detail, cause)
}

func NewInternal(component, detail string, cause error) *GlobalIndexError {
	return New(KindInternal, component, "internal error", detail, cause)
}

// As is a thin re-export of errors.As so callers don't need a second import
// just to type-switch on *GlobalIndexError.
func As(err error, target any) bool { return errors.As(err, target) }

// KindOf extracts the Kind of err if it is (or wraps) a GlobalIndexError.
func KindOf(err error) (Kind, bool) {
	var gie *GlobalIndexError
	if errors.As(err, &gie) {
		return gie.Kind, true
	}
	return "", false
}
