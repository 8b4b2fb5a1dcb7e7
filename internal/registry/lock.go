// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"time"

	"github.com/gofrs/flock"

	lxerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
)

// ArtifactLock enforces spec §5's "single writer per artifact" rule
// using a filesystem advisory lock, so two processes (or two goroutines
// racing a crash-recovery path) never write the same index payload or
// registry row concurrently.
type ArtifactLock struct {
	fl *flock.Flock
}

// NewArtifactLock returns a lock over lockPath (a sidecar file next to
// the artifact it guards, e.g. "<index-file>.lock").
func NewArtifactLock(lockPath string) *ArtifactLock {
	return &ArtifactLock{fl: flock.New(lockPath)}
}

// WithLock acquires the lock (blocking up to timeout), runs fn while
// holding it, and always releases. It writes nothing itself; what fn
// writes, and in which order, is up to fn.
func (l *ArtifactLock) WithLock(timeout time.Duration, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := l.fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return lxerrors.NewInternal("registry_lock", "acquire artifact lock", err)
	}
	if !locked {
		return lxerrors.NewInternal("registry_lock", "timed out acquiring artifact lock", nil)
	}
	defer l.fl.Unlock()

	return fn()
}
