// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFindOrphansSkipsRegisteredAndNonIdxFiles(t *testing.T) {
	reg := openTestRegistry(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "known.idx"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orphan.idx"), []byte("y"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("z"), 0o600))

	now := time.Now()
	require.NoError(t, reg.Insert(Record{ID: "known", Path: "/repos/known", CreatedAt: now, IndexedAt: now}))

	orphans, err := FindOrphans(reg, dir, 5)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, "orphan", orphans[0].InferredID)
}

func TestRegisterOrphanAddsDefaultRow(t *testing.T) {
	reg := openTestRegistry(t)
	o := OrphanEntry{Path: "/data/indexes/lost.idx", InferredID: "lost"}
	require.NoError(t, RegisterOrphan(reg, o))

	rec, err := reg.Get("lost")
	require.NoError(t, err)
	require.Equal(t, "/data/indexes/lost.idx", rec.Path)
}

func TestPurgeOrphanDeletesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.idx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, PurgeOrphan(OrphanEntry{Path: path}))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestFindOrphansRespectsMaxDepth(t *testing.T) {
	reg := openTestRegistry(t)
	dir := t.TempDir()
	deep := filepath.Join(dir, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "deep.idx"), []byte("x"), 0o600))

	orphans, err := FindOrphans(reg, dir, 1)
	require.NoError(t, err)
	require.Empty(t, orphans, "a file three levels deep must not surface with max_depth=1")
}
