// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	lxerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	reg, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestInsertGetRoundTrip(t *testing.T) {
	reg := openTestRegistry(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, reg.Insert(Record{
		ID: "p1", Path: "/repos/p1", CreatedAt: now, IndexedAt: now, FileCount: 10,
	}))

	rec, err := reg.Get("p1")
	require.NoError(t, err)
	require.Equal(t, "p1", rec.ID)
	require.Equal(t, "/repos/p1", rec.Path)
	require.Equal(t, 10, rec.FileCount)
}

func TestGetByPathAndExists(t *testing.T) {
	reg := openTestRegistry(t)
	now := time.Now()
	require.NoError(t, reg.Insert(Record{ID: "p1", Path: "/repos/p1", CreatedAt: now, IndexedAt: now}))

	require.True(t, reg.Exists("/repos/p1"))
	require.False(t, reg.Exists("/repos/unknown"))

	rec, err := reg.GetByPath("/repos/p1")
	require.NoError(t, err)
	require.Equal(t, "p1", rec.ID)
}

func TestUpdatePartialFields(t *testing.T) {
	reg := openTestRegistry(t)
	now := time.Now()
	require.NoError(t, reg.Insert(Record{ID: "p1", Path: "/repos/p1", CreatedAt: now, IndexedAt: now, FileCount: 1}))

	newCount := 42
	require.NoError(t, reg.Update("p1", UpdateFields{FileCount: &newCount}))

	rec, err := reg.Get("p1")
	require.NoError(t, err)
	require.Equal(t, 42, rec.FileCount)
}

func TestListAllOrderedByID(t *testing.T) {
	reg := openTestRegistry(t)
	now := time.Now()
	require.NoError(t, reg.Insert(Record{ID: "b", Path: "/b", CreatedAt: now, IndexedAt: now}))
	require.NoError(t, reg.Insert(Record{ID: "a", Path: "/a", CreatedAt: now, IndexedAt: now}))

	all, err := reg.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "a", all[0].ID)
	require.Equal(t, "b", all[1].ID)
}

func TestRemoveDeletesRow(t *testing.T) {
	reg := openTestRegistry(t)
	now := time.Now()
	require.NoError(t, reg.Insert(Record{ID: "p1", Path: "/p1", CreatedAt: now, IndexedAt: now}))
	require.NoError(t, reg.Remove("p1"))

	_, err := reg.Get("p1")
	require.Error(t, err)
	kind, ok := lxerrors.KindOf(err)
	require.True(t, ok)
	require.Equal(t, lxerrors.KindProjectNotFound, kind)
}

func TestAutoRegisterInsertsThenUpdates(t *testing.T) {
	reg := openTestRegistry(t)

	id, err := reg.AutoRegister("gen-1", "/repos/x", 5, nil, nil, "/data/x.idx")
	require.NoError(t, err)
	require.Equal(t, "gen-1", id)

	id2, err := reg.AutoRegister("gen-2", "/repos/x", 9, nil, nil, "/data/x.idx")
	require.NoError(t, err)
	require.Equal(t, "gen-1", id2, "re-indexing the same path updates the existing row, it never inserts a second id")

	rec, err := reg.Get("gen-1")
	require.NoError(t, err)
	require.Equal(t, 9, rec.FileCount)
}
