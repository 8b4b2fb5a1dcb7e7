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

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := IndexPayload{VectorBlob: []byte("vector"), ChunkMetaBlob: []byte("meta"), FulltextBlob: []byte("fulltext")}
	data := EncodeIndexPayload(p)

	decoded, err := DecodeIndexPayload(data)
	require.NoError(t, err)
	require.Equal(t, p.VectorBlob, decoded.VectorBlob)
	require.Equal(t, p.ChunkMetaBlob, decoded.ChunkMetaBlob)
	require.Equal(t, p.FulltextBlob, decoded.FulltextBlob)
	require.Equal(t, uint32(currentFormatTag), decoded.FormatTag)
}

func TestDecodeUnknownFormatTagIsCorrupt(t *testing.T) {
	data := []byte(magicBytes)
	data = append(data, 0, 0, 0, 99) // unknown tag
	_, err := DecodeIndexPayload(data)
	require.Error(t, err)
}

func TestDecodeBadMagicIsRejected(t *testing.T) {
	_, err := DecodeIndexPayload([]byte("nope"))
	require.Error(t, err)
}

func encodeV1(vector, chunkMeta []byte) []byte {
	var out []byte
	out = append(out, []byte(magicBytes)...)
	out = append(out, 0, 0, 0, byte(formatTagV1))
	appendSection := func(b []byte) {
		n := len(b)
		out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		out = append(out, b...)
	}
	appendSection(vector)
	appendSection(chunkMeta)
	return out
}

func TestNeedsMigrationTrueForV1(t *testing.T) {
	data := encodeV1([]byte("v"), []byte("m"))
	p, err := DecodeIndexPayload(data)
	require.NoError(t, err)
	require.True(t, NeedsMigration(p))

	migrated := MigrateToCurrent(p)
	require.False(t, NeedsMigration(migrated))
	require.Empty(t, migrated.FulltextBlob)
}

func TestMigrateFileRewritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proj.idx")
	require.NoError(t, os.WriteFile(path, encodeV1([]byte("v"), []byte("m")), 0o600))

	migrated, err := MigrateFile(path)
	require.NoError(t, err)
	require.True(t, migrated)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, err := DecodeIndexPayload(data)
	require.NoError(t, err)
	require.Equal(t, uint32(currentFormatTag), decoded.FormatTag)

	migratedAgain, err := MigrateFile(path)
	require.NoError(t, err)
	require.False(t, migratedAgain, "an already-current file needs no further migration")
}

func TestIsCorruptDetectsUnknownTag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.idx")
	data := []byte(magicBytes)
	data = append(data, 0, 0, 0, 250)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	require.True(t, IsCorrupt(path))
}

func TestIsCorruptFalseForValidPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "good.idx")
	data := EncodeIndexPayload(IndexPayload{VectorBlob: []byte("v")})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	require.False(t, IsCorrupt(path))
}
