// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	lxerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
)

// formatTag identifies the on-disk schema generation (spec §4.15).
type formatTag uint32

const (
	formatTagV1 formatTag = 1 // original: vector blob + chunk metadata only
	formatTagV2 formatTag = 2 // current: adds a full-text segment section

	currentFormatTag = formatTagV2
	magicBytes       = "LXIX" // "LeIndex IndeX"
)

// IndexPayload is the in-memory form of spec §3's "Index payload (on
// disk)": the vector-index handle's serialized bytes, its sidecar
// chunk→file/line metadata, and the full-text segment bytes.
type IndexPayload struct {
	FormatTag     uint32
	VectorBlob    []byte
	ChunkMetaBlob []byte
	FulltextBlob  []byte // absent (empty) in formatTagV1 payloads
}

// EncodeIndexPayload serializes p in the current format: a magic
// header, the format tag, then three length-prefixed sections.
func EncodeIndexPayload(p IndexPayload) []byte {
	var buf bytes.Buffer
	buf.WriteString(magicBytes)
	_ = binary.Write(&buf, binary.BigEndian, uint32(currentFormatTag))
	writeSection(&buf, p.VectorBlob)
	writeSection(&buf, p.ChunkMetaBlob)
	writeSection(&buf, p.FulltextBlob)
	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, section []byte) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(section)))
	buf.Write(section)
}

// DecodeIndexPayload reads data produced by EncodeIndexPayload, or an
// older formatTagV1 payload (no full-text section) — the caller decides
// whether to migrate via NeedsMigration/MigrateToCurrent (spec §4.15:
// "if the tag is from a prior supported generation, a migration routine
// converts it in place").
func DecodeIndexPayload(data []byte) (IndexPayload, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(r, magic); err != nil {
		return IndexPayload{}, lxerrors.NewMigration("truncated index payload: missing magic header", err)
	}
	if string(magic) != magicBytes {
		return IndexPayload{}, lxerrors.NewMigration("unrecognized index payload: bad magic", nil)
	}

	var tag uint32
	if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
		return IndexPayload{}, lxerrors.NewMigration("truncated index payload: missing format tag", err)
	}

	switch formatTag(tag) {
	case formatTagV1:
		vector, err := readSection(r)
		if err != nil {
			return IndexPayload{}, err
		}
		chunkMeta, err := readSection(r)
		if err != nil {
			return IndexPayload{}, err
		}
		return IndexPayload{FormatTag: tag, VectorBlob: vector, ChunkMetaBlob: chunkMeta}, nil

	case formatTagV2:
		vector, err := readSection(r)
		if err != nil {
			return IndexPayload{}, err
		}
		chunkMeta, err := readSection(r)
		if err != nil {
			return IndexPayload{}, err
		}
		fulltext, err := readSection(r)
		if err != nil {
			return IndexPayload{}, err
		}
		return IndexPayload{FormatTag: tag, VectorBlob: vector, ChunkMetaBlob: chunkMeta, FulltextBlob: fulltext}, nil

	default:
		return IndexPayload{}, lxerrors.NewMigration(fmt.Sprintf("unknown format tag %d", tag), nil)
	}
}

func readSection(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, lxerrors.NewMigration("truncated index payload: missing section length", err)
	}
	section := make([]byte, n)
	if _, err := io.ReadFull(r, section); err != nil {
		return nil, lxerrors.NewMigration("truncated index payload: short section", err)
	}
	return section, nil
}

// NeedsMigration reports whether p was decoded from a prior supported
// generation.
func NeedsMigration(p IndexPayload) bool {
	return formatTag(p.FormatTag) != currentFormatTag && formatTag(p.FormatTag) == formatTagV1
}

// MigrateToCurrent upgrades a formatTagV1 payload to the current
// format (an empty full-text section — the project must be reindexed
// for it to gain full-text capability, but it remains readable).
func MigrateToCurrent(p IndexPayload) IndexPayload {
	p.FormatTag = uint32(currentFormatTag)
	return p
}

// MigrateFile reads path, migrates it if needed, and rewrites it
// atomically (temp file + rename), mirroring the teacher's
// SaveManifest atomic-write pattern. Returns whether a migration was
// performed.
func MigrateFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, lxerrors.NewMigration("read index payload for migration", err)
	}

	payload, err := DecodeIndexPayload(data)
	if err != nil {
		return false, err
	}
	if !NeedsMigration(payload) {
		return false, nil
	}

	migrated := MigrateToCurrent(payload)
	out := EncodeIndexPayload(migrated)

	tmpPath := path + ".migrate.tmp"
	if err := os.WriteFile(tmpPath, out, 0o600); err != nil {
		return false, lxerrors.NewMigration("write migrated payload", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return false, lxerrors.NewMigration("rename migrated payload into place", err)
	}
	return true, nil
}

// IsCorrupt reports whether path cannot be decoded at all — an unknown
// format tag or truncated file — as opposed to a recognized-but-old
// generation. Spec §4.15: "if the tag is unknown, the index is marked
// corrupt; the project is kept in the registry but its index is rebuilt
// on next access."
func IsCorrupt(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	_, err = DecodeIndexPayload(data)
	if err == nil {
		return false
	}
	_, ok := lxerrors.KindOf(err)
	return ok // any decode failure we raised ourselves counts as "corrupt", not "I/O error"
}

// IndexPayloadPath is the conventional on-disk location for a project's
// index payload beneath a data root.
func IndexPayloadPath(dataRoot, projectID string) string {
	return filepath.Join(dataRoot, "indexes", projectID+".idx")
}
