// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry implements the durable Project Registry (C15), the
// versioned Binary Serializer (C16), the Orphan Detector (C17), and the
// Backup Scheduler (C18). It is grounded on the teacher's
// pkg/ingestion/manifest.go persistence pattern (temp-file-then-rename
// atomic writes, a basePath-rooted layout) generalized from one JSON
// manifest per project to one SQLite-backed table of all projects, per
// spec §4.14's "durable mapping id ↔ record".
package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	lxerrors "github.com/scooter-lacroix/LeIndex-sub001/internal/errors"
)

// Record is one registry row (spec §4.14).
type Record struct {
	ID            string
	Path          string
	CreatedAt     time.Time
	IndexedAt     time.Time
	FileCount     int
	ConfigBlob    []byte
	StatsBlob     []byte
	IndexLocation string
}

// Registry is the durable id<->record mapping, backed by a single
// SQLite database file. Registry does not take the gofrs/flock
// ArtifactLock (lock.go) itself; within one process the database
// connection is capped to one writer at a time by setting
// MaxOpenConns(1).
type Registry struct {
	db *sql.DB
}

// Open opens (creating if necessary) the registry database at path.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, lxerrors.NewInternal("project_registry", "open sqlite database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, lxerrors.NewInternal("project_registry", "create schema", err)
	}
	return &Registry{db: db}, nil
}

func (r *Registry) Close() error { return r.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id             TEXT PRIMARY KEY,
	path           TEXT NOT NULL UNIQUE,
	created_at     TEXT NOT NULL,
	indexed_at     TEXT NOT NULL,
	file_count     INTEGER NOT NULL DEFAULT 0,
	config_blob    BLOB,
	stats_blob     BLOB,
	index_location TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_projects_path ON projects(path);
`

// Insert adds a new project row (spec §4.14 operation "insert").
func (r *Registry) Insert(rec Record) error {
	_, err := r.db.Exec(
		`INSERT INTO projects (id, path, created_at, indexed_at, file_count, config_blob, stats_blob, index_location)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.IndexedAt.UTC().Format(time.RFC3339Nano),
		rec.FileCount, rec.ConfigBlob, rec.StatsBlob, rec.IndexLocation,
	)
	if err != nil {
		return lxerrors.NewInternal("project_registry", fmt.Sprintf("insert project %s", rec.ID), err)
	}
	return nil
}

// Update applies a partial field update by re-reading then rewriting
// the row (spec §4.14 operation "update(id, fields)"). nil fields are
// left unchanged; FileCount is a pointer so that an explicit zero file
// count can still be applied.
type UpdateFields struct {
	IndexedAt     *time.Time
	FileCount     *int
	ConfigBlob    []byte
	StatsBlob     []byte
	IndexLocation *string
}

func (r *Registry) Update(id string, fields UpdateFields) error {
	rec, err := r.Get(id)
	if err != nil {
		return err
	}
	if fields.IndexedAt != nil {
		rec.IndexedAt = *fields.IndexedAt
	}
	if fields.FileCount != nil {
		rec.FileCount = *fields.FileCount
	}
	if fields.ConfigBlob != nil {
		rec.ConfigBlob = fields.ConfigBlob
	}
	if fields.StatsBlob != nil {
		rec.StatsBlob = fields.StatsBlob
	}
	if fields.IndexLocation != nil {
		rec.IndexLocation = *fields.IndexLocation
	}

	_, err = r.db.Exec(
		`UPDATE projects SET indexed_at=?, file_count=?, config_blob=?, stats_blob=?, index_location=? WHERE id=?`,
		rec.IndexedAt.UTC().Format(time.RFC3339Nano), rec.FileCount, rec.ConfigBlob, rec.StatsBlob, rec.IndexLocation, id,
	)
	if err != nil {
		return lxerrors.NewInternal("project_registry", fmt.Sprintf("update project %s", id), err)
	}
	return nil
}

// Get retrieves a record by id.
func (r *Registry) Get(id string) (Record, error) {
	row := r.db.QueryRow(`SELECT id, path, created_at, indexed_at, file_count, config_blob, stats_blob, index_location FROM projects WHERE id=?`, id)
	return scanRecord(row)
}

// GetByPath retrieves a record by its filesystem path (spec §4.14
// operation "get_by_path(path)").
func (r *Registry) GetByPath(path string) (Record, error) {
	row := r.db.QueryRow(`SELECT id, path, created_at, indexed_at, file_count, config_blob, stats_blob, index_location FROM projects WHERE path=?`, path)
	return scanRecord(row)
}

// Exists reports whether path is already registered (spec §4.14
// operation "exists(path)").
func (r *Registry) Exists(path string) bool {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM projects WHERE path=?`, path).Scan(&count)
	return err == nil && count > 0
}

// ListAll returns every registered project (spec §4.14 operation
// "list_all()"), ordered by id for deterministic output.
func (r *Registry) ListAll() ([]Record, error) {
	rows, err := r.db.Query(`SELECT id, path, created_at, indexed_at, file_count, config_blob, stats_blob, index_location FROM projects ORDER BY id`)
	if err != nil {
		return nil, lxerrors.NewInternal("project_registry", "list all projects", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Remove deletes a project row (spec §4.14 operation "remove(id)").
func (r *Registry) Remove(id string) error {
	_, err := r.db.Exec(`DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return lxerrors.NewInternal("project_registry", fmt.Sprintf("remove project %s", id), err)
	}
	return nil
}

// AutoRegister implements spec §4.14's auto-registration contract: if
// path is unregistered, insert it under id; if a row for path
// already exists, update its indexed-at/file-count/stats. Returns the
// affected project's id.
func (r *Registry) AutoRegister(id, path string, fileCount int, statsBlob, configBlob []byte, indexLocation string) (string, error) {
	existing, err := r.GetByPath(path)
	if err == nil {
		now := time.Now()
		err = r.Update(existing.ID, UpdateFields{
			IndexedAt:     &now,
			FileCount:     &fileCount,
			StatsBlob:     statsBlob,
			IndexLocation: &indexLocation,
		})
		return existing.ID, err
	}

	now := time.Now()
	rec := Record{
		ID: id, Path: path, CreatedAt: now, IndexedAt: now,
		FileCount: fileCount, ConfigBlob: configBlob, StatsBlob: statsBlob, IndexLocation: indexLocation,
	}
	if insErr := r.Insert(rec); insErr != nil {
		return "", insErr
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (Record, error) {
	return scanRecordGeneric(row)
}

func scanRecordRows(rows *sql.Rows) (Record, error) {
	return scanRecordGeneric(rows)
}

func scanRecordGeneric(s rowScanner) (Record, error) {
	var rec Record
	var createdAt, indexedAt string
	if err := s.Scan(&rec.ID, &rec.Path, &createdAt, &indexedAt, &rec.FileCount, &rec.ConfigBlob, &rec.StatsBlob, &rec.IndexLocation); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, lxerrors.NewProjectNotFound("")
		}
		return Record{}, lxerrors.NewInternal("project_registry", "scan row", err)
	}
	var perr error
	rec.CreatedAt, perr = time.Parse(time.RFC3339Nano, createdAt)
	if perr != nil {
		return Record{}, lxerrors.NewInternal("project_registry", "parse created_at", perr)
	}
	rec.IndexedAt, perr = time.Parse(time.RFC3339Nano, indexedAt)
	if perr != nil {
		return Record{}, lxerrors.NewInternal("project_registry", "parse indexed_at", perr)
	}
	return rec, nil
}
