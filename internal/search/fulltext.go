// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// indexedChunk is what gets stored in (and retrieved from) a bleve
// index — bleve indexes struct fields by reflection, so field names
// double as the document schema.
type indexedChunk struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Text      string `json:"text"`
}

// FulltextBackend is the C11 full-text adapter, grounded on the
// Aman-CERP-amanmcp manifest's use of blevesearch/bleve for exactly this
// kind of embedded, per-project code-text index.
type FulltextBackend struct {
	mu      sync.RWMutex
	indexes map[string]bleve.Index // projectID -> in-memory index
}

// NewFulltextBackend constructs the adapter. Indexes are held in memory
// (bleve.NewMemOnly) rather than on disk: the Global Index treats
// project indexes as rebuildable artifacts, not durable state (spec
// §4.11).
func NewFulltextBackend() *FulltextBackend {
	return &FulltextBackend{indexes: make(map[string]bleve.Index)}
}

func (b *FulltextBackend) Name() string { return string(KindFulltext) }

func (b *FulltextBackend) Available(projectID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.indexes[projectID]
	return ok
}

// IndexChunks rebuilds projectID's full-text index from scratch.
func (b *FulltextBackend) IndexChunks(projectID string, chunks []VectorChunk) error {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return fmt.Errorf("new bleve index: %w", err)
	}

	for _, c := range chunks {
		doc := indexedChunk{FilePath: c.FilePath, StartLine: c.StartLine, EndLine: c.EndLine, Text: c.Text}
		if err := idx.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}

	b.mu.Lock()
	old := b.indexes[projectID]
	b.indexes[projectID] = idx
	b.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (b *FulltextBackend) Search(ctx context.Context, projectID, query string, limit int) ([]Result, error) {
	b.mu.RLock()
	idx, ok := b.indexes[projectID]
	b.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"file_path", "start_line", "end_line"}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, Result{
			FilePath:    fieldString(hit.Fields, "file_path"),
			StartLine:   fieldInt(hit.Fields, "start_line"),
			EndLine:     fieldInt(hit.Fields, "end_line"),
			HasLineInfo: true,
			Score:       hit.Score,
		})
	}
	return results, nil
}

func fieldString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldInt(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
