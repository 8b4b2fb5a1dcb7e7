// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"
)

// Embedder turns a chunk's text into a fixed-width vector. The concrete
// embedding model is out of scope (spec Non-goals): callers inject
// whatever they have (a local ONNX model, a remote embedding API, etc).
type Embedder func(text string) ([]float32, error)

// VectorChunk is one embeddable unit indexed into a project's graph —
// typically a function or a fixed-size sliding window of source text.
type VectorChunk struct {
	ID        string
	FilePath  string
	StartLine int
	EndLine   int
	Text      string
}

// VectorBackend is the C11 semantic-search adapter, grounded on the
// "one semantic backend" open question (DESIGN.md, "Open Question
// decisions"): coder/hnsw
// gives an in-process, dependency-free approximate nearest-neighbor
// graph, avoiding a second network service for what is otherwise an
// embedded indexer.
type VectorBackend struct {
	embed Embedder

	mu     sync.RWMutex
	graphs map[string]*hnsw.Graph[string] // projectID -> graph
	meta   map[string]map[string]VectorChunk // projectID -> chunkID -> chunk
}

// NewVectorBackend constructs the adapter; embed is called once per
// indexed chunk and once per query.
func NewVectorBackend(embed Embedder) *VectorBackend {
	return &VectorBackend{
		embed:  embed,
		graphs: make(map[string]*hnsw.Graph[string]),
		meta:   make(map[string]map[string]VectorChunk),
	}
}

func (b *VectorBackend) Name() string { return string(KindVector) }

// Available reports whether projectID has a populated graph.
func (b *VectorBackend) Available(projectID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	g, ok := b.graphs[projectID]
	return ok && g.Len() > 0
}

// IndexChunks (re)builds projectID's graph from scratch — the semantic
// index is always rebuilt wholesale on reindex per spec §4.11's chunking
// contract, rather than incrementally patched.
func (b *VectorBackend) IndexChunks(projectID string, chunks []VectorChunk) error {
	graph := hnsw.NewGraph[string]()
	metaByID := make(map[string]VectorChunk, len(chunks))

	for _, c := range chunks {
		vec, err := b.embed(c.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		graph.Add(hnsw.MakeNode(c.ID, vec))
		metaByID[c.ID] = c
	}

	b.mu.Lock()
	b.graphs[projectID] = graph
	b.meta[projectID] = metaByID
	b.mu.Unlock()
	return nil
}

func (b *VectorBackend) Search(ctx context.Context, projectID, query string, limit int) ([]Result, error) {
	b.mu.RLock()
	graph, ok := b.graphs[projectID]
	metaByID := b.meta[projectID]
	b.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	vec, err := b.embed(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	neighbors := graph.Search(vec, limit)
	results := make([]Result, 0, len(neighbors))
	for i, n := range neighbors {
		chunk, ok := metaByID[n.Key]
		if !ok {
			continue
		}
		results = append(results, Result{
			FilePath:    chunk.FilePath,
			StartLine:   chunk.StartLine,
			EndLine:     chunk.EndLine,
			HasLineInfo: true,
			// hnsw returns neighbors best-first; score decays with rank
			// since the library does not expose a normalized similarity.
			Score:   1.0 / float64(1+i),
			Payload: chunk,
		})
	}
	return results, nil
}
