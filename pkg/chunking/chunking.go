// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chunking extracts embeddable, searchable units ("chunks") —
// one per top-level function or method — from Go source files, for
// handoff to the vector and full-text backends' IndexChunks (C11).
// Grounded on the teacher's pkg/ingestion/parser_treesitter.go: the same
// go-tree-sitter grammar and a pooled, reusable *sitter.Parser, scoped
// down from the teacher's full entity/call-graph extraction to the
// file/line/signature slice this spec's chunk metadata needs.
package chunking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/search"
	"github.com/scooter-lacroix/LeIndex-sub001/pkg/sigparse"
)

// Chunk is one extracted function/method, ready to become a
// search.VectorChunk once its embedding text is decided by the caller.
type Chunk struct {
	ID        string
	FilePath  string
	StartLine int
	EndLine   int
	Signature string
	Params    []sigparse.ParamInfo
	Body      string
}

// Extractor wraps a pooled tree-sitter parser for the Go grammar —
// parsers are not safe for concurrent use, hence the sync.Pool, exactly
// as the teacher's TreeSitterParser does for each of its four
// languages.
type Extractor struct {
	pool sync.Pool
}

// NewExtractor constructs a chunk extractor for Go source.
func NewExtractor() *Extractor {
	e := &Extractor{}
	e.pool.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(golang.GetLanguage())
		return parser
	}
	return e
}

// ExtractFile parses content and returns one Chunk per top-level
// function_declaration or method_declaration node.
func (e *Extractor) ExtractFile(ctx context.Context, filePath string, content []byte) ([]Chunk, error) {
	parserObj := e.pool.Get()
	parser, ok := parserObj.(*sitter.Parser)
	if !ok {
		return nil, errNotAParser
	}
	defer e.pool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	var chunks []Chunk
	for i := 0; i < int(root.ChildCount()); i++ {
		node := root.Child(i)
		if node.Type() != "function_declaration" && node.Type() != "method_declaration" {
			continue
		}
		text := node.Content(content)
		start := int(node.StartPoint().Row) + 1
		end := int(node.EndPoint().Row) + 1

		chunks = append(chunks, Chunk{
			ID:        chunkID(filePath, start, end),
			FilePath:  filePath,
			StartLine: start,
			EndLine:   end,
			Signature: firstLine(text),
			Params:    sigparse.ParseGoParams(text),
			Body:      text,
		})
	}
	return chunks, nil
}

// ToVectorChunks adapts extracted chunks into the search package's
// embeddable unit, using the full body text as the embedding input.
func ToVectorChunks(chunks []Chunk) []search.VectorChunk {
	out := make([]search.VectorChunk, len(chunks))
	for i, c := range chunks {
		out[i] = search.VectorChunk{
			ID:        c.ID,
			FilePath:  c.FilePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Text:      c.Body,
		}
	}
	return out
}

func chunkID(filePath string, start, end int) string {
	h := sha256.Sum256([]byte(filePath + ":" + strconv.Itoa(start) + ":" + strconv.Itoa(end)))
	return hex.EncodeToString(h[:])[:16]
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

type parserTypeError struct{}

func (parserTypeError) Error() string { return "chunking: pool returned non-parser value" }

var errNotAParser = parserTypeError{}
