// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package chunking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleSource = `package sample

func Add(a, b int) int {
	return a + b
}

func (s *Server) Run(ctx context.Context, name string) error {
	return nil
}
`

func TestExtractFileFindsFunctionsAndMethods(t *testing.T) {
	e := NewExtractor()
	chunks, err := e.ExtractFile(context.Background(), "sample.go", []byte(sampleSource))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	require.Equal(t, "sample.go", chunks[0].FilePath)
	require.Contains(t, chunks[0].Signature, "func Add")
	require.Len(t, chunks[0].Params, 2)
	require.Equal(t, "int", chunks[0].Params[0].Type)

	require.Contains(t, chunks[1].Signature, "func (s *Server) Run")
	require.Len(t, chunks[1].Params, 2)
	require.Equal(t, "Context", chunks[1].Params[0].Type)
}

func TestToVectorChunksPreservesLineRanges(t *testing.T) {
	e := NewExtractor()
	chunks, err := e.ExtractFile(context.Background(), "sample.go", []byte(sampleSource))
	require.NoError(t, err)

	vcs := ToVectorChunks(chunks)
	require.Len(t, vcs, len(chunks))
	require.Equal(t, chunks[0].StartLine, vcs[0].StartLine)
	require.Equal(t, chunks[0].EndLine, vcs[0].EndLine)
}

func TestChunkIDsAreDeterministicAndUnique(t *testing.T) {
	e := NewExtractor()
	chunks, err := e.ExtractFile(context.Background(), "sample.go", []byte(sampleSource))
	require.NoError(t, err)
	require.NotEqual(t, chunks[0].ID, chunks[1].ID)

	again, err := e.ExtractFile(context.Background(), "sample.go", []byte(sampleSource))
	require.NoError(t, err)
	require.Equal(t, chunks[0].ID, again[0].ID)
}
