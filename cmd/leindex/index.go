// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/app"
)

// runIndex implements "leindex index", a synchronous one-shot
// equivalent of POST /v1/index for local/CI use without running the
// server.
func runIndex(args []string) int {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	projectID := fs.String("project-id", "", "project id to register under (generated if omitted)")
	repoPath := fs.String("repo", "", "repository path to index")
	dataDir := fs.String("data-dir", getEnv("LEINDEX_DATA_DIR", defaultDataDir()), "data directory for the registry, backups, and config")
	_ = fs.Parse(args)

	if *repoPath == "" {
		fmt.Fprintln(os.Stderr, "leindex index: --repo is required")
		return 1
	}
	id := *projectID
	if id == "" {
		id = uuid.NewString()
	}

	a, err := app.New(*dataDir, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leindex index: %v\n", err)
		return 1
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	stats, err := a.IndexProject(ctx, id, *repoPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leindex index: %v\n", err)
		return 1
	}

	fmt.Printf("indexed project %s: %d files, %d symbols\n", stats.ProjectID, stats.FileCount, stats.SymbolCount)
	return 0
}
