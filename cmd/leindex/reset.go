// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/app"
	"github.com/scooter-lacroix/LeIndex-sub001/internal/registry"
)

// runReset implements "leindex reset": removes a project's on-disk
// index payload (C16) and its registry row (C15), the supplemented
// "reset" operation this spec's distillation left out but the teacher's
// own "cie reset" subcommand carries (see SPEC_FULL.md's Supplemented
// features).
func runReset(args []string) int {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	projectID := fs.String("project-id", "", "project id to remove")
	dataDir := fs.String("data-dir", getEnv("LEINDEX_DATA_DIR", defaultDataDir()), "data directory for the registry, backups, and config")
	_ = fs.Parse(args)

	if *projectID == "" {
		fmt.Fprintln(os.Stderr, "leindex reset: --project-id is required")
		return 1
	}

	a, err := app.New(*dataDir, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leindex reset: %v\n", err)
		return 1
	}
	defer a.Close()

	record, err := a.Registry.Get(*projectID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leindex reset: %v\n", err)
		return 1
	}

	indexPath := registry.IndexPayloadPath(*dataDir, *projectID)
	if removeErr := os.Remove(indexPath); removeErr != nil && !os.IsNotExist(removeErr) {
		fmt.Fprintf(os.Stderr, "leindex reset: remove index payload: %v\n", removeErr)
		return 1
	}

	if err := a.Registry.Remove(record.ID); err != nil {
		fmt.Fprintf(os.Stderr, "leindex reset: %v\n", err)
		return 1
	}

	fmt.Printf("reset project %s (%s)\n", record.ID, record.Path)
	return 0
}
