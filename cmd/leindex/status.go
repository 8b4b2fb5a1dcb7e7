// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/scooter-lacroix/LeIndex-sub001/internal/app"
)

// runStatus implements "leindex status": prints the Tier 1 dashboard
// (spec §4.8's GetDashboardData) built from whatever the registry and
// Tier 1 store currently hold for this data directory.
func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dataDir := fs.String("data-dir", getEnv("LEINDEX_DATA_DIR", defaultDataDir()), "data directory for the registry, backups, and config")
	_ = fs.Parse(args)

	a, err := app.New(*dataDir, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "leindex status: %v\n", err)
		return 1
	}
	defer a.Close()

	records, err := a.Registry.ListAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "leindex status: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"dashboard": a.Tier1.GetDashboardData(),
		"registry":  records,
	})
	return 0
}
