// Copyright 2026 LeIndex Project Contributors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// RegexBackend is the C11 regex/symbol adapter — the degradation
// chain's backstop. It needs no built index, only a project root, so it
// is "always available, if slow" (spec §4.14). Go's stdlib regexp is
// used directly: no example repo in this corpus wraps an external
// ripgrep/grep process or binds an alternate regex engine, so this is a
// standard-library choice with no pack library to ground it on.
type RegexBackend struct {
	roots        map[string]string // projectID -> filesystem root
	caseSensitive bool
	contextLines int
	filePattern  string // glob, empty = all files
}

// NewRegexBackend constructs the adapter over a set of project roots.
func NewRegexBackend() *RegexBackend {
	return &RegexBackend{roots: make(map[string]string), contextLines: 0}
}

func (b *RegexBackend) Name() string { return string(KindRegex) }

// RegisterRoot associates projectID with the directory to scan.
func (b *RegexBackend) RegisterRoot(projectID, root string) {
	b.roots[projectID] = root
}

func (b *RegexBackend) Available(projectID string) bool {
	root, ok := b.roots[projectID]
	if !ok {
		return false
	}
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

// WithOptions returns a copy of the backend configured per spec
// §4.11's "case-sensitive + context-lines + file-glob filter".
func (b *RegexBackend) WithOptions(caseSensitive bool, contextLines int, filePattern string) *RegexBackend {
	cp := *b
	cp.caseSensitive = caseSensitive
	cp.contextLines = contextLines
	cp.filePattern = filePattern
	return &cp
}

// Search walks the project root, compiling query as a regular
// expression and scanning each matching file line by line. It is a
// synchronous line-scan, not an index lookup — slow by design, serving
// as the backstop of last resort.
func (b *RegexBackend) Search(ctx context.Context, projectID, query string, limit int) ([]Result, error) {
	root, ok := b.roots[projectID]
	if !ok {
		return nil, nil
	}

	pattern := query
	if !b.caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}

	var results []Result
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort scan: skip unreadable entries
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}
		if b.filePattern != "" {
			if ok, _ := filepath.Match(b.filePattern, d.Name()); !ok {
				return nil
			}
		}
		if limit > 0 && len(results) >= limit {
			return nil
		}
		matches, err := scanFile(path, re, b.contextLines, limit-len(results))
		if err != nil {
			return nil
		}
		results = append(results, matches...)
		return nil
	})
	if walkErr != nil && walkErr != ctx.Err() {
		return nil, walkErr
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].FilePath < results[j].FilePath })
	return results, nil
}

func scanFile(path string, re *regexp.Regexp, contextLines, remaining int) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	var out []Result
	for i, line := range lines {
		if remaining > 0 && len(out) >= remaining {
			break
		}
		if !re.MatchString(line) {
			continue
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines
		if end >= len(lines) {
			end = len(lines) - 1
		}
		out = append(out, Result{
			FilePath:    path,
			StartLine:   start + 1,
			EndLine:     end + 1,
			HasLineInfo: true,
			Score:       1,
		})
	}
	return out, nil
}
