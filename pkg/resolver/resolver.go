package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoArtifacts is returned when the artifact patterns, taken together,
// match nothing on disk.
var ErrNoArtifacts = errors.New("artifact patterns matched no files")

// Entry is a concrete filesystem path produced by expanding one pattern.
type Entry struct {
	Path    string // absolute path
	Pattern string // the pattern that produced it
	IsDir   bool
}

// Split breaks a raw artifacts value into individual patterns. Entries are
// separated by commas or newlines; blank entries are dropped.
func Split(raw string) []string {
	var patterns []string
	for _, token := range strings.Split(raw, ",") {
		for _, line := range strings.Split(token, "\n") {
			if cleaned := strings.TrimSpace(line); cleaned != "" {
				patterns = append(patterns, cleaned)
			}
		}
	}
	return patterns
}

// Resolve expands each pattern relative to baseDir into concrete paths.
// Patterns follow doublestar glob semantics (*, **, ?, character classes).
// A pattern matching nothing contributes nothing; if the whole resolved set
// is empty, Resolve fails with ErrNoArtifacts.
//
// Entries are returned in a stable order: patterns in input order, matches
// sorted lexicographically, so collision diagnostics are reproducible.
func Resolve(patterns []string, baseDir string) ([]Entry, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("get absolute base: %w", err)
	}

	var entries []Entry
	for _, pattern := range patterns {
		glob := pattern
		if !filepath.IsAbs(glob) {
			glob = filepath.Join(absBase, glob)
		}

		matches, err := doublestar.FilepathGlob(glob)
		if err != nil {
			return nil, fmt.Errorf("expand pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			slog.Warn("pattern matched no files", "pattern", pattern)
			continue
		}
		sort.Strings(matches)

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", match, err)
			}
			entries = append(entries, Entry{
				Path:    match,
				Pattern: pattern,
				IsDir:   info.IsDir(),
			})
		}
	}

	if len(entries) == 0 {
		return nil, ErrNoArtifacts
	}
	return entries, nil
}
