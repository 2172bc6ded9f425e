package stager

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/OpenSiFli/SiFliMirrorSync/pkg/resolver"
)

// StagedFile maps one relative key to the source file that backs it.
type StagedFile struct {
	Key    string // slash-separated path under the staging root and the remote prefix
	Source string // absolute source path
}

// CollisionError reports two distinct sources mapping to the same staged key.
type CollisionError struct {
	Key     string
	SourceA string
	SourceB string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("staging collision on %q: %s and %s", e.Key, e.SourceA, e.SourceB)
}

// Tree is the staging tree for one sync run. It owns a temporary directory
// holding a copy of every staged file and is the sole unit of truth for what
// should exist under the remote prefix. Close removes the directory.
type Tree struct {
	root  string
	files []StagedFile
}

// Root returns the staging directory path.
func (t *Tree) Root() string { return t.root }

// Files returns the staged files sorted by key.
func (t *Tree) Files() []StagedFile { return t.files }

// Keys returns the sorted relative keys of all staged files.
func (t *Tree) Keys() []string {
	keys := make([]string, len(t.files))
	for i, f := range t.files {
		keys[i] = f.Key
	}
	return keys
}

// Close removes the staging directory.
func (t *Tree) Close() error {
	return os.RemoveAll(t.root)
}

// Stage copies the resolved entries into a fresh temporary tree.
//
// A file entry is staged under its own basename. A directory entry is staged
// recursively, every contained file keyed under the directory's basename.
// The full key-to-source mapping is built and collision-checked before any
// byte is copied; the same source reached through overlapping globs is
// deduplicated, two distinct sources on one key abort with *CollisionError.
//
// Symbolic links are followed: a staged link is copied as its target's
// content. That is policy, not an accident of the copy routine.
func Stage(entries []resolver.Entry) (*Tree, error) {
	files, err := buildMapping(entries)
	if err != nil {
		return nil, err
	}

	root, err := os.MkdirTemp("", "cos-sync-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	tree := &Tree{root: root, files: files}
	for _, f := range files {
		dst := filepath.Join(root, filepath.FromSlash(f.Key))
		if err := copyFile(f.Source, dst); err != nil {
			tree.Close()
			return nil, fmt.Errorf("stage %s: %w", f.Key, err)
		}
	}
	return tree, nil
}

func buildMapping(entries []resolver.Entry) ([]StagedFile, error) {
	sources := make(map[string]string)
	var keys []string

	add := func(key, source string) error {
		if existing, ok := sources[key]; ok {
			if existing == source {
				slog.Debug("skipping already staged file from overlapping patterns", "key", key)
				return nil
			}
			return &CollisionError{Key: key, SourceA: existing, SourceB: source}
		}
		sources[key] = source
		keys = append(keys, key)
		return nil
	}

	for _, entry := range entries {
		if !entry.IsDir {
			if err := add(filepath.Base(entry.Path), entry.Path); err != nil {
				return nil, err
			}
			continue
		}

		// The entry may be a symlink to a directory; resolve it so the walk
		// descends into the target while keys stay rooted at the link's name.
		root, err := filepath.EvalSymlinks(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", entry.Path, err)
		}
		if err := addTree(root, filepath.Base(entry.Path), add); err != nil {
			return nil, err
		}
	}

	sort.Strings(keys)
	files := make([]StagedFile, len(keys))
	for i, key := range keys {
		files[i] = StagedFile{Key: key, Source: sources[key]}
	}
	return files, nil
}

// addTree registers every file under root (a resolved directory) with keys
// under base. Directory symlinks are followed by recursing into their
// targets, keeping the key rooted at the link's position in the tree.
func addTree(root, base string, add func(key, source string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("get relative path: %w", err)
		}
		key := base + "/" + filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", path, err)
			}
			info, err := os.Stat(resolved)
			if err != nil {
				return err
			}
			if info.IsDir() {
				return addTree(resolved, key, add)
			}
		}

		return add(key, path)
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy content: %w", err)
	}
	return out.Sync()
}
