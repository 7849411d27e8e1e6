package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Directories never descended into, in addition to hidden ones.
var excludedDirs = map[string]struct{}{
	".venv": {}, ".git": {}, ".hg": {}, ".svn": {}, "__pycache__": {},
	"node_modules": {}, ".tox": {}, ".mypy_cache": {}, ".pytest_cache": {},
	".ruff_cache": {}, "dist": {}, "build": {}, ".eggs": {},
}

// IndexFile names directory index pages, which are not documents.
const IndexFile = "_index.md"

// FS collects documents from a local directory.
type FS struct {
	root    string // absolute
	exclude []string
}

var _ Collector = (*FS)(nil)

// NewFS creates a collector rooted at root. exclude holds doublestar
// patterns matched against slash-separated paths relative to root.
func NewFS(root string, exclude ...string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("storage: invalid exclude pattern %q", p)
		}
	}
	return &FS{root: abs, exclude: exclude}, nil
}

// Root returns the absolute document root.
func (f *FS) Root() string { return f.root }

// SkipDir reports whether the directory at rel (relative to root) is not
// walked.
func (f *FS) SkipDir(rel string) bool {
	name := filepath.Base(rel)
	if _, ok := excludedDirs[name]; ok || strings.HasPrefix(name, ".") {
		return true
	}
	return f.excluded(rel)
}

// Tracked reports whether the file at rel is a collectable document.
func (f *FS) Tracked(rel string) bool {
	name := filepath.Base(rel)
	if !strings.HasSuffix(name, ".md") || name == IndexFile {
		return false
	}
	dir := filepath.Dir(rel)
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		if f.SkipDir(dir) {
			return false
		}
		dir = filepath.Dir(dir)
	}
	return !f.excluded(rel)
}

func (f *FS) excluded(rel string) bool {
	slashed := filepath.ToSlash(rel)
	for _, p := range f.exclude {
		if ok, _ := doublestar.Match(p, slashed); ok {
			return true
		}
	}
	return false
}

// Collect walks the root in lexical order and reads every tracked document.
// Unreadable files are counted, not fatal.
func (f *FS) Collect(ctx context.Context) (*Collection, error) {
	out := newCollection()
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		if walkErr != nil {
			if p == f.root {
				return walkErr
			}
			out.Errors++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != f.root && f.SkipDir(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !f.Tracked(rel) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			out.Errors++
			return nil
		}
		out.add(filepath.ToSlash(rel), data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: collect %s: %w", f.root, err)
	}
	return out, nil
}
