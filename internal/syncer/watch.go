package syncer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/lens/internal/apperr"
	"github.com/starford/lens/internal/models"
	"github.com/starford/lens/internal/storage"
)

// DefaultDebounce is the quiet period before a changed project is re-synced.
const DefaultDebounce = 500 * time.Millisecond

// watchedRoot is one local project directory under watch.
type watchedRoot struct {
	slug string
	fs   *storage.FS
}

// Watch watches every local project's directory and re-syncs a project once
// its .md files have been quiet for debounce. New directories are added to
// the watch list as they appear; ProjectsChanged reloads the project set.
// It blocks until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	roots := make(map[string]watchedRoot) // absolute root -> project
	if err := m.loadRoots(ctx, w, roots); err != nil {
		return err
	}
	m.logger.Info("watcher: started", slog.Int("projects", len(roots)))

	timers := make(map[string]*time.Timer)
	fire := make(chan string, 16)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	schedule := func(slug string) {
		if t, ok := timers[slug]; ok {
			t.Reset(debounce)
			return
		}
		timers[slug] = time.AfterFunc(debounce, func() {
			select {
			case fire <- slug:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("watcher: stopped")
			return nil

		case <-m.rewatch:
			if err := m.loadRoots(ctx, w, roots); err != nil {
				m.logger.Warn("watcher: reload projects failed", slog.String("error", err.Error()))
			}

		case slug := <-fire:
			delete(timers, slug)
			if _, err := m.Trigger(ctx, slug); err != nil {
				if errors.Is(err, apperr.ErrSyncInProgress) {
					// Catch the changes that landed during the running sync.
					schedule(slug)
					continue
				}
				m.logger.Warn("watcher: trigger sync failed",
					slog.String("project", slug), slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			root, rel, ok := owner(roots, ev.Name)
			if !ok {
				continue
			}
			wr := roots[root]

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if wr.fs.SkipDir(rel) {
						continue
					}
					if addErr := addDirsRecursive(w, wr.fs, ev.Name); addErr != nil {
						m.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
					// Files may already exist inside a moved-in directory.
					schedule(wr.slug)
					continue
				}
			}
			// Removing or renaming a directory reports the directory path
			// itself, which is not a .md file.
			if !strings.HasSuffix(ev.Name, ".md") && ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if strings.HasSuffix(ev.Name, ".md") && !wr.fs.Tracked(rel) {
				continue
			}
			m.logger.Debug("watcher: change", slog.String("project", wr.slug), slog.String("path", rel), slog.String("op", ev.Op.String()))
			schedule(wr.slug)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// loadRoots syncs the watch list with the current local projects.
func (m *Manager) loadRoots(ctx context.Context, w *fsnotify.Watcher, roots map[string]watchedRoot) error {
	projects, err := m.store.ListProjects(ctx)
	if err != nil {
		return err
	}
	want := make(map[string]models.Project)
	for _, p := range projects {
		if p.SourceType != models.SourceLocal || p.SDLCPath == "" {
			continue
		}
		abs, err := filepath.Abs(p.SDLCPath)
		if err != nil {
			continue
		}
		want[abs] = p
	}

	for root, wr := range roots {
		if p, ok := want[root]; ok && p.Slug == wr.slug {
			continue
		}
		removeDirsRecursive(w, root)
		delete(roots, root)
	}
	for root, p := range want {
		if _, ok := roots[root]; ok {
			continue
		}
		fsys, err := storage.NewFS(root, m.engine.sources.Exclude...)
		if err != nil {
			m.logger.Warn("watcher: skip project", slog.String("project", p.Slug), slog.String("error", err.Error()))
			continue
		}
		if err := addDirsRecursive(w, fsys, root); err != nil {
			m.logger.Warn("watcher: watch project failed", slog.String("project", p.Slug), slog.String("error", err.Error()))
			continue
		}
		roots[root] = watchedRoot{slug: p.Slug, fs: fsys}
	}
	return nil
}

// owner finds the watched root containing path, preferring the deepest.
func owner(roots map[string]watchedRoot, path string) (root, rel string, ok bool) {
	for r := range roots {
		if path != r && !strings.HasPrefix(path, r+string(filepath.Separator)) {
			continue
		}
		if len(r) > len(root) {
			root = r
		}
	}
	if root == "" {
		return "", "", false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", "", false
	}
	return root, rel, true
}

// addDirsRecursive adds dir and all its non-skipped subdirectories.
func addDirsRecursive(w *fsnotify.Watcher, fsys *storage.FS, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(fsys.Root(), p); rel != "." && fsys.SkipDir(rel) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

func removeDirsRecursive(w *fsnotify.Watcher, root string) {
	for _, p := range w.WatchList() {
		if p == root || strings.HasPrefix(p, root+string(filepath.Separator)) {
			_ = w.Remove(p)
		}
	}
}
