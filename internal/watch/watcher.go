// Package watch reports batches of file changes under a project root.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"tia/internal/domain"
)

// ChangeFunc receives the project-relative paths changed during one
// debounce window.
type ChangeFunc func(ctx context.Context, paths []string) error

// Watcher watches every directory under root except ignored ones.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   map[string]bool
	logger   *slog.Logger
}

// New creates a Watcher. Directories named in ignore, and hidden
// directories, are not watched.
func New(root string, debounce time.Duration, ignore []string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		root:     root,
		fsw:      fsw,
		debounce: debounce,
		ignore:   make(map[string]bool, len(ignore)),
		logger:   logger,
	}
	for _, name := range ignore {
		w.ignore[name] = true
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks until ctx is done, calling fn after each quiet period that
// follows at least one change. An error from fn stops Run.
func (w *Watcher) Run(ctx context.Context, fn ChangeFunc) error {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("cannot watch directory", slog.String("dir", event.Name), slog.Any("error", err))
					}
				}
			}
			pending[domain.RelPath(w.root, event.Name)] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", slog.Any("error", err))

		case <-timerC:
			timerC = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)

			w.logger.Debug("files changed", slog.Int("count", len(paths)))
			if err := fn(ctx, paths); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || w.ignore[name]
}

// ignored reports whether path lies in a skipped directory below root.
func (w *Watcher) ignored(path string) bool {
	rel := domain.RelPath(w.root, path)
	if filepath.IsAbs(rel) {
		return true
	}
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if w.skipDir(dir) {
			return true
		}
	}
	return false
}
