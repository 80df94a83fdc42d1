package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/renshaw/taskwire/internal/models"
	"github.com/renshaw/taskwire/internal/profiles"
)

// runNative observes the profiles tree with fsnotify. New employee
// directories created at runtime are added to the watch list; a dashboard
// written into a fresh directory is picked up as an added event.
func (e *Engine) runNative(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := e.store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories join the watch list immediately.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						e.logger.Warn("watch: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					e.scanNewDir(ctx, root, absPath)
					continue
				}
			}

			if filepath.Base(absPath) != profiles.DashboardFile {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				e.handleEvent(ctx, models.ChangeEvent{Path: rel, Kind: models.ChangeAdded})
			case ev.Op&fsnotify.Write != 0:
				e.handleEvent(ctx, models.ChangeEvent{Path: rel, Kind: models.ChangeChanged})
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				e.handleEvent(ctx, models.ChangeEvent{Path: rel, Kind: models.ChangeRemoved})
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watch: observer error", slog.String("error", watchErr.Error()))
		}
	}
}

// scanNewDir emits added events for dashboards already present in a newly
// created directory, which fsnotify would otherwise miss.
func (e *Engine) scanNewDir(ctx context.Context, root, dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != profiles.DashboardFile {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		e.handleEvent(ctx, models.ChangeEvent{Path: rel, Kind: models.ChangeAdded})
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
