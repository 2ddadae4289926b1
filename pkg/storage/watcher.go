package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vjranagit/lkext/pkg/naming"
)

// DefaultWatchDebounce is the quiet period before a watched root is rescanned
const DefaultWatchDebounce = 2 * time.Second

// Watch rescans root whenever light-curve files appear in it, after debounce
// of quiet. It blocks until ctx is done and returns nil on cancellation.
// onScan, when set, receives every rescan error or nil.
func (d *DirectoryCache) Watch(ctx context.Context, root string, debounce time.Duration, onScan func(error)) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatches(watcher, abs); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", abs, err)
	}
	d.logger.Info("watching root", "root", abs, "debounce", debounce)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !d.relevant(watcher, event) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
			pending = true

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("file watcher error", "root", abs, "err", err)

		case <-timer.C:
			pending = false
			_, err := d.Scan(ctx, abs)
			if err != nil {
				d.logger.Error("rescan failed", "root", abs, "err", err)
			}
			if onScan != nil {
				onScan(err)
			}
		}
	}
}

// relevant reports whether an event can change the scan result. New
// directories are watched as they appear.
func (d *DirectoryCache) relevant(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addWatches(watcher, event.Name); err != nil {
				d.logger.Warn("failed to watch new directory", "path", event.Name, "err", err)
			}
			return true
		}
	}
	return naming.HasExtension(filepath.Base(event.Name))
}

// addWatches adds a watch on every directory below root
func addWatches(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
