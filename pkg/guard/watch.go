package guard

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchDebounce coalesces bursts of writes, e.g. an editor saving a file.
const watchDebounce = 200 * time.Millisecond

// Watch scans dir once, then again whenever a scanned file under it
// changes, calling fn with each result. It returns when ctx is done.
func (g *Guard) Watch(ctx context.Context, dir string, fn func(*Report, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := g.watchTree(w, dir); err != nil {
		return err
	}

	fn(g.Scan(dir))

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				// New directories need their own watch.
				_ = g.watchTree(w, ev.Name)
			}
			if !g.Matches(ev.Name) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			g.log.Debug("migration file changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			trigger = timer.C

		case <-trigger:
			trigger = nil
			fn(g.Scan(dir))

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			g.log.Warn("watch error", zap.Error(err))
		}
	}
}

// watchTree adds root and every directory below it to w.
func (g *Guard) watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
