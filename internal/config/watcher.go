package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle coalesces editor write bursts (write + chmod + rename) into
// one reload.
const watchSettle = 250 * time.Millisecond

// Watch re-runs the loader whenever either config file changes and hands
// the fresh Config to onChange. Watching the parent directories (not the
// files) survives the rename-over dance most editors do. Blocks until ctx
// is done.
func Watch(ctx context.Context, loader *Loader, logger *slog.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]bool{}
	for _, path := range loader.Paths() {
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			// A missing .flock dir just means nothing to watch yet.
			logger.Debug("config watch skipped", "dir", dir, "error", err)
			continue
		}
		watched[dir] = true
	}

	relevant := map[string]bool{}
	for _, path := range loader.Paths() {
		relevant[filepath.Clean(path)] = true
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant[filepath.Clean(event.Name)] {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchSettle, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		case <-reload:
			cfg, err := loader.Load()
			if err != nil {
				logger.Error("config reload failed, keeping previous", "error", err)
				continue
			}
			logger.Info("configuration reloaded")
			onChange(cfg)
		}
	}
}
