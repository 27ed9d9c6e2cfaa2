package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce batches rapid write events (editors often write a file
// several times in quick succession) into one reload.
const reloadDebounce = 2 * time.Second

// Watch monitors the hydration table file and invokes the given reload
// callbacks after changes settle. The file's directory is watched rather
// than the file itself, so atomic rename-into-place saves are seen too.
// Blocks until the context is cancelled.
func Watch(ctx context.Context, path string, log *zap.Logger, reload ...func() error) error {
	if log == nil {
		log = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(path)

	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop() // Don't start yet

	log.Info("watching hydration table", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			// Start/restart debounce timer
			debounce.Reset(reloadDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))

		case <-debounce.C:
			for _, fn := range reload {
				if err := fn(); err != nil {
					log.Warn("reload after change failed", zap.Error(err))
				}
			}
			log.Info("hydration table change applied", zap.String("path", target))
		}
	}
}
