package grading

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/khelo/talenttrack/pkg/logger"
)

// Watch monitors the benchmark file for changes and reloads the table each
// time the file is written. It runs until ctx is cancelled.
//
// If a reload fails (invalid YAML, overlapping ranges), the error is logged
// and the previous table remains active.
func (t *Table) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	t.log.Info(ctx, "watching benchmark file", logger.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only reload on write or create events. Editors often write via
			// rename (atomic save), so also catch fsnotify.Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := t.Reload(path); err != nil {
				t.log.Error(ctx, "benchmark reload failed, keeping previous table",
					logger.String("path", path), logger.Error(err))
				continue
			}

			t.log.Info(ctx, "benchmark table reloaded",
				logger.String("path", path), logger.Int("rows", t.Count()))

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.log.Error(ctx, "benchmark watcher error", logger.Error(err))
		}
	}
}
