package blobstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onRemove with the id of every image file that disappears from
// the store directory outside of Remove, until ctx is done.
func (b *Local) Watch(ctx context.Context, logger *slog.Logger, onRemove func(id string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Warn("Failed to close watcher", "error", closeErr)
		}
	}()

	if err := watcher.Add(b.photos); err != nil {
		return fmt.Errorf("failed to watch %s: %w", b.photos, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			id := filepath.Base(event.Name)
			if strings.HasPrefix(id, ".") {
				continue
			}
			logger.Info("Image file removed", "id", id)
			onRemove(id)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "error", err)
		}
	}
}
