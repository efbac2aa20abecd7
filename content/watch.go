package content

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDuration = 300 * time.Millisecond

// Watch rebuilds whenever a Markdown source changes, until ctx is done.
// Bursts of events, as editors produce when saving, trigger one build.
// onBuild, if set, is called after every rebuild with its outcome.
func (b *Builder) Watch(ctx context.Context, onBuild func(*BuildResult, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create file watcher: %w", err)
	}
	defer watcher.Close()

	// watch the directory so editors that save by rename are seen
	if err := watcher.Add(filepath.Clean(b.src)); err != nil {
		return fmt.Errorf("watch %s: %w", b.src, err)
	}
	b.logger.Info("watching for changes", "dir", b.src)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			b.logger.Debug("change detected", "file", event.Name, "op", event.Op.String())
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounceDuration)
			pending = true
		case <-timer.C:
			pending = false
			res, err := b.Build(ctx)
			if err != nil {
				b.logger.Error("rebuild failed", "error", err)
			}
			if onBuild != nil {
				onBuild(res, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.logger.Warn("watcher error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".md") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
