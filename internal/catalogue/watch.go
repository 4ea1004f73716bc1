package catalogue

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
)

// Source hands out the current catalogue. It is safe for concurrent use; a
// running search keeps the catalogue it started with.
type Source struct {
	current atomic.Pointer[Catalogue]
}

// NewSource wraps an initial catalogue.
func NewSource(c *Catalogue) *Source {
	s := &Source{}
	s.current.Store(c)
	return s
}

// Current returns the active catalogue.
func (s *Source) Current() *Catalogue {
	return s.current.Load()
}

// Watch reloads path into s whenever the file is written or replaced, until ctx is
// done. Invalid documents are logged and ignored so the previous catalogue stays active.
func (s *Source) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalogue watcher: %w", err)
	}
	// Editors often replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(path)
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					debounce = time.After(100 * time.Millisecond)
				}
			case <-debounce:
				debounce = nil
				c, err := Load(path)
				if err != nil {
					logger.Warn("catalogue reload failed", "path", path, "error", err)
					continue
				}
				s.current.Store(c)
				logger.Info("catalogue reloaded", "path", path, "modules", c.Len())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("catalogue watcher error", "error", err)
			}
		}
	}()
	return nil
}
