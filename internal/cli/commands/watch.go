package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 100 * time.Millisecond

// catalogWatcher reports catalog files that changed on disk.
// Parent directories are watched rather than the files, so editors that save
// by renaming a temp file over the original are still seen.
type catalogWatcher struct {
	watcher  *fsnotify.Watcher
	tracked  map[string]string // cleaned absolute path -> path as given
	debounce time.Duration
	logger   *slog.Logger
}

func newCatalogWatcher(paths []string, logger *slog.Logger) (*catalogWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &catalogWatcher{
		watcher:  watcher,
		tracked:  make(map[string]string, len(paths)),
		debounce: defaultWatchDebounce,
		logger:   logger,
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		w.tracked[filepath.Clean(abs)] = p
		dirs[filepath.Dir(abs)] = true
	}

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	return w, nil
}

// Run delivers batches of changed catalog paths to onChange until ctx is done.
// Events within the debounce window are coalesced into one batch.
func (w *catalogWatcher) Run(ctx context.Context, onChange func(changed []string)) error {
	defer func() { _ = w.watcher.Close() }()

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			original, ok := w.tracked[filepath.Clean(event.Name)]
			if !ok {
				continue
			}

			w.logger.Debug("Catalog changed", "path", original, "op", event.Op.String())
			pending[original] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			onChange(changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}
