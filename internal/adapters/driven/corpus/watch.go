package corpus

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/sitesearch-cli/internal/logger"
)

// debounceWindow coalesces the burst of write events most editors and
// build tools emit for a single file save.
const debounceWindow = 500 * time.Millisecond

// Watcher re-runs initialization when a local corpus file changes, so a
// long-running session (TUI, MCP server) picks up a rebuilt site corpus
// without restarting.
type Watcher struct {
	path    string
	init    driving.Initializer
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given corpus file.
func NewWatcher(path string, init driving.Initializer) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{path: path, init: init, watcher: fw}, nil
}

// Run blocks until the context is cancelled, resetting and restarting
// the initializer after each (debounced) corpus change.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Corpus watcher error: %v", err)

		case <-reload:
			logger.Info("Corpus changed at %s, reloading", w.path)
			w.init.Reset()
			w.init.Start(ctx)
		}
	}
}
