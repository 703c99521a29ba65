package framework

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"mizan/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// SeedWatcher watches the framework seed file and re-applies it on change,
// then notifies the engine so cached loops and stats get invalidated. Used
// by `mizan seed --watch` during corpus iteration.
type SeedWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	seedPath    string
	onReload    func() error
	debounceDur time.Duration
	lastEvent   time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewSeedWatcher creates a watcher for the given seed file. onReload runs
// after each debounced write event; it should re-apply the seed and
// invalidate caches.
func NewSeedWatcher(seedPath string, onReload func() error) (*SeedWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &SeedWatcher{
		watcher:     watcher,
		seedPath:    seedPath,
		onReload:    onReload,
		debounceDur: 500 * time.Millisecond, // editors save in bursts
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs in a goroutine
// until Stop or context cancellation.
func (w *SeedWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory, not the file: editors replace files on save and
	// a file watch dies with the old inode.
	dir := filepath.Dir(w.seedPath)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	logging.Framework("SeedWatcher: watching %s", dir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *SeedWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *SeedWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.seedPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.mu.Lock()
			debounced := time.Since(w.lastEvent) < w.debounceDur
			if !debounced {
				w.lastEvent = time.Now()
			}
			w.mu.Unlock()
			if debounced {
				continue
			}

			logging.Framework("SeedWatcher: seed changed (%s), reloading", event.Op)
			if err := w.onReload(); err != nil {
				logging.Get(logging.CategoryFramework).Error("SeedWatcher: reload failed: %v", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryFramework).Warn("SeedWatcher: watch error: %v", err)
		}
	}
}
