package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yungbote/course-rag-backend/internal/platform/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// Ingester handles one settled course file.
type Ingester func(ctx context.Context, path string) error

// Watcher ingests course files created or rewritten in a folder once they
// have been quiet for the debounce interval.
type Watcher struct {
	mu       sync.Mutex
	log      *logger.Logger
	watcher  *fsnotify.Watcher
	dir      string
	ingest   Ingester
	accept   func(path string) bool
	debounce time.Duration
	pending  map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFilter limits which paths reach the ingester.
func WithFilter(accept func(path string) bool) Option {
	return func(w *Watcher) { w.accept = accept }
}

func New(log *logger.Logger, dir string, ingest Ingester, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		log:      log.With("service", "DocsWatcher", "dir", dir),
		watcher:  fw,
		dir:      dir,
		ingest:   ingest,
		accept:   func(string) bool { return true },
		debounce: DefaultDebounce,
		pending:  map[string]time.Time{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start adds the folder to the watch list and returns; events are handled on
// a background goroutine until Stop or ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("watching course folder")
	go w.run(ctx)
	return nil
}

// Stop ends the event loop, waits for it and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.log.Warn("close watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if !w.accept(ev.Name) {
		return
	}
	w.mu.Lock()
	w.pending[filepath.Clean(ev.Name)] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var ready []string
	w.mu.Lock()
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if err := w.ingest(ctx, path); err != nil {
			w.log.Warn("ingest failed", "path", path, "error", err)
			continue
		}
		w.log.Debug("ingested", "path", path)
	}
}
