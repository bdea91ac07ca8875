// Package watch re-parses annotation files when they change on disk.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"arwen/internal/logging"
	"arwen/internal/parser"
	"arwen/internal/spec"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when New is given a non-positive debounce.
const DefaultDebounce = 300 * time.Millisecond

// Handler receives the outcome of re-parsing path. Exactly one of file and
// err is non-nil.
type Handler func(path string, file *spec.AssertionFile, err error)

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Parsed        int
	ParseFailures int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches annotation files. Paths may name files or directories;
// for a directory every *.ml file directly inside it is watched. The
// parent directory of each file is what fsnotify actually watches, so
// editors that save by rename are still observed.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	handler     Handler
	files       map[string]bool // explicit files
	dirs        map[string]bool // directories watched wholesale
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// New creates a Watcher. Start must be called to begin watching.
func New(paths []string, debounce time.Duration, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: nil handler")
	}
	if len(paths) == 0 {
		return nil, errors.New("watch: no paths")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:     fw,
		handler:     handler,
		files:       make(map[string]bool),
		dirs:        make(map[string]bool),
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	watched := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			fw.Close()
			return nil, err
		}
		dir := abs
		if info.IsDir() {
			w.dirs[abs] = true
		} else {
			w.files[abs] = true
			dir = filepath.Dir(abs)
		}
		if watched[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
		watched[dir] = true
		logging.WatchDebug("watching directory %s", dir)
	}
	return w, nil
}

// Start begins delivering events. It does not block.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
	logging.Watch("watcher started (%d files, %d directories)", len(w.files), len(w.dirs))
}

// Stop stops the watcher and waits for the event loop to exit. It is safe
// to call more than once and after the context passed to Start is done.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		select {
		case <-w.stopCh:
		default:
			close(w.stopCh)
		}
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
}

// Stats returns a snapshot of the watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebounced()
		}
	}
}

// wants reports whether path is one of the watched annotation files.
func (w *Watcher) wants(path string) bool {
	if w.files[path] {
		return true
	}
	return w.dirs[filepath.Dir(path)] && strings.HasSuffix(path, ".ml")
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.wants(event.Name) {
		return
	}
	// a file removed for good surfaces as a read error from the handler
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	logging.WatchDebug("%s event for %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = time.Now()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		w.reparse(path)
	}
}

func (w *Watcher) reparse(path string) {
	f, err := parser.ParseFileAt(path)

	w.mu.Lock()
	if err != nil {
		w.stats.ParseFailures++
	} else {
		w.stats.Parsed++
	}
	w.mu.Unlock()

	if err != nil {
		logging.Get(logging.CategoryWatch).Warn("re-parse of %s failed: %v", filepath.Base(path), err)
		w.handler(path, nil, err)
		return
	}
	logging.Watch("re-parsed %s", filepath.Base(path))
	w.handler(path, f, nil)
}
