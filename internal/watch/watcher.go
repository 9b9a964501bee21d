// Package watch reports changes inside mod directories as debounced events.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"xxmm/internal/events"
	"xxmm/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches bursts such as archive extraction
const DefaultDebounce = 300 * time.Millisecond

// Change is the payload of an fs-change event
type Change struct {
	Root  string   `json:"root"`
	Paths []string `json:"paths"`
}

type root struct {
	path      string
	recursive bool
}

type pending struct {
	paths map[string]struct{}
	last  time.Time
}

// Watcher watches directories and emits one fs-change per root after
// changes under it have been quiet for the debounce interval.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	emitter  events.Emitter
	debounce time.Duration
	roots    map[string]root
	pending  map[string]*pending
	stopCh   chan struct{}
	doneCh   chan struct{}
	closed   bool
}

// New creates a watcher and starts its event loop
func New(e events.Emitter, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsw:      fsw,
		emitter:  e,
		debounce: debounce,
		roots:    make(map[string]root),
		pending:  make(map[string]*pending),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch starts watching dir, and every directory below it when recursive
func (w *Watcher) Watch(dir string, recursive bool) error {
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("directory not found: %s", dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("watcher closed")
	}
	if _, ok := w.roots[dir]; ok {
		return nil
	}

	if err := w.addTree(dir, recursive); err != nil {
		return err
	}
	w.roots[dir] = root{path: dir, recursive: recursive}
	logging.Info("Watching directory", "path", logging.MaskPath(dir), "recursive", recursive)
	return nil
}

// addTree must be called with w.mu held
func (w *Watcher) addTree(dir string, recursive bool) error {
	if !recursive {
		return w.fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}

// Unwatch stops watching dir and everything added for it
func (w *Watcher) Unwatch(dir string) error {
	dir = filepath.Clean(dir)

	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.roots[dir]
	if !ok {
		return fmt.Errorf("not watching: %s", dir)
	}
	delete(w.roots, dir)
	delete(w.pending, dir)

	for _, path := range w.fsw.WatchList() {
		if path != r.path && !(r.recursive && isWithin(path, r.path)) {
			continue
		}
		if w.ownedByOtherRoot(path) {
			continue
		}
		w.fsw.Remove(path)
	}
	logging.Info("Stopped watching directory", "path", logging.MaskPath(dir))
	return nil
}

func (w *Watcher) ownedByOtherRoot(path string) bool {
	for _, r := range w.roots {
		if path == r.path || (r.recursive && isWithin(path, r.path)) {
			return true
		}
	}
	return false
}

// Watched lists the watched roots
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := make([]string, 0, len(w.roots))
	for p := range w.roots {
		list = append(list, p)
	}
	sort.Strings(list)
	return list
}

// Close stops the event loop and releases the OS watches
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("Watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.rootFor(event.Name)
	if !ok {
		return
	}

	if r.recursive && event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name, true); err != nil {
				logging.Warn("Failed to watch new directory", "path", logging.MaskPath(event.Name), "error", err)
			}
		}
	}

	p, ok := w.pending[r.path]
	if !ok {
		p = &pending{paths: make(map[string]struct{})}
		w.pending[r.path] = p
	}
	p.paths[event.Name] = struct{}{}
	p.last = time.Now()
}

// rootFor returns the innermost root covering path. Must be called with w.mu held.
func (w *Watcher) rootFor(path string) (root, bool) {
	var best root
	found := false
	for _, r := range w.roots {
		dir := filepath.Dir(path)
		covers := dir == r.path || path == r.path || (r.recursive && isWithin(path, r.path))
		if covers && len(r.path) > len(best.path) {
			best, found = r, true
		}
	}
	return best, found
}

func (w *Watcher) flush(now time.Time) {
	var ready []Change

	w.mu.Lock()
	for rootPath, p := range w.pending {
		if now.Sub(p.last) < w.debounce {
			continue
		}
		paths := make([]string, 0, len(p.paths))
		for path := range p.paths {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		ready = append(ready, Change{Root: rootPath, Paths: paths})
		delete(w.pending, rootPath)
	}
	w.mu.Unlock()

	for _, c := range ready {
		logging.Debug("Directory changed", "root", logging.MaskPath(c.Root), "paths", len(c.Paths))
		w.emitter.Emit(events.FSChange, c)
	}
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
