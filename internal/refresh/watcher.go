package refresh

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DirtyMarker is the scheduler surface the watcher needs.
type DirtyMarker interface {
	MarkDirty(alias string)
}

// DirtyWatcher watches source clones with fsnotify and marks their aliases
// dirty on any write. Dirty aliases become due on the scheduler's next tick
// instead of waiting for next_run. The watcher is an accelerator only:
// missed events cost latency, never correctness.
type DirtyWatcher struct {
	fsWatcher *fsnotify.Watcher
	marker    DirtyMarker

	mu      sync.RWMutex
	roots   map[string]string // watched clone root -> alias
	stopped bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDirtyWatcher creates the watcher. The scheduler is plugged in as the
// marker.
func NewDirtyWatcher(marker DirtyMarker) (*DirtyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &DirtyWatcher{
		fsWatcher: fsw,
		marker:    marker,
		roots:     make(map[string]string),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Watch registers a clone root for an alias and adds its directory tree to
// the watch set. Unreadable subdirectories are skipped.
func (w *DirtyWatcher) Watch(alias, cloneRoot string) error {
	abs, err := filepath.Abs(cloneRoot)
	if err != nil {
		return fmt.Errorf("resolve clone root: %w", err)
	}

	w.mu.Lock()
	w.roots[abs] = alias
	w.mu.Unlock()

	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			slog.Debug("watch dir", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

// Start launches the event loop. Non-blocking.
func (w *DirtyWatcher) Start() {
	go w.loop()
}

// Stop shuts the watcher down. Safe to call multiple times.
func (w *DirtyWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	err := w.fsWatcher.Close()
	<-w.doneCh
	return err
}

func (w *DirtyWatcher) loop() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Warn("fs watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *DirtyWatcher) handle(event fsnotify.Event) {
	if strings.Contains(event.Name, string(filepath.Separator)+".git"+string(filepath.Separator)) {
		return
	}

	alias := w.aliasFor(event.Name)
	if alias == "" {
		return
	}

	// New directories join the watch set so nested writes keep arriving.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fsWatcher.Add(event.Name); err != nil {
				slog.Debug("watch new dir",
					slog.String("path", event.Name),
					slog.String("error", err.Error()))
			}
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.marker.MarkDirty(alias)
	}
}

func (w *DirtyWatcher) aliasFor(path string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for root, alias := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return alias
		}
	}
	return ""
}
