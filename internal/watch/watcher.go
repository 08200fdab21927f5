package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gubarz/mdview/internal/chanqueue"
)

// Watcher watches the parent directories of a set of files. Directories
// are watched non-recursively and the set is diffed on every update.
type Watcher struct {
	fs     *fsnotify.Watcher
	log    *slog.Logger
	events *chanqueue.Unbounded[string]

	mu   sync.Mutex
	dirs map[string]struct{}
}

// NewWatcher starts an fsnotify watcher and its forwarding goroutine.
func NewWatcher(log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fs:     fsw,
		log:    log.With("component", "watch"),
		events: chanqueue.NewUnbounded[string](),
		dirs:   make(map[string]struct{}),
	}
	go w.forward()
	return w, nil
}

// Events delivers the cleaned path of every changed file. The channel is
// closed after Close.
func (w *Watcher) Events() <-chan string {
	return w.events.Out()
}

// SetFiles replaces the watched set with the parent directories of paths.
// Every add or remove is attempted; failures are joined into the result.
func (w *Watcher) SetFiles(paths []string) error {
	next := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		next[filepath.Dir(filepath.Clean(p))] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for dir := range w.dirs {
		if _, keep := next[dir]; keep {
			continue
		}
		if err := w.fs.Remove(dir); err != nil {
			errs = append(errs, fmt.Errorf("unwatch %q: %w", dir, err))
		}
		delete(w.dirs, dir)
	}
	for dir := range next {
		if _, have := w.dirs[dir]; have {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			errs = append(errs, fmt.Errorf("watch %q: %w", dir, err))
			continue
		}
		w.dirs[dir] = struct{}{}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		w.log.Warn("updating watched directories", "error", err)
		return err
	}
	w.log.Debug("watched directories updated", "dirs", len(w.dirs))
	return nil
}

// Dirs returns the watched directories, sorted.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.dirs))
	for dir := range w.dirs {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)
	return dirs
}

// Close stops watching. Events is closed after the paths already queued
// have been received.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) forward() {
	defer w.events.Close()

	events, errs := w.fs.Events, w.fs.Errors
	for events != nil || errs != nil {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.events.Send(filepath.Clean(event.Name))
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}
