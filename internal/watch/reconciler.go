// Package watch turns file system change notifications into debounced
// reload requests for open documents.
package watch

import (
	"slices"
	"sync"
	"time"
)

// Debounce is how long a path must stay quiet before it is reloaded.
const Debounce = 250 * time.Millisecond

// Reconciler collects change events per path and releases each path once
// no event arrived for a full debounce window.
type Reconciler struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]time.Time
}

// NewReconciler creates a Reconciler using Debounce.
func NewReconciler() *Reconciler {
	return NewReconcilerWindow(Debounce)
}

// NewReconcilerWindow creates a Reconciler with a custom quiet period.
func NewReconcilerWindow(window time.Duration) *Reconciler {
	return &Reconciler{
		window:  window,
		pending: make(map[string]time.Time),
	}
}

// Touch records a change of path at the given time.
func (r *Reconciler) Touch(path string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[path] = at
}

// Due removes and returns, sorted, every path whose last change is at
// least one window older than now.
func (r *Reconciler) Due(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []string
	for path, last := range r.pending {
		if now.Sub(last) >= r.window {
			due = append(due, path)
		}
	}
	for _, path := range due {
		delete(r.pending, path)
	}
	slices.Sort(due)
	return due
}

// Reset forgets every pending path.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.pending)
}

// Len returns the number of pending paths.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
