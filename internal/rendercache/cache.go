// Package rendercache memoizes slow external renders (TeX and Mermaid to
// SVG) behind a non-blocking request API. Misses are queued for a single
// background worker; callers see Pending until the result lands.
package rendercache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gubarz/mdview/internal/chanqueue"
)

// ============================================================================
// States
// ============================================================================

// Status is the lifecycle stage of a cache entry.
type Status int

const (
	Pending Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of one entry. Data is set for Ready, Err for Failed.
// Data must be treated as read-only.
type State struct {
	Status Status
	Data   []byte
	Err    string
}

// Terminal reports whether the state will no longer change.
func (s State) Terminal() bool { return s.Status != Pending }

// RenderFunc performs the blocking render for key.
type RenderFunc[K comparable] func(ctx context.Context, key K) ([]byte, error)

// ============================================================================
// Options
// ============================================================================

type options struct {
	name   string
	log    *slog.Logger
	notify func()
}

// Option configures a Cache.
type Option func(*options)

// WithName labels the cache in log output.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used by the worker.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithNotify registers a callback invoked from the worker goroutine after
// every stored result. It must not block.
func WithNotify(fn func()) Option {
	return func(o *options) { o.notify = fn }
}

// ============================================================================
// Cache
// ============================================================================

// Cache maps keys to render states. At most one render per key is in
// flight; Ready and Failed entries are kept until Clear.
type Cache[K comparable] struct {
	render RenderFunc[K]
	opts   options
	log    *slog.Logger

	mu       sync.Mutex
	entries  map[K]State
	enqueued int
	closed   bool

	queue *chanqueue.Unbounded[K]

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New creates a cache. Call Start to begin processing requests.
func New[K comparable](render RenderFunc[K], opts ...Option) *Cache[K] {
	o := options{name: "render", log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K]{
		render:  render,
		opts:    o,
		log:     o.log.With("cache", o.name),
		entries: make(map[K]State),
		queue:   chanqueue.NewUnbounded[K](),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine. Calling it again has no effect.
func (c *Cache[K]) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.work(ctx)
	})
}

// Close stops the worker once the render in progress, if any, finishes.
// Requests made after Close are recorded as Pending but never rendered.
func (c *Cache[K]) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.queue.Close()
		c.mu.Unlock()

		c.startOnce.Do(func() { close(c.done) })
		close(c.stop)
		<-c.done

		// Discard keys the worker never reached so the queue can exit.
		go func() {
			for range c.queue.Out() {
			}
		}()
	})
}

// Request returns the current state for key without blocking. A miss
// records Pending and queues exactly one render.
func (c *Cache[K]) Request(key K) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.entries[key]; ok {
		return st
	}
	st := State{Status: Pending}
	c.entries[key] = st
	if !c.closed {
		c.enqueued++
		c.queue.Send(key)
	}
	return st
}

// Peek returns the state for key without queueing anything on a miss.
func (c *Cache[K]) Peek(key K) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.entries[key]
	return st, ok
}

// Clear drops every entry. Renders already queued still run and their
// results are stored.
func (c *Cache[K]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of entries.
func (c *Cache[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Enqueued returns how many renders have been queued since creation.
func (c *Cache[K]) Enqueued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enqueued
}

// Stats counts entries per status.
func (c *Cache[K]) Stats() map[Status]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := make(map[Status]int, 3)
	for _, st := range c.entries {
		stats[st.Status]++
	}
	return stats
}

func (c *Cache[K]) work(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case key, ok := <-c.queue.Out():
			if !ok {
				return
			}
			c.store(key, c.renderOne(ctx, key))
			if c.opts.notify != nil {
				c.opts.notify()
			}
		}
	}
}

func (c *Cache[K]) renderOne(ctx context.Context, key K) State {
	data, err := c.render(ctx, key)
	if err != nil {
		c.log.Warn("render failed", "error", err)
		return State{Status: Failed, Err: err.Error()}
	}
	c.log.Debug("render finished", "bytes", len(data))
	return State{Status: Ready, Data: data}
}

// store writes a worker result unless the entry already reached a
// terminal state.
func (c *Cache[K]) store(key K, st State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[key]; ok && cur.Terminal() {
		return
	}
	c.entries[key] = st
}
