// Package server serves open documents as live HTML pages over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gubarz/mdview/internal/view"
	"github.com/gubarz/mdview/internal/watch"
	"github.com/gubarz/mdview/internal/workspace"
)

// Event names sent to /events subscribers.
const (
	EventReload = "reload"
	EventRender = "render"
)

// Server is the HTTP preview server.
type Server struct {
	router   chi.Router
	ws       *workspace.Workspace
	renderer *view.Renderer
	log      *slog.Logger
	events   *broker
}

// NewServer creates and configures the HTTP server.
func NewServer(ws *workspace.Workspace, renderer *view.Renderer, log *slog.Logger) *Server {
	s := &Server{
		ws:       ws,
		renderer: renderer,
		log:      log.With("component", "server"),
		events:   newBroker(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Get("/events", s.handleEvents)

	r.Route("/doc/{docID}", func(r chi.Router) {
		r.Get("/", s.handleDocument)
		r.Get("/outline", s.handleOutline)
		r.Get("/find", s.handleFind)
		r.Get("/heading/{fragment}", s.handleHeading)
	})

	s.router = r
}

// Broadcast sends event to every connected /events client.
func (s *Server) Broadcast(event string) {
	s.events.publish(event)
}

// Watch drives background work until ctx ends: cache notifications become
// render events, file changes are debounced into silent reloads.
func (s *Server) Watch(ctx context.Context, notifier *view.Notifier) {
	ticker := time.NewTicker(watch.Debounce / 2)
	defer ticker.Stop()

	var changed <-chan struct{}
	if notifier != nil {
		changed = notifier.C()
	}
	files := s.ws.WatchEvents()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			s.Broadcast(EventRender)
		case path, ok := <-files:
			if !ok {
				files = nil
				continue
			}
			s.ws.HandleEvent(path, time.Now())
		case now := <-ticker.C:
			if ids := s.ws.ProcessPending(now); len(ids) > 0 {
				s.log.Info("documents reloaded", "ids", ids)
				s.Broadcast(EventReload)
			}
		}
	}
}

// ============================================================================
// Event broker
// ============================================================================

type broker struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[chan string]struct{})}
}

func (b *broker) subscribe() chan string {
	ch := make(chan string, 8)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broker) unsubscribe(ch chan string) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// publish drops the event for subscribers whose buffer is full; they
// reload on the next one anyway.
func (b *broker) publish(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *broker) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
