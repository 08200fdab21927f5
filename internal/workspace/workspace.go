// Package workspace tracks the open documents of a viewer session: which
// one is active, the search state, auto-reload and the render caches that
// must be dropped on theme changes.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gubarz/mdview/internal/document"
	"github.com/gubarz/mdview/internal/find"
	"github.com/gubarz/mdview/internal/preprocess"
	"github.com/gubarz/mdview/internal/watch"
)

// ErrWatchUnavailable is returned when auto-reload is requested but the
// file watcher could not be started in this session.
var ErrWatchUnavailable = errors.New("file watching is unavailable")

// Clearer is a cache that can be emptied wholesale.
type Clearer interface {
	Clear()
}

// WatcherFactory creates the file watcher on first use.
type WatcherFactory func(log *slog.Logger) (*watch.Watcher, error)

// Workspace is safe for concurrent use. Documents handed out are
// snapshots: a reload publishes a new *Document instead of mutating the
// old one.
type Workspace struct {
	log *slog.Logger

	mu     sync.Mutex
	opts   preprocess.Options
	theme  string
	docs   []*document.Document
	active int
	nextID int

	search        find.State
	caches        []Clearer
	autoReload    bool
	newWatcher    WatcherFactory
	watcher       *watch.Watcher
	watchDisabled bool
	pending       *watch.Reconciler
}

// New creates a workspace holding only the welcome document.
func New(opts preprocess.Options, log *slog.Logger) *Workspace {
	w := &Workspace{
		log:        log.With("component", "workspace"),
		opts:       opts,
		newWatcher: watch.NewWatcher,
		pending:    watch.NewReconciler(),
	}
	w.docs = []*document.Document{document.Welcome(w.allocID(), opts)}
	return w
}

// WithWatcherFactory replaces how the file watcher is created.
func (w *Workspace) WithWatcherFactory(f WatcherFactory) *Workspace {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.newWatcher = f
	return w
}

// AttachCaches registers caches cleared by ClearRenderCaches.
func (w *Workspace) AttachCaches(caches ...Clearer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.caches = append(w.caches, caches...)
}

func (w *Workspace) allocID() int {
	id := w.nextID
	w.nextID++
	return id
}

// ============================================================================
// Documents
// ============================================================================

// Open opens path and makes it active. A path that is already open is
// reloaded and activated instead. The welcome page is replaced by the first
// real document.
func (w *Workspace) Open(path string) (*document.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path = document.NormalizePath(path)
	if idx := w.indexByPath(path); idx >= 0 {
		w.active = idx
		w.search.Invalidate()
		if err := w.reloadAt(idx); err != nil {
			return w.docs[idx], err
		}
		return w.docs[idx], nil
	}

	doc, err := document.Open(w.allocID(), path, w.opts)
	if err != nil {
		return nil, err
	}
	w.log.Info("opened document", "path", doc.Path, "id", doc.ID)

	if len(w.docs) == 1 && w.docs[0].Path == "" {
		w.docs = w.docs[:0]
	}
	w.docs = append(w.docs, doc)
	w.active = len(w.docs) - 1
	w.search.Invalidate()
	w.syncWatchLocked()
	return doc, nil
}

// Close closes the document with id. Closing the last document brings the
// welcome page back.
func (w *Workspace) Close(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := w.indexByID(id)
	if idx < 0 {
		return false
	}
	w.docs = slices.Delete(w.docs, idx, idx+1)
	if len(w.docs) == 0 {
		w.docs = append(w.docs, document.Welcome(w.allocID(), w.opts))
	}
	if w.active > idx || w.active >= len(w.docs) {
		w.active--
	}
	w.search.Invalidate()
	w.syncWatchLocked()
	return true
}

// Documents returns the open documents in tab order.
func (w *Workspace) Documents() []*document.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.docs)
}

// Get returns the document with id.
func (w *Workspace) Get(id int) (*document.Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if idx := w.indexByID(id); idx >= 0 {
		return w.docs[idx], true
	}
	return nil, false
}

// Active returns the active document.
func (w *Workspace) Active() *document.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.docs[w.active]
}

// Activate makes the document with id active.
func (w *Workspace) Activate(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.indexByID(id)
	if idx < 0 {
		return false
	}
	w.active = idx
	return true
}

// Cycle moves the active tab by delta, wrapping around.
func (w *Workspace) Cycle(delta int) *document.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.docs)
	w.active = ((w.active+delta)%n + n) % n
	return w.docs[w.active]
}

// ReloadActive re-reads the active document. On error its previous content
// stays visible.
func (w *Workspace) ReloadActive() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloadAt(w.active)
}

func (w *Workspace) reloadAt(idx int) error {
	next := *w.docs[idx]
	if err := next.Reload(w.opts); err != nil {
		return err
	}
	w.docs[idx] = &next
	if idx == w.active {
		w.search.Invalidate()
	}
	return nil
}

func (w *Workspace) indexByID(id int) int {
	return slices.IndexFunc(w.docs, func(d *document.Document) bool { return d.ID == id })
}

func (w *Workspace) indexByPath(path string) int {
	if path == "" {
		return -1
	}
	return slices.IndexFunc(w.docs, func(d *document.Document) bool { return d.Path == path })
}

// ============================================================================
// Settings
// ============================================================================

// Options returns the current preprocessing options.
func (w *Workspace) Options() preprocess.Options {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opts
}

// SetOptions stores opts and rebuilds every document with them.
func (w *Workspace) SetOptions(opts preprocess.Options) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opts = opts
	for i, doc := range w.docs {
		next := *doc
		next.Rebuild(opts)
		w.docs[i] = &next
	}
	w.search.Invalidate()
}

// Theme returns the current theme name.
func (w *Workspace) Theme() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.theme
}

// SetTheme records the theme and, when it changed, clears the render
// caches since rendered math embeds the text color.
func (w *Workspace) SetTheme(theme string) {
	w.mu.Lock()
	changed := w.theme != theme
	w.theme = theme
	w.mu.Unlock()

	if changed {
		w.ClearRenderCaches()
	}
}

// ClearRenderCaches empties every attached cache.
func (w *Workspace) ClearRenderCaches() {
	w.mu.Lock()
	caches := slices.Clone(w.caches)
	w.mu.Unlock()

	for _, c := range caches {
		c.Clear()
	}
}

// ============================================================================
// Find
// ============================================================================

// Find searches the active document's raw text.
func (w *Workspace) Find(query string, caseSensitive bool) []find.Match {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc := w.docs[w.active]
	w.search.Update(doc.ID, doc.Raw, query, caseSensitive)
	return w.search.Matches()
}

// FindNext selects the next match of the last search.
func (w *Workspace) FindNext() (find.Match, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refreshSearchLocked()
	return w.search.Next()
}

// FindPrev selects the previous match of the last search.
func (w *Workspace) FindPrev() (find.Match, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refreshSearchLocked()
	return w.search.Prev()
}

// FindSelected returns the selected match and its position.
func (w *Workspace) FindSelected() (find.Match, int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, _ := w.search.Selected()
	return m, w.search.Index(), len(w.search.Matches())
}

// refreshSearchLocked repeats the last query if the active document
// changed since it ran.
func (w *Workspace) refreshSearchLocked() {
	doc := w.docs[w.active]
	w.search.Update(doc.ID, doc.Raw, w.search.Query(), w.search.CaseSensitive())
}

// ============================================================================
// Auto-reload
// ============================================================================

// AutoReload reports whether changed files are reloaded automatically.
func (w *Workspace) AutoReload() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.autoReload
}

// SetAutoReload toggles watching. Turning it off drops pending reloads and
// unwatches everything.
func (w *Workspace) SetAutoReload(on bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if on && w.watcher == nil {
		if w.watchDisabled {
			return ErrWatchUnavailable
		}
		watcher, err := w.newWatcher(w.log)
		if err != nil {
			w.watchDisabled = true
			w.log.Error("file watcher disabled", "error", err)
			return fmt.Errorf("%w: %w", ErrWatchUnavailable, err)
		}
		w.watcher = watcher
	}
	w.autoReload = on
	w.syncWatchLocked()
	return nil
}

// WatchEvents delivers changed paths while a watcher exists. It returns
// nil before auto-reload was first enabled.
func (w *Workspace) WatchEvents() <-chan string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Events()
}

// WatchedDirs returns the directories currently watched.
func (w *Workspace) WatchedDirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Dirs()
}

// HandleEvent records a change of path if it belongs to an open document.
func (w *Workspace) HandleEvent(path string, at time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.autoReload {
		return false
	}

	normalized := document.NormalizePath(path)
	matched := false
	for _, doc := range w.docs {
		if doc.Path != "" && (doc.Path == path || doc.Path == normalized) {
			w.pending.Touch(doc.Path, at)
			matched = true
		}
	}
	return matched
}

// PendingReloads returns how many paths wait for their debounce window.
func (w *Workspace) PendingReloads() int {
	return w.pending.Len()
}

// ProcessPending silently reloads every document whose file settled and
// returns their ids. Read errors are logged and keep the old content.
func (w *Workspace) ProcessPending(now time.Time) []int {
	due := w.pending.Due(now)
	if len(due) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var reloaded []int
	for _, path := range due {
		idx := w.indexByPath(path)
		if idx < 0 {
			continue
		}
		if err := w.reloadAt(idx); err != nil {
			w.log.Warn("auto-reload failed", "path", path, "error", err)
			continue
		}
		w.log.Debug("reloaded document", "path", path)
		reloaded = append(reloaded, w.docs[idx].ID)
	}
	return reloaded
}

// Shutdown stops the watcher.
func (w *Workspace) Shutdown() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}

// syncWatchLocked derives the watched set from the open documents.
func (w *Workspace) syncWatchLocked() {
	if w.watcher == nil {
		return
	}
	var files []string
	if w.autoReload {
		for _, doc := range w.docs {
			if doc.Path != "" {
				files = append(files, doc.Path)
			}
		}
	} else {
		w.pending.Reset()
	}
	// Errors are logged by the watcher; documents in unreadable
	// directories simply do not auto-reload.
	_ = w.watcher.SetFiles(files)
}
