package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gubarz/mdview/internal/document"
	"github.com/gubarz/mdview/internal/find"
	"github.com/gubarz/mdview/internal/outline"
	"github.com/gubarz/mdview/internal/view"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { max-width: 52rem; margin: 2rem auto; padding: 0 1rem; font-family: sans-serif; line-height: 1.5; }
pre { padding: .75rem; overflow-x: auto; }
.math-display, .mermaid { text-align: center; margin: 1rem 0; }
.pending { opacity: .6; font-style: italic; }
.error { color: #c0392b; }
nav a { margin-right: 1rem; }
</style>
</head>
<body>
<nav>{{range .Docs}}<a href="/doc/{{.ID}}">{{.Name}}</a>{{end}}</nav>
{{.Body}}
<script>
(function () {
  var es = new EventSource("/events");
  es.addEventListener("reload", function () { location.reload(); });
  es.addEventListener("render", function () { location.reload(); });
})();
</script>
</body>
</html>
`))

type pageData struct {
	Title string
	Docs  []*document.Document
	Body  template.HTML
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleIndex lists the open documents.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	docs := s.ws.Documents()
	if r.Header.Get("Accept") == "application/json" {
		type entry struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
			Path string `json:"path"`
		}
		out := make([]entry, 0, len(docs))
		for _, d := range docs {
			out = append(out, entry{ID: d.ID, Name: d.Name(), Path: d.Path})
		}
		writeJSON(w, map[string]any{"documents": out})
		return
	}

	var body []byte
	body = append(body, "<ul>\n"...)
	for _, d := range docs {
		body = append(body, fmt.Sprintf("<li><a href=\"/doc/%d\">%s</a></li>\n", d.ID, template.HTMLEscapeString(d.Name()))...)
	}
	body = append(body, "</ul>\n"...)
	s.writePage(w, "mdview", docs, template.HTML(body))
}

// handleDocument renders one document to HTML. Snippets still rendering
// show placeholders; the page reloads on the next render event.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	res, err := s.renderer.Render(doc.Transformed, view.WithHeadings(doc.Outline))
	if err != nil {
		s.log.Error("render document", "doc", doc.Name(), "error", err)
		http.Error(w, "render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.ws.Activate(doc.ID)
	s.writePage(w, doc.Name(), s.ws.Documents(), template.HTML(res.HTML))
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	items := doc.Outline
	if items == nil {
		items = []outline.Item{}
	}
	writeJSON(w, map[string]any{"outline": items})
}

// handleFind searches the raw text. ?case=1 makes it case-sensitive.
func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	caseSensitive, _ := strconv.ParseBool(r.URL.Query().Get("case"))

	matches := find.Find(doc.Raw, q, caseSensitive)
	if matches == nil {
		matches = []find.Match{}
	}
	writeJSON(w, map[string]any{
		"query":     q,
		"matches":   matches,
		"truncated": len(matches) >= find.MaxMatches,
	})
}

func (s *Server) handleHeading(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	fragment := chi.URLParam(r, "fragment")
	line, found := doc.LineForFragment(fragment)
	if !found {
		jsonError(w, "no heading matches "+strconv.Quote(fragment), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"line": line})
}

// handleEvents streams server-sent events until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.events.subscribe()
	defer s.events.unsubscribe(ch)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, event)
			flusher.Flush()
		}
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*document.Document, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "docID"))
	if err != nil {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return nil, false
	}
	doc, ok := s.ws.Get(id)
	if !ok {
		jsonError(w, fmt.Sprintf("document %d not found", id), http.StatusNotFound)
		return nil, false
	}
	return doc, true
}

func (s *Server) writePage(w http.ResponseWriter, title string, docs []*document.Document, body template.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, pageData{Title: title, Docs: docs, Body: body}); err != nil {
		s.log.Warn("write page", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
