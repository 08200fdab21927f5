package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gubarz/mdview/internal/document"
	"github.com/gubarz/mdview/internal/preprocess"
	"github.com/gubarz/mdview/internal/view"
	"github.com/gubarz/mdview/internal/workspace"
)

const sample = "# Title\n\nSome text with a needle.\n\n## Second Part\n\nAnother Needle.\n"

func testServer(t *testing.T) (*Server, *document.Document) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	ws := workspace.New(preprocess.DefaultOptions(), log)
	t.Cleanup(func() { _ = ws.Shutdown() })
	doc, err := ws.Open(path)
	require.NoError(t, err)

	return NewServer(ws, view.New(view.Config{Log: log}), log), doc
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndex(t *testing.T) {
	s, doc := testServer(t)

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(`href="/doc/%d"`, doc.ID))
	assert.Contains(t, rec.Body.String(), "notes.md")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body struct {
		Documents []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Documents, 1)
	assert.Equal(t, doc.ID, body.Documents[0].ID)
	assert.Equal(t, "notes.md", body.Documents[0].Name)
}

func TestDocument(t *testing.T) {
	s, doc := testServer(t)

	rec := get(t, s, fmt.Sprintf("/doc/%d", doc.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `<h1 id="title">Title</h1>`)
	assert.Contains(t, body, `<h2 id="second-part">Second Part</h2>`)
	assert.Contains(t, body, `new EventSource("/events")`)
	assert.Contains(t, body, "<title>notes.md</title>")
}

func TestDocument_BadIDs(t *testing.T) {
	s, _ := testServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "not a number", path: "/doc/abc", want: http.StatusBadRequest},
		{name: "unknown", path: "/doc/999", want: http.StatusNotFound},
		{name: "unknown outline", path: "/doc/999/outline", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.path)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestOutline(t *testing.T) {
	s, doc := testServer(t)

	rec := get(t, s, fmt.Sprintf("/doc/%d/outline", doc.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Outline []struct {
			Level int    `json:"level"`
			Title string `json:"title"`
			Slug  string `json:"slug"`
			Line  int    `json:"line"`
		} `json:"outline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Outline, 2)
	assert.Equal(t, "title", body.Outline[0].Slug)
	assert.Equal(t, 2, body.Outline[1].Level)
	assert.Equal(t, "second-part", body.Outline[1].Slug)
	assert.Equal(t, 4, body.Outline[1].Line)
}

func TestFind(t *testing.T) {
	s, doc := testServer(t)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "insensitive", query: "q=needle", want: 2},
		{name: "sensitive", query: "q=Needle&case=true", want: 1},
		{name: "empty", query: "q=", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, fmt.Sprintf("/doc/%d/find?%s", doc.ID, tt.query))
			require.Equal(t, http.StatusOK, rec.Code)

			var body struct {
				Matches []struct {
					Line int `json:"line"`
				} `json:"matches"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if len(body.Matches) != tt.want {
				t.Errorf("expected %d matches, got %d", tt.want, len(body.Matches))
			}
		})
	}
}

func TestHeading(t *testing.T) {
	s, doc := testServer(t)

	rec := get(t, s, fmt.Sprintf("/doc/%d/heading/second-part", doc.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"line":4}`, rec.Body.String())

	rec = get(t, s, fmt.Sprintf("/doc/%d/heading/nowhere", doc.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "nowhere")
}

func TestEvents(t *testing.T) {
	s, _ := testServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	_, err = r.ReadString('\n')
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.events.len() == 1 }, time.Second, 10*time.Millisecond)
	s.Broadcast(EventReload)

	var got []string
	for range 2 {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		got = append(got, strings.TrimSpace(line))
	}
	assert.Equal(t, []string{"event: reload", "data: reload"}, got)
}

func TestBroker_DropsWhenFull(t *testing.T) {
	b := newBroker()
	ch := b.subscribe()
	for range 20 {
		b.publish(EventRender)
	}
	assert.Len(t, ch, cap(ch))

	b.unsubscribe(ch)
	assert.Zero(t, b.len())
}
