package rendercache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKrokiClient_Render(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/plain; charset=utf-8", r.Header.Get("Content-Type"))
		assert.Equal(t, "mdview", r.Header.Get("User-Agent"))
		body, _ := io.ReadAll(r.Body)
		if string(body) == "graph TD\nA-->B" {
			w.Write([]byte("<svg>ok</svg>"))
			return
		}
		http.Error(w, "  syntax error  ", http.StatusBadRequest)
	}))
	defer srv.Close()

	k := NewKrokiClient(srv.URL).WithHTTPClient(srv.Client())
	assert.Equal(t, srv.URL, k.Endpoint())

	svg, err := k.Render(context.Background(), DiagramKey{Source: "graph TD\nA-->B"})
	require.NoError(t, err)
	assert.Equal(t, "<svg>ok</svg>", string(svg))

	_, err = k.Render(context.Background(), DiagramKey{Source: "nope"})
	require.Error(t, err)
	assert.Equal(t, "kroki returned 400 Bad Request: syntax error", err.Error())
}

func TestNewKrokiClient_DefaultEndpoint(t *testing.T) {
	assert.Equal(t, DefaultKrokiURL, NewKrokiClient("").Endpoint())
}

func TestDiagramCache_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<svg/>"))
	}))
	defer srv.Close()

	notified := make(chan struct{}, 8)
	c := NewDiagramCache(NewKrokiClient(srv.URL), WithNotify(func() { notified <- struct{}{} }))
	c.Start(context.Background())
	defer c.Close()

	key := DiagramKey{Source: "graph LR"}
	assert.Equal(t, Pending, c.Request(key).Status)

	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
	}
	st := c.Request(key)
	assert.Equal(t, Ready, st.Status)
	assert.Equal(t, "<svg/>", string(st.Data))
}
