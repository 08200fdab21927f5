package rendercache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultKrokiURL renders Mermaid source posted as plain text.
const DefaultKrokiURL = "https://kroki.io/mermaid/svg"

const (
	userAgent     = "mdview"
	maxSVGBytes   = 16 << 20
	maxErrorBytes = 4 << 10
)

// DiagramKey identifies one Mermaid render.
type DiagramKey struct {
	Source string
}

// KrokiClient renders Mermaid diagrams through a Kroki server.
type KrokiClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewKrokiClient creates a client for endpoint, falling back to the public
// Kroki instance.
func NewKrokiClient(endpoint string) *KrokiClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultKrokiURL
	}
	return &KrokiClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient replaces the HTTP client (useful for testing).
func (k *KrokiClient) WithHTTPClient(c *http.Client) *KrokiClient {
	k.httpClient = c
	return k
}

// Endpoint returns the URL diagrams are posted to.
func (k *KrokiClient) Endpoint() string {
	return k.endpoint
}

// Render posts the diagram source and returns the SVG body.
func (k *KrokiClient) Render(ctx context.Context, key DiagramKey) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.endpoint, strings.NewReader(key.Source))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("User-Agent", userAgent)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post diagram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, fmt.Errorf("kroki returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSVGBytes))
	if err != nil {
		return nil, fmt.Errorf("read diagram: %w", err)
	}
	return body, nil
}

// NewDiagramCache returns a cache backed by k.
func NewDiagramCache(k *KrokiClient, opts ...Option) *Cache[DiagramKey] {
	return New(k.Render, append([]Option{WithName("mermaid")}, opts...)...)
}
