// Package view renders preprocessed Markdown to HTML. Math and mermaid
// snippets are looked up in the render caches; whatever is not ready yet is
// shown as a placeholder and filled in by a later render.
package view

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	goldhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/gubarz/mdview/internal/outline"
	"github.com/gubarz/mdview/internal/rendercache"
)

// Config selects what the renderer does. Nil caches show math and
// diagrams as source.
type Config struct {
	Math          *rendercache.Cache[rendercache.MathKey]
	Diagrams      *rendercache.Cache[rendercache.DiagramKey]
	TextColor     rendercache.Color
	RenderMath    bool
	RenderMermaid bool
	Theme         string
	Log           *slog.Logger
}

// Result is one rendered document.
type Result struct {
	HTML    string
	Pending int
	Failed  int
}

// Settled reports whether no snippet is still rendering.
func (r Result) Settled() bool { return r.Pending == 0 }

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	cfg Config
	log *slog.Logger
	md  goldmark.Markdown
}

// New builds a renderer for cfg.
func New(cfg Config) *Renderer {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	r := &Renderer{cfg: cfg, log: log.With("component", "view")}
	r.md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(CodeStyle(cfg.Theme)),
				highlighting.WithFormatOptions(
					chromahtml.TabWidth(4),
				),
			),
			&snippets{math: cfg.RenderMath, mermaid: cfg.RenderMermaid},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			goldhtml.WithUnsafe(),
		),
	)
	return r
}

// CodeStyle maps a theme to a chroma style. Names of chroma styles are
// accepted as themes too.
func CodeStyle(theme string) string {
	switch theme {
	case "", "dark":
		return "monokai"
	case "light":
		return "github"
	}
	if _, ok := styles.Registry[theme]; ok {
		return theme
	}
	return "monokai"
}

// Render converts source once, queueing renders for every snippet not yet
// in the caches.
func (r *Renderer) Render(source string, opts ...RenderOption) (Result, error) {
	var ro renderOptions
	for _, opt := range opts {
		opt(&ro)
	}

	src := []byte(source)
	pc := parser.NewContext(parser.WithIDs(newHeadingIDs()))
	doc := r.md.Parser().Parse(text.NewReader(src), parser.WithContext(pc))

	var res Result
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			if slug, ok := ro.slugFor(n, src); ok {
				n.SetAttributeString("id", []byte(slug))
			}
		case *Math:
			n.state = r.requestMath(n)
			res.count(n.state)
		case *Mermaid:
			n.state = r.requestDiagram(n)
			res.count(n.state)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return res, fmt.Errorf("resolve snippets: %w", err)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return res, fmt.Errorf("render html: %w", err)
	}
	res.HTML = buf.String()
	return res, nil
}

// RenderSettled renders source again after every signal on changed until
// no snippet is pending. When ctx ends first, the last result is returned
// with ctx's error.
func (r *Renderer) RenderSettled(ctx context.Context, source string, changed <-chan struct{}, opts ...RenderOption) (Result, error) {
	for {
		res, err := r.Render(source, opts...)
		if err != nil || res.Settled() {
			return res, err
		}
		r.log.Debug("waiting for snippets", "pending", res.Pending)
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-changed:
		}
	}
}

func (res *Result) count(st *rendercache.State) {
	if st == nil {
		return
	}
	switch st.Status {
	case rendercache.Pending:
		res.Pending++
	case rendercache.Failed:
		res.Failed++
	}
}

func (r *Renderer) requestMath(n *Math) *rendercache.State {
	if r.cfg.Math == nil {
		return nil
	}
	st := r.cfg.Math.Request(rendercache.MathKey{TeX: n.TeX, Inline: !n.Display, Color: r.cfg.TextColor})
	return &st
}

func (r *Renderer) requestDiagram(n *Mermaid) *rendercache.State {
	if r.cfg.Diagrams == nil || n.Source == "" {
		return nil
	}
	st := r.cfg.Diagrams.Request(rendercache.DiagramKey{Source: n.Source})
	return &st
}

// ============================================================================
// Notifier
// ============================================================================

// Notifier coalesces cache notifications into a channel with one slot.
// Pass Notify to rendercache.WithNotify.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier creates a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify signals C without blocking.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// C receives after one or more Notify calls.
func (n *Notifier) C() <-chan struct{} {
	return n.ch
}

// ============================================================================
// Heading ids
// ============================================================================

// RenderOption adjusts a single Render call.
type RenderOption func(*renderOptions)

type renderOptions struct {
	slugs map[int]string // source line -> slug
}

// WithHeadings takes heading ids from items, matched by source line.
// Preprocessing keeps lines in place, so an outline built from the raw text
// names the anchors even when the transformed heading text differs.
func WithHeadings(items []outline.Item) RenderOption {
	return func(o *renderOptions) {
		o.slugs = make(map[int]string, len(items))
		for _, item := range items {
			o.slugs[item.Line] = item.Slug
		}
	}
}

// slugFor looks up the outline slug of a heading. Setext headings are
// keyed by their last text line, the one above the underline.
func (o *renderOptions) slugFor(n *ast.Heading, src []byte) (string, bool) {
	lines := n.Lines()
	if o.slugs == nil || lines.Len() == 0 {
		return "", false
	}
	seg := lines.At(lines.Len() - 1)
	slug, ok := o.slugs[bytes.Count(src[:seg.Start], []byte{'\n'})]
	return slug, ok
}

// headingIDs slugs headings the way the outline does. Without WithHeadings
// it sees the transformed text, so titles changed by preprocessing may get
// a different id.
type headingIDs struct {
	used map[string]struct{}
}

func newHeadingIDs() *headingIDs {
	return &headingIDs{used: make(map[string]struct{})}
}

func (h *headingIDs) Generate(value []byte, kind ast.NodeKind) []byte {
	return []byte(outline.SlugFor(string(value), h.used))
}

func (h *headingIDs) Put(value []byte) {
	h.used[string(value)] = struct{}{}
}

// ============================================================================
// Extension
// ============================================================================

type snippets struct {
	math    bool
	mermaid bool
}

func (e *snippets) Extend(m goldmark.Markdown) {
	if e.math {
		m.Parser().AddOptions(parser.WithInlineParsers(
			util.Prioritized(mathParser{}, 500),
		))
	}
	if e.mermaid {
		m.Parser().AddOptions(parser.WithBlockParsers(
			util.Prioritized(mermaidBlockParser{}, 850),
		))
	}
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(snippetRenderer{}, 100),
	))
}

type snippetRenderer struct{}

func (snippetRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMath, renderMath)
	reg.Register(KindMermaid, renderMermaid)
}

func renderMath(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*Math)
	tag, kind := "span", "math-inline"
	if n.Display {
		tag, kind = "div", "math-display"
	}

	switch {
	case n.state == nil:
		delim := "$"
		if n.Display {
			delim = "$$"
		}
		fmt.Fprintf(w, `<code class="math %s">%s%s%s</code>`, kind, delim, escape(n.TeX), delim)
	case n.state.Status == rendercache.Ready:
		fmt.Fprintf(w, `<%s class="math %s">%s</%s>`, tag, kind, n.state.Data, tag)
	case n.state.Status == rendercache.Failed:
		fmt.Fprintf(w, `<%s class="math %s error">Math error: %s</%s>`, tag, kind, escape(n.state.Err), tag)
	default:
		fmt.Fprintf(w, `<%s class="math %s pending">Rendering math…</%s>`, tag, kind, tag)
	}
	return ast.WalkSkipChildren, nil
}

func renderMermaid(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*Mermaid)

	switch {
	case n.state == nil:
		_, _ = w.WriteString(n.Raw(source))
	case n.state.Status == rendercache.Ready:
		fmt.Fprintf(w, "<div class=\"mermaid\">%s</div>\n", n.state.Data)
	case n.state.Status == rendercache.Failed:
		fmt.Fprintf(w, "<div class=\"mermaid error\"><p>Mermaid error: %s</p><pre><code>%s</code></pre></div>\n",
			escape(n.state.Err), escape(n.Source))
	default:
		fmt.Fprintf(w, "<div class=\"mermaid pending\"><p>Rendering Mermaid…</p><pre><code>%s</code></pre></div>\n",
			escape(n.Source))
	}
	return ast.WalkContinue, nil
}

func escape(s string) []byte {
	return util.EscapeHTML([]byte(s))
}
