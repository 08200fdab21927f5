// Package preprocess rewrites raw Markdown into the enriched dialect consumed
// by the viewers: normalized fence languages, Mermaid block markers,
// linkified references, autolinked URLs, emoji and optional smart
// typography.
package preprocess

import (
	"strings"

	"github.com/gubarz/mdview/internal/codelang"
)

// Options toggles the individual rewrites.
type Options struct {
	RenderMath         bool // consumed by the viewers, not by Process
	RenderMermaid      bool
	AutoDetectCodeLang bool
	AutolinkURLs       bool
	GitHubLinks        bool
	ReplaceEmoji       bool
	SmartTypography    bool

	// RepoURL is the https base URL of the document's GitHub repository,
	// e.g. https://github.com/owner/repo. Empty when unknown.
	RepoURL string
}

// DefaultOptions returns the settings a fresh install starts with.
func DefaultOptions() Options {
	return Options{
		RenderMath:         true,
		RenderMermaid:      true,
		AutoDetectCodeLang: true,
		AutolinkURLs:       true,
		GitHubLinks:        true,
		ReplaceEmoji:       true,
		SmartTypography:    false,
	}
}

type lineState int

const (
	outsideFence lineState = iota
	insideFence
)

// fenceState is the code block currently being collected.
type fenceState struct {
	indent    string
	marker    byte
	markerLen int
	info      string
	content   strings.Builder
}

func (f *fenceState) fence() string {
	return strings.Repeat(string(f.marker), f.markerLen)
}

// processor is the line-level state machine. Fenced content is buffered
// until the block closes; every other line goes through the inline
// pipeline.
type processor struct {
	opts  Options
	state lineState
	fence *fenceState
	out   strings.Builder
}

// Process runs the whole pipeline over raw. raw is expected to use LF line
// endings. Line terminators are preserved.
func Process(raw string, opts Options) string {
	p := &processor{opts: opts}
	p.out.Grow(len(raw) + 256)

	for _, chunk := range strings.SplitAfter(raw, "\n") {
		if chunk == "" {
			continue
		}
		p.feed(chunk)
	}
	p.finish()

	return p.out.String()
}

func (p *processor) feed(chunk string) {
	switch p.state {
	case insideFence:
		if isClosingFence(chunk, p.fence) {
			p.flush(chunk)
			p.fence = nil
			p.state = outsideFence
			return
		}
		p.fence.content.WriteString(chunk)

	case outsideFence:
		if f, ok := parseOpeningFence(chunk); ok {
			p.fence = f
			p.state = insideFence
			return
		}
		line, ending := splitEnding(chunk)
		p.out.WriteString(transformInline(line, p.opts))
		p.out.WriteString(ending)
	}
}

// finish closes a fence left open at end of input so its content survives.
func (p *processor) finish() {
	if p.state != insideFence {
		return
	}
	f := p.fence
	content := f.content.String()

	p.out.WriteString(f.indent)
	p.out.WriteString(f.fence())
	p.out.WriteString(f.info)
	p.out.WriteByte('\n')
	p.out.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		p.out.WriteByte('\n')
	}
	p.out.WriteString(f.indent)
	p.out.WriteString(f.fence())
	p.out.WriteByte('\n')

	p.fence = nil
	p.state = outsideFence
}

func (p *processor) flush(closingLine string) {
	f := p.fence
	content := f.content.String()

	lang := ""
	if fields := strings.Fields(f.info); len(fields) > 0 {
		lang = fields[0]
	}

	if p.opts.RenderMermaid && strings.EqualFold(lang, "mermaid") {
		p.out.WriteString(f.indent)
		p.out.WriteString("<div class=\"mermaid\">\n")
		p.out.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			p.out.WriteByte('\n')
		}
		p.out.WriteString(f.indent)
		p.out.WriteString("</div>\n")
		return
	}

	if normalized, ok := codelang.Normalize(lang); ok {
		lang = normalized
	}
	if lang == "" && p.opts.AutoDetectCodeLang {
		if guess, ok := codelang.Guess(content); ok {
			lang = guess
		}
	}

	p.out.WriteString(f.indent)
	p.out.WriteString(f.fence())
	p.out.WriteString(lang)
	p.out.WriteByte('\n')
	p.out.WriteString(content)
	p.out.WriteString(closingLine)
}

func parseOpeningFence(chunk string) (*fenceState, bool) {
	line, _ := splitEnding(chunk)
	rest := strings.TrimLeft(line, " \t")
	if rest == "" || (rest[0] != '`' && rest[0] != '~') {
		return nil, false
	}
	marker := rest[0]
	n := runLength(rest, marker)
	if n < 3 {
		return nil, false
	}
	return &fenceState{
		indent:    line[:len(line)-len(rest)],
		marker:    marker,
		markerLen: n,
		info:      strings.TrimSpace(rest[n:]),
	}, true
}

func isClosingFence(chunk string, f *fenceState) bool {
	line, _ := splitEnding(chunk)
	rest := strings.TrimLeft(line, " \t")
	return runLength(rest, f.marker) >= f.markerLen
}

func splitEnding(chunk string) (line, ending string) {
	if strings.HasSuffix(chunk, "\n") {
		return chunk[:len(chunk)-1], "\n"
	}
	return chunk, ""
}

func runLength(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}
