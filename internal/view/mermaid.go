package view

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"

	"github.com/gubarz/mdview/internal/rendercache"
)

// KindMermaid is the node kind of mermaid diagram blocks.
var KindMermaid = ast.NewNodeKind("Mermaid")

// Mermaid is a <div class="mermaid"> block. Unlike a plain HTML block it
// runs until </div>, so diagrams may contain blank lines.
type Mermaid struct {
	ast.BaseBlock
	Source string

	closed bool
	state  *rendercache.State
}

// Kind implements ast.Node.
func (n *Mermaid) Kind() ast.NodeKind { return KindMermaid }

// IsRaw implements ast.Node.
func (n *Mermaid) IsRaw() bool { return true }

// Dump implements ast.Node.
func (n *Mermaid) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Source": n.Source}, nil)
}

// Raw returns the block's HTML as written.
func (n *Mermaid) Raw(source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

var closeDiv = []byte("</div>")

type mermaidBlockParser struct{}

func (mermaidBlockParser) Trigger() []byte { return []byte{'<'} }

func (mermaidBlockParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	end, ok := mermaidOpenTag(string(line))
	if !ok {
		return nil, parser.NoChildren
	}
	node := &Mermaid{}
	node.Lines().Append(segment)
	node.closed = bytes.Contains(line[end:], closeDiv)
	reader.Advance(segment.Len() - 1)
	return node, parser.NoChildren
}

func (mermaidBlockParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	n := node.(*Mermaid)
	if n.closed {
		return parser.Close
	}
	line, segment := reader.PeekLine()
	if line == nil {
		return parser.Close
	}
	n.Lines().Append(segment)
	reader.Advance(segment.Len() - 1)
	if bytes.Contains(line, closeDiv) {
		n.closed = true
	}
	return parser.Continue | parser.NoChildren
}

func (mermaidBlockParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {
	n := node.(*Mermaid)
	n.Source, _ = ExtractMermaid(n.Raw(reader.Source()))
}

func (mermaidBlockParser) CanInterruptParagraph() bool { return true }

func (mermaidBlockParser) CanAcceptIndentedLine() bool { return false }

// ExtractMermaid returns the diagram source of a <div class="mermaid">
// element: the text up to the last </div>, trimmed and dedented.
func ExtractMermaid(s string) (string, bool) {
	end, ok := mermaidOpenTag(s)
	if !ok {
		return "", false
	}
	inner := s[end:]
	if i := strings.LastIndex(inner, "</div>"); i >= 0 {
		inner = inner[:i]
	}
	inner = strings.Trim(inner, "\r\n")
	return strings.TrimSpace(dedent(inner)), true
}

// mermaidOpenTag reports whether s starts with a div whose class list
// contains "mermaid", and returns the offset just past that tag.
func mermaidOpenTag(s string) (int, bool) {
	z := html.NewTokenizer(strings.NewReader(s))
	offset := 0
	for {
		tt := z.Next()
		raw := len(z.Raw())
		offset += raw
		switch tt {
		case html.TextToken:
			if strings.TrimSpace(string(z.Text())) != "" {
				return 0, false
			}
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "div" {
				return 0, false
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "class" && hasClass(string(val), "mermaid") {
					return offset, true
				}
			}
			return 0, false
		default:
			return 0, false
		}
	}
}

func hasClass(list, class string) bool {
	for _, c := range strings.Fields(list) {
		if c == class {
			return true
		}
	}
	return false
}

// dedent removes the leading whitespace common to every non-blank line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common <= 0 {
		return s
	}
	for i, line := range lines {
		if len(line) >= common {
			lines[i] = line[common:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
