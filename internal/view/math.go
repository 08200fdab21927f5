package view

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/gubarz/mdview/internal/rendercache"
)

// KindMath is the node kind of TeX snippets.
var KindMath = ast.NewNodeKind("Math")

// Math is an inline ($...$) or display ($$...$$) TeX snippet.
type Math struct {
	ast.BaseInline
	TeX     string
	Display bool

	state *rendercache.State
}

// Kind implements ast.Node.
func (n *Math) Kind() ast.NodeKind { return KindMath }

// Dump implements ast.Node.
func (n *Math) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"TeX": n.TeX}, nil)
}

func newMath(tex []byte, display bool) *Math {
	return &Math{TeX: string(bytes.TrimSpace(tex)), Display: display}
}

var doubleDollar = []byte("$$")

type mathParser struct{}

func (mathParser) Trigger() []byte { return []byte{'$'} }

func (p mathParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) > 1 && line[1] == '$' {
		return p.parseDisplay(block, line)
	}
	return p.parseInline(block, line)
}

// parseInline accepts $tex$ when the opening dollar is not followed by
// whitespace, the closing one is not preceded by whitespace and not
// followed by a digit. "$5 and $10" stays text.
func (mathParser) parseInline(block text.Reader, line []byte) ast.Node {
	if len(line) < 3 || isBlank(line[1]) {
		return nil
	}
	for i := 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '\n':
			return nil
		case '$':
			if isBlank(line[i-1]) {
				continue
			}
			if i+1 < len(line) && line[i+1] >= '0' && line[i+1] <= '9' {
				continue
			}
			block.Advance(i + 1)
			return newMath(line[1:i], false)
		}
	}
	return nil
}

// parseDisplay accepts $$tex$$, which may span several lines of the
// paragraph.
func (mathParser) parseDisplay(block text.Reader, line []byte) ast.Node {
	rest := line[2:]
	if i := bytes.Index(rest, doubleDollar); i >= 0 {
		if len(bytes.TrimSpace(rest[:i])) == 0 {
			return nil
		}
		block.Advance(2 + i + 2)
		return newMath(rest[:i], true)
	}

	startLine, startPos := block.Position()
	var tex bytes.Buffer
	tex.Write(rest)
	block.AdvanceLine()
	for {
		line, _ := block.PeekLine()
		if line == nil {
			block.SetPosition(startLine, startPos)
			return nil
		}
		if i := bytes.Index(line, doubleDollar); i >= 0 {
			tex.Write(line[:i])
			if len(bytes.TrimSpace(tex.Bytes())) == 0 {
				block.SetPosition(startLine, startPos)
				return nil
			}
			block.Advance(i + 2)
			return newMath(tex.Bytes(), true)
		}
		tex.Write(line)
		block.AdvanceLine()
	}
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
