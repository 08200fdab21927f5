package rendercache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an sRGB color with straight alpha.
type Color struct {
	R, G, B, A uint8
}

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	alpha := uint8(255)
	if len(s) == 9 && s[0] == '#' {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("parse color %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, A: alpha}, nil
}

// CSS returns the color as a CSS color declaration.
func (c Color) CSS() string {
	if c.A == 255 {
		return fmt.Sprintf("color: rgb(%d, %d, %d);", c.R, c.G, c.B)
	}
	return fmt.Sprintf("color: rgba(%d, %d, %d, %.3f);", c.R, c.G, c.B, float64(c.A)/255)
}

// MathKey identifies one math render. The color is part of the key because
// it is baked into the SVG.
type MathKey struct {
	TeX    string
	Inline bool
	Color  Color
}

// DefaultTeXCommand converts TeX read from its last argument to SVG on
// stdout.
const DefaultTeXCommand = "tex2svg"

// TeXRenderer renders math by running an external converter.
type TeXRenderer struct {
	command string
	args    []string
}

// NewTeXRenderer parses command, which may carry extra arguments.
func NewTeXRenderer(command string) *TeXRenderer {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{DefaultTeXCommand}
	}
	return &TeXRenderer{command: fields[0], args: fields[1:]}
}

// Command returns the converter executable.
func (r *TeXRenderer) Command() string {
	return r.command
}

// Render runs the converter for key and colors the resulting SVG.
func (r *TeXRenderer) Render(ctx context.Context, key MathKey) ([]byte, error) {
	args := append([]string(nil), r.args...)
	if key.Inline {
		args = append(args, "--inline")
	}
	args = append(args, key.TeX)

	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", r.command, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", r.command, err)
	}

	svg := strings.TrimSpace(stdout.String())
	if svg == "" {
		return nil, errors.New(r.command + ": empty output")
	}
	return []byte(ApplyTextColor(svg, key.Color)), nil
}

// NewMathCache returns a cache backed by r.
func NewMathCache(r *TeXRenderer, opts ...Option) *Cache[MathKey] {
	return New(r.Render, append([]Option{WithName("math")}, opts...)...)
}

// ApplyTextColor sets the CSS color on the root <svg> element so glyphs
// drawn with currentColor follow the UI text color. Input without an <svg>
// tag is returned unchanged.
func ApplyTextColor(svg string, c Color) string {
	css := c.CSS()

	start := strings.Index(svg, "<svg")
	if start < 0 {
		return svg
	}
	tagLen := strings.IndexByte(svg[start:], '>')
	if tagLen < 0 {
		return svg
	}
	tagEnd := start + tagLen
	tag := svg[start:tagEnd]

	if pos := strings.Index(tag, `style="`); pos >= 0 {
		valueStart := start + pos + len(`style="`)
		valueLen := strings.IndexByte(svg[valueStart:], '"')
		if valueLen < 0 {
			return svg
		}
		valueEnd := valueStart + valueLen
		existing := strings.TrimSpace(svg[valueStart:valueEnd])

		var out strings.Builder
		out.Grow(len(svg) + len(css) + 1)
		out.WriteString(svg[:valueEnd])
		if existing != "" && !strings.HasSuffix(existing, ";") {
			out.WriteByte(';')
		}
		out.WriteString(css)
		out.WriteString(svg[valueEnd:])
		return out.String()
	}

	// Keep a self-closing slash after the new attribute.
	insertAt := tagEnd
	if strings.HasSuffix(tag, "/") {
		insertAt--
	}
	return svg[:insertAt] + ` style="` + css + `"` + svg[insertAt:]
}
