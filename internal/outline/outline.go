// Package outline builds the heading table of contents of a Markdown
// document and resolves URL fragments back to heading lines.
package outline

import (
	"strings"
)

// fallbackSlug is used for headings whose title slugifies to nothing.
const fallbackSlug = "section"

// Item is a single heading in a document outline.
type Item struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Line  int    `json:"line"` // zero-based
}

// Build scans markdown line by line for ATX and Setext headings.
//
// The scan does not track code fences, so heading-like lines inside fenced
// blocks are listed too.
func Build(markdown string) []Item {
	lines := strings.Split(markdown, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var items []Item
	used := make(map[string]struct{})
	add := func(level int, title string, line int) {
		items = append(items, Item{
			Level: level,
			Title: title,
			Slug:  SlugFor(title, used),
			Line:  line,
		})
	}

	for idx, line := range lines {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimLeft(line, " \t")

		if hashes := countPrefix(trimmed, '#'); hashes >= 1 && hashes <= 6 {
			rest := trimmed[hashes:]
			if rest != "" && (rest[0] == ' ' || rest[0] == '\t') {
				title := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
				if title != "" {
					add(hashes, title, idx)
				}
			}
			continue
		}

		if idx == 0 {
			continue
		}
		underline := strings.TrimSpace(trimmed)
		level := 0
		switch {
		case underline == "":
		case strings.Trim(underline, "=") == "":
			level = 1
		case strings.Trim(underline, "-") == "":
			level = 2
		}
		if level == 0 {
			continue
		}
		if prev := strings.TrimSpace(lines[idx-1]); prev != "" {
			add(level, prev, idx-1)
		}
	}

	return items
}

// LineForFragment resolves a URL fragment to the line of the heading it
// names. An empty fragment addresses the top of the document.
func LineForFragment(items []Item, fragment string) (int, bool) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return 0, true
	}

	decoded := strings.TrimSpace(PercentDecode(fragment))
	if decoded == "" {
		return 0, true
	}
	// GitHub prefixes rendered heading ids with user-content-.
	decoded = strings.TrimSpace(strings.TrimPrefix(decoded, "user-content-"))
	if decoded == "" {
		return 0, true
	}

	lower := strings.ToLower(decoded)
	for _, item := range items {
		if item.Slug == lower {
			return item.Line, true
		}
	}

	slug := Slugify(decoded)
	if slug == "" {
		return 0, false
	}
	for _, item := range items {
		if item.Slug == slug {
			return item.Line, true
		}
	}
	return 0, false
}

func countPrefix(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}
