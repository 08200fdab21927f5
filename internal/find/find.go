// Package find implements plain substring search over document text.
package find

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	// MaxMatches bounds the work done for very frequent queries. Results
	// are always a prefix of the full match list.
	MaxMatches = 500

	previewWidth = 180
	ellipsis     = "…"
)

// Match is one occurrence of the query.
type Match struct {
	Line    int    `json:"line"`   // zero-based
	Column  int    `json:"column"` // byte offset in the compared line
	Preview string `json:"preview"`
}

// Find returns non-overlapping matches of query in text, in document order.
// Without caseSensitive, each line and the query are lowercased before
// comparing, so columns refer to the lowercased line.
func Find(text, query string, caseSensitive bool) []Match {
	if query == "" {
		return nil
	}
	needle := query
	if !caseSensitive {
		needle = strings.ToLower(query)
	}
	step := max(len(needle), 1)

	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	var matches []Match
	for lineNo, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		hay := line
		if !caseSensitive {
			hay = strings.ToLower(line)
		}

		preview := ""
		for start := 0; start <= len(hay); {
			rel := strings.Index(hay[start:], needle)
			if rel < 0 {
				break
			}
			col := start + rel
			if preview == "" {
				preview = makePreview(line)
			}
			matches = append(matches, Match{Line: lineNo, Column: col, Preview: preview})
			if len(matches) >= MaxMatches {
				return matches
			}
			start = col + step
		}
	}
	return matches
}

func makePreview(line string) string {
	preview := strings.TrimSpace(line)
	if runewidth.StringWidth(preview) <= previewWidth {
		return preview
	}
	return runewidth.Truncate(preview, previewWidth, "") + ellipsis
}
