package preprocess

import (
	"regexp"
	"strings"
)

// protectedRe matches text the transforms must leave alone: inline links
// and images `[text](dest)`, angle autolinks `<scheme:...>` and raw HTML
// tags with their attributes.
var protectedRe = regexp.MustCompile(`\[[^\[\]]*\]\([^()]*\)|<[A-Za-z][A-Za-z0-9+.-]{1,31}:[^<>\s]*>|<[A-Za-z/][^<>]*>`)

// transformInline rewrites one line, skipping inline code spans. A run of N
// backticks opens a span that only a later run of exactly N closes.
func transformInline(line string, opts Options) string {
	var out strings.Builder
	out.Grow(len(line))

	inCode := false
	delimLen := 0
	i := 0

	for i < len(line) {
		rel := strings.IndexByte(line[i:], '`')
		if rel < 0 {
			writeSegment(&out, line[i:], inCode, opts)
			break
		}
		start := i + rel
		writeSegment(&out, line[i:start], inCode, opts)

		n := runLength(line[start:], '`')
		out.WriteString(line[start : start+n])

		switch {
		case !inCode:
			inCode = true
			delimLen = n
		case n == delimLen:
			inCode = false
			delimLen = 0
		}
		i = start + n
	}

	return out.String()
}

func writeSegment(out *strings.Builder, text string, inCode bool, opts Options) {
	if inCode {
		out.WriteString(text)
		return
	}
	out.WriteString(applyTransforms(text, opts))
}

// applyTransforms runs the enabled rewrites in their fixed order.
func applyTransforms(text string, opts Options) string {
	if text == "" {
		return text
	}
	if opts.GitHubLinks {
		text = linkifyReferences(text, opts.RepoURL)
	}
	if opts.AutolinkURLs {
		text = outsideLinks(text, autolinkURLs)
	}
	if opts.ReplaceEmoji {
		text = outsideLinks(text, replaceEmoji)
	}
	if opts.SmartTypography {
		text = outsideLinks(text, smartTypography)
	}
	return text
}

// outsideLinks applies fn to every stretch of text that is not part of an
// existing link, so links produced by earlier passes stay intact.
func outsideLinks(text string, fn func(string) string) string {
	return outsideMatches(text, protectedRe, fn)
}

// outsideMatches applies fn to the text between matches of re and copies
// the matches through unchanged.
func outsideMatches(text string, re *regexp.Regexp, fn func(string) string) string {
	spans := re.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return fn(text)
	}

	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, span := range spans {
		if span[0] > last {
			out.WriteString(fn(text[last:span[0]]))
		}
		out.WriteString(text[span[0]:span[1]])
		last = span[1]
	}
	if last < len(text) {
		out.WriteString(fn(text[last:]))
	}
	return out.String()
}
