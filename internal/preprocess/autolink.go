package preprocess

import (
	"slices"
	"strings"

	"mvdan.cc/xurls/v2"
)

var urlRe = xurls.Relaxed()

// autolinkURLs wraps bare URLs in angle brackets. Scheme-less matches are
// only linked when they start with www., since bare file names such as
// main.rs look like hosts too. E-mail addresses are left alone.
func autolinkURLs(text string) string {
	locs := urlRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text) + len(locs)*10)
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		out.WriteString(text[last:start])
		last = end

		url := text[start:end]
		target, ok := autolinkTarget(url)
		if !ok {
			out.WriteString(url)
			continue
		}
		if start > 0 && text[start-1] == '<' && end < len(text) && text[end] == '>' {
			out.WriteString(url)
			continue
		}
		out.WriteByte('<')
		out.WriteString(target)
		out.WriteByte('>')
	}
	out.WriteString(text[last:])
	return out.String()
}

// autolinkTarget returns the URL to put inside <...>, or false when the
// match should stay plain text.
func autolinkTarget(url string) (string, bool) {
	if strings.Contains(url, "://") {
		return url, true
	}
	lower := strings.ToLower(url)
	if scheme, _, found := strings.Cut(lower, ":"); found && slices.Contains(xurls.SchemesNoAuthority, scheme) {
		return url, true
	}
	if strings.HasPrefix(lower, "www.") && !strings.Contains(url, "@") {
		return "https://" + url, true
	}
	return "", false
}
