package preprocess

import (
	"strings"

	"github.com/yuin/goldmark-emoji/definition"
)

const maxShortcodeLen = 64

var emojiTable = definition.Github()

// replaceEmoji substitutes :shortcode: pairs with their Unicode emoji.
// Unknown names are copied through with both colons and the scan resumes
// after the closing colon. When the text between the colons cannot be a
// shortcode, the closing colon may still open the next one.
func replaceEmoji(text string) string {
	if strings.Count(text, ":") < 2 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	i := 0
	for {
		start := strings.IndexByte(text[i:], ':')
		if start < 0 {
			break
		}
		start += i
		out.WriteString(text[i:start])

		end := strings.IndexByte(text[start+1:], ':')
		if end < 0 {
			out.WriteString(text[start:])
			return out.String()
		}
		end += start + 1
		name := text[start+1 : end]

		if !validShortcode(name) {
			out.WriteString(text[start:end])
			i = end
			continue
		}
		if emoji, ok := lookupEmoji(name); ok {
			out.WriteString(emoji)
		} else {
			out.WriteString(text[start : end+1])
		}
		i = end + 1
	}
	out.WriteString(text[i:])
	return out.String()
}

func lookupEmoji(name string) (string, bool) {
	if !validShortcode(name) {
		return "", false
	}
	emoji, ok := emojiTable.Get(name)
	if !ok || len(emoji.Unicode) == 0 {
		return "", false
	}
	return string(emoji.Unicode), true
}

func validShortcode(name string) bool {
	if name == "" || len(name) > maxShortcodeLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '+', c == '-':
		default:
			return false
		}
	}
	return true
}
