package preprocess

import (
	"strings"
	"unicode"
)

// smartTypography replaces ..., -- and straight quotes with their
// typographic forms. An apostrophe between two letters or digits is always
// a closing mark and does not flip the single-quote parity.
func smartTypography(text string) string {
	if !strings.ContainsAny(text, ".-\"'") {
		return text
	}

	runes := []rune(text)
	var out strings.Builder
	out.Grow(len(text) + 16)

	var prev rune
	doubleOpen, singleOpen := true, true

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '.':
			dots := 1
			for dots < 3 && i+1 < len(runes) && runes[i+1] == '.' {
				dots++
				i++
			}
			if dots == 3 {
				out.WriteRune('…')
				prev = '…'
				continue
			}
			out.WriteString(strings.Repeat(".", dots))
			prev = '.'
		case '-':
			if i+1 < len(runes) && runes[i+1] == '-' {
				i++
				out.WriteRune('—')
				prev = '—'
				continue
			}
			out.WriteRune('-')
			prev = '-'
		case '"':
			if doubleOpen {
				out.WriteRune('“')
			} else {
				out.WriteRune('”')
			}
			doubleOpen = !doubleOpen
			prev = '"'
		case '\'':
			var next rune
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if isWordRune(prev) && isWordRune(next) {
				out.WriteRune('’')
			} else {
				if singleOpen {
					out.WriteRune('‘')
				} else {
					out.WriteRune('’')
				}
				singleOpen = !singleOpen
			}
			prev = '\''
		default:
			out.WriteRune(r)
			prev = r
		}
	}

	return out.String()
}

func isWordRune(r rune) bool {
	return r != 0 && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
