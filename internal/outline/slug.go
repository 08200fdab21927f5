package outline

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Slugify turns heading text into a URL fragment. It returns "" when the
// title has no letters or digits.
func Slugify(title string) string {
	var sb strings.Builder
	sb.Grow(len(title))
	pendingDash := false

	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingDash = false
			sb.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '_':
			pendingDash = true
		}
	}

	return sb.String()
}

// Unique returns base, or the first of base-1, base-2, ... not present in
// used. The returned value is added to used.
func Unique(base string, used map[string]struct{}) string {
	candidate := base
	for i := 1; ; i++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
}

// SlugFor returns the unique slug for a heading title. Titles without
// letters or digits get "section".
func SlugFor(title string, used map[string]struct{}) string {
	base := Slugify(title)
	if base == "" {
		base = fallbackSlug
	}
	return Unique(base, used)
}

// PercentDecode decodes %XX escapes and '+' as space. Malformed escapes are
// kept literally and invalid UTF-8 is replaced.
func PercentDecode(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '%' && i+2 < len(s):
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				out = append(out, c)
				continue
			}
			out = append(out, hi<<4|lo)
			i += 2
		case c == '+':
			out = append(out, ' ')
		default:
			out = append(out, c)
		}
	}
	if utf8.Valid(out) {
		return string(out)
	}
	return strings.ToValidUTF8(string(out), "�")
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
