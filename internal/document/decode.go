package document

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadMarkdown reads path and returns its text decoded and normalized to
// LF line endings.
func ReadMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", path, err)
	}
	return Decode(data), nil
}

// Decode turns file bytes into text. A UTF-8 or UTF-16 byte order mark
// selects the encoding, UTF-8 is assumed otherwise. Invalid sequences
// become U+FFFD and CRLF or lone CR become LF.
func Decode(data []byte) string {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		decoded = data
	}
	text := strings.ToValidUTF8(string(decoded), "�")
	return NormalizeNewlines(text)
}

// NormalizeNewlines converts CRLF and lone CR to LF.
func NormalizeNewlines(text string) string {
	if !strings.Contains(text, "\r") {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
