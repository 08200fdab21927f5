// Package codelang canonicalizes fenced code block languages and guesses a
// language for unlabelled blocks.
package codelang

import (
	"strings"
)

// aliases maps lowercased info-string tokens to canonical short names.
var aliases = map[string]string{
	// Core languages
	"rust":       "rs",
	"python":     "py",
	"javascript": "js",
	"js":         "js",
	"typescript": "ts",
	"ts":         "ts",
	"tsx":        "tsx",
	"jsx":        "jsx",
	"bash":       "sh",
	"sh":         "sh",
	"shell":      "sh",
	"zsh":        "sh",
	"fish":       "sh",
	"powershell": "ps1",
	"pwsh":       "ps1",
	"csharp":     "cs",
	"cs":         "cs",
	"cpp":        "cpp",
	"c++":        "cpp",
	"c":          "c",
	"h":          "h",
	"h++":        "hpp",
	"hpp":        "hpp",
	"go":         "go",
	"golang":     "go",
	"java":       "java",
	"kotlin":     "kt",
	"kt":         "kt",
	"kts":        "kt",
	"swift":      "swift",
	"scala":      "scala",
	"ruby":       "rb",
	"rb":         "rb",
	"php":        "php",
	"perl":       "pl",
	"pl":         "pl",
	"lua":        "lua",
	"r":          "r",
	"julia":      "jl",
	"jl":         "jl",
	"dart":       "dart",
	"elixir":     "ex",
	"ex":         "ex",
	"exs":        "ex",
	"erlang":     "erl",
	"erl":        "erl",
	"haskell":    "hs",
	"hs":         "hs",
	"ocaml":      "ml",
	"ml":         "ml",
	"nim":        "nim",
	"zig":        "zig",
	"solidity":   "sol",
	"sol":        "sol",

	// Web and data formats
	"json":     "json",
	"json5":    "json5",
	"toml":     "toml",
	"ini":      "ini",
	"yaml":     "yml",
	"yml":      "yml",
	"markdown": "md",
	"md":       "md",
	"graphql":  "graphql",
	"gql":      "graphql",
	"css":      "css",
	"scss":     "scss",
	"less":     "less",
	"html":     "html",
	"xml":      "xml",
	"svg":      "svg",
	"csv":      "csv",
	"sql":      "sql",
	"proto":    "proto",
	"protobuf": "proto",

	// Tooling and config
	"docker":       "dockerfile",
	"dockerfile":   "dockerfile",
	"make":         "makefile",
	"makefile":     "makefile",
	"cmake":        "cmake",
	"nix":          "nix",
	"diff":         "diff",
	"patch":        "diff",
	"gitignore":    "gitignore",
	"editorconfig": "editorconfig",
	"tex":          "tex",
	"latex":        "tex",
	"plaintext":    "txt",
	"text":         "txt",
	"txt":          "txt",
}

// Normalize returns the canonical token for a fence info-string language.
// Unknown languages are returned lowercased. ok is false for an empty token.
func Normalize(lang string) (canonical string, ok bool) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "", false
	}
	lang = strings.Trim(lang, "{}.")
	lang = strings.TrimSpace(strings.TrimPrefix(lang, "language-"))
	lower := strings.ToLower(lang)
	if mapped, found := aliases[lower]; found {
		return mapped, true
	}
	return lower, true
}

// contentHint is a substring heuristic; the first hint with a matching
// marker wins.
type contentHint struct {
	lang    string
	markers []string
}

var contentHints = []contentHint{
	{lang: "rs", markers: []string{"fn main", "println!", "use "}},
	{lang: "py", markers: []string{"def ", "import "}},
	{lang: "js", markers: []string{"console.log", "function ", "=>"}},
	{lang: "cs", markers: []string{"using System", "namespace "}},
}

// Guess infers a language from block content. ok is false when nothing
// matches.
func Guess(code string) (lang string, ok bool) {
	first := ""
	for _, line := range strings.Split(code, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			first = trimmed
			break
		}
	}
	if first == "" {
		return "", false
	}

	if shebang, found := strings.CutPrefix(first, "#!"); found {
		shebang = strings.ToLower(shebang)
		switch {
		case strings.Contains(shebang, "python"):
			return "py", true
		case strings.Contains(shebang, "bash"), strings.Contains(shebang, "sh"):
			return "sh", true
		case strings.Contains(shebang, "node"):
			return "js", true
		}
		return "sh", true
	}

	switch {
	case strings.HasPrefix(first, "<?xml"):
		return "xml", true
	case strings.HasPrefix(first, "<!DOCTYPE"), strings.HasPrefix(first, "<html"):
		return "html", true
	case strings.HasPrefix(first, "{"), strings.HasPrefix(first, "["):
		return "json", true
	case strings.HasPrefix(first, "SELECT"), strings.HasPrefix(first, "select"):
		return "sql", true
	}

	for _, hint := range contentHints {
		for _, marker := range hint.markers {
			if strings.Contains(code, marker) {
				return hint.lang, true
			}
		}
	}
	if strings.Contains(code, "#include") {
		if strings.Contains(code, "<iostream>") {
			return "cpp", true
		}
		return "c", true
	}

	return "", false
}
