package preprocess

import (
	"testing"
)

const testRepo = "https://github.com/me/proj"

func onlyFences(autoDetect, mermaid bool) Options {
	return Options{AutoDetectCodeLang: autoDetect, RenderMermaid: mermaid}
}

func TestProcess_Fences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
		want  string
	}{
		{
			name:  "alias normalized",
			input: "```python\nprint(1)\n```\n",
			opts:  onlyFences(true, true),
			want:  "```py\nprint(1)\n```\n",
		},
		{
			name:  "extra info tokens dropped",
			input: "```Rust ignore\nfn main() {}\n```\n",
			opts:  onlyFences(true, true),
			want:  "```rs\nfn main() {}\n```\n",
		},
		{
			name:  "language guessed",
			input: "```\n#!/bin/bash\necho hi\n```\n",
			opts:  onlyFences(true, true),
			want:  "```sh\n#!/bin/bash\necho hi\n```\n",
		},
		{
			name:  "guessing disabled",
			input: "```\nfn main() {}\n```\n",
			opts:  onlyFences(false, true),
			want:  "```\nfn main() {}\n```\n",
		},
		{
			name:  "mermaid becomes div",
			input: "```mermaid\ngraph TD\n```\n",
			opts:  onlyFences(true, true),
			want:  "<div class=\"mermaid\">\ngraph TD\n</div>\n",
		},
		{
			name:  "indented mermaid keeps indent",
			input: "  ```Mermaid\n  A-->B\n  ```\n",
			opts:  onlyFences(true, true),
			want:  "  <div class=\"mermaid\">\n  A-->B\n  </div>\n",
		},
		{
			name:  "mermaid disabled stays a fence",
			input: "```mermaid\ngraph TD\n```\n",
			opts:  onlyFences(true, false),
			want:  "```mermaid\ngraph TD\n```\n",
		},
		{
			name:  "shorter run does not close",
			input: "````\na\n```\nb\n`````\n",
			opts:  onlyFences(true, true),
			want:  "````\na\n```\nb\n`````\n",
		},
		{
			name:  "other marker does not close",
			input: "~~~\n```\n~~~\n",
			opts:  onlyFences(true, true),
			want:  "~~~\n```\n~~~\n",
		},
		{
			name:  "closing line without newline",
			input: "```js\nx\n```",
			opts:  onlyFences(true, true),
			want:  "```js\nx\n```",
		},
		{
			name:  "unterminated fence is closed",
			input: "```go\nx := 1\n",
			opts:  onlyFences(true, true),
			want:  "```go\nx := 1\n```\n",
		},
		{
			name:  "unterminated fence without trailing newline",
			input: "text\n~~~~\nabc",
			opts:  onlyFences(true, true),
			want:  "text\n~~~~\nabc\n~~~~\n",
		},
		{
			name:  "two backticks are not a fence",
			input: "``not a fence``\n",
			opts:  onlyFences(true, true),
			want:  "``not a fence``\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Process(tt.input, tt.opts); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestProcess_FenceContentIsNotTransformed(t *testing.T) {
	opts := DefaultOptions()
	opts.SmartTypography = true
	opts.RepoURL = testRepo

	input := "```\n:smile: #1 \"q\" -- https://example.com\n```\n"
	if got := Process(input, opts); got != input {
		t.Errorf("expected fence content untouched, got %q", got)
	}
}

func TestProcess_GitHubReferences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		repo  string
		want  string
	}{
		{
			name:  "cross repo without context",
			input: "see octocat/Hello-World#42",
			want:  "see [octocat/Hello-World#42](https://github.com/octocat/Hello-World/issues/42)",
		},
		{
			name:  "bare issue without context",
			input: "fixes #7",
			want:  "fixes #7",
		},
		{
			name:  "bare issue with context",
			input: "fixes #7",
			repo:  testRepo,
			want:  "fixes [#7](https://github.com/me/proj/issues/7)",
		},
		{
			name:  "pull request",
			input: "PR #7",
			repo:  testRepo,
			want:  "[PR#7](https://github.com/me/proj/pull/7)",
		},
		{
			name:  "pull request lowercase without space",
			input: "see pr#12.",
			repo:  testRepo + "/",
			want:  "see [PR#12](https://github.com/me/proj/pull/12).",
		},
		{
			name:  "identifier is not a reference",
			input: "abc#1 and x_#2",
			repo:  testRepo,
			want:  "abc#1 and x_#2",
		},
		{
			name:  "existing link untouched",
			input: "[#3](https://example.com/3)",
			repo:  testRepo,
			want:  "[#3](https://example.com/3)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{GitHubLinks: true, RepoURL: tt.repo}
			if got := Process(tt.input, opts); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestProcess_Autolinks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare url", input: "visit https://example.com now", want: "visit <https://example.com> now"},
		{name: "already wrapped", input: "<https://example.com>", want: "<https://example.com>"},
		{name: "www host gets scheme", input: "go to www.example.com", want: "go to <https://www.example.com>"},
		{name: "email untouched", input: "mail me@example.com", want: "mail me@example.com"},
		{name: "markdown link untouched", input: "[site](https://example.com)", want: "[site](https://example.com)"},
		{name: "file name untouched", input: "edit main.rs", want: "edit main.rs"},
		{name: "html attribute untouched", input: `<a href="https://example.com">site</a>`, want: `<a href="https://example.com">site</a>`},
		{name: "text after html tag", input: `<b>see</b> https://example.com`, want: `<b>see</b> <https://example.com>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Process(tt.input, Options{AutolinkURLs: true}); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestProcess_Emoji(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "known", input: "hi :smile:", want: "hi 😄"},
		{name: "unknown kept", input: ":notanemoji: :tada:", want: ":notanemoji: 🎉"},
		{name: "invalid name kept", input: "a :b c: d", want: "a :b c: d"},
		{name: "single colon", input: "key: value", want: "key: value"},
		{name: "colon before shortcode", input: "Note: :smile:", want: "Note: 😄"},
		{name: "word colon before shortcode", input: "a:b :smile: c", want: "a:b 😄 c"},
		{name: "inside code span", input: "`:smile:` :smile:", want: "`:smile:` 😄"},
		{name: "double backtick span", input: "``a ` :smile: `` :smile:", want: "``a ` :smile: `` 😄"},
		{name: "unclosed code span", input: "`open :smile:", want: "`open :smile:"},
		{name: "inside link text", input: "[:smile:](x)", want: "[:smile:](x)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Process(tt.input, Options{ReplaceEmoji: true}); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestProcess_SmartTypography(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "mixed", input: `"Hello" -- it's... 'ok'`, want: "“Hello” — it’s… ‘ok’"},
		{name: "two dots stay", input: "a.. b", want: "a.. b"},
		{name: "single hyphen stays", input: "well-known", want: "well-known"},
		{name: "contraction keeps parity", input: "'don't'", want: "‘don’t’"},
		{name: "link untouched", input: "[a -- b](x)", want: "[a -- b](x)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Process(tt.input, Options{SmartTypography: true}); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestProcess_DisabledTransformsLeaveText(t *testing.T) {
	input := "see octocat/Hello-World#42 :smile: https://example.com \"q\"\n"
	if got := Process(input, Options{}); got != input {
		t.Errorf("expected %q, got %q", input, got)
	}
}

func TestProcess_Idempotent(t *testing.T) {
	opts := DefaultOptions()
	opts.RepoURL = testRepo

	input := "see octocat/Hello-World#42 and #7, PR #8, https://example.com :smile: www.example.com\n"
	want := "see [octocat/Hello-World#42](https://github.com/octocat/Hello-World/issues/42)" +
		" and [#7](https://github.com/me/proj/issues/7)," +
		" [PR#8](https://github.com/me/proj/pull/8)," +
		" <https://example.com> 😄 <https://www.example.com>\n"

	once := Process(input, opts)
	if once != want {
		t.Fatalf("expected %q, got %q", want, once)
	}
	if twice := Process(once, opts); twice != once {
		t.Errorf("second pass changed output:\nfirst:  %q\nsecond: %q", once, twice)
	}
}

func TestProcess_PreservesLineEndings(t *testing.T) {
	input := "a\n\nb\n"
	if got := Process(input, DefaultOptions()); got != input {
		t.Errorf("expected %q, got %q", input, got)
	}
	if got := Process("", DefaultOptions()); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}
