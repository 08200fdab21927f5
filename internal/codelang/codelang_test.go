package codelang

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "empty", input: "  ", want: "", wantOK: false},
		{name: "alias", input: "python", want: "py", wantOK: true},
		{name: "case insensitive", input: "JavaScript", want: "js", wantOK: true},
		{name: "yaml", input: "yaml", want: "yml", wantOK: true},
		{name: "language prefix", input: "language-rust", want: "rs", wantOK: true},
		{name: "pandoc braces", input: "{.golang}", want: "go", wantOK: true},
		{name: "unknown passes through lowercased", input: "Brainfuck", want: "brainfuck", wantOK: true},
		{name: "c++", input: "C++", want: "cpp", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestGuess(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		want   string
		wantOK bool
	}{
		{name: "python shebang", code: "\n#!/usr/bin/env python3\nprint(1)\n", want: "py", wantOK: true},
		{name: "bash shebang", code: "#!/bin/bash\necho hi\n", want: "sh", wantOK: true},
		{name: "node shebang", code: "#!/usr/bin/node\n", want: "js", wantOK: true},
		{name: "unknown shebang", code: "#!/usr/bin/ruby\n", want: "sh", wantOK: true},
		{name: "xml", code: "<?xml version=\"1.0\"?>\n<a/>\n", want: "xml", wantOK: true},
		{name: "html", code: "<!DOCTYPE html>\n", want: "html", wantOK: true},
		{name: "json", code: "  {\"a\": 1}\n", want: "json", wantOK: true},
		{name: "sql", code: "select * from t;\n", want: "sql", wantOK: true},
		{name: "rust", code: "fn main() {}\n", want: "rs", wantOK: true},
		{name: "python", code: "def f():\n    pass\n", want: "py", wantOK: true},
		{name: "js arrow", code: "const f = (x) => x\n", want: "js", wantOK: true},
		{name: "csharp", code: "namespace Foo {}\n", want: "cs", wantOK: true},
		{name: "cpp", code: "#include <iostream>\n", want: "cpp", wantOK: true},
		{name: "c", code: "#include <stdio.h>\n", want: "c", wantOK: true},
		{name: "nothing", code: "hello there\n", want: "", wantOK: false},
		{name: "blank", code: "\n  \n", want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Guess(tt.code)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}
