package outline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "simple", title: "Hello World", want: "hello-world"},
		{name: "punctuation dropped", title: "What's new?", want: "whats-new"},
		{name: "runs collapse", title: "a  -_ b", want: "a-b"},
		{name: "leading and trailing separators", title: "  --Title--  ", want: "title"},
		{name: "unicode letters kept", title: "Über Café", want: "über-café"},
		{name: "digits", title: "Step 2: Build", want: "step-2-build"},
		{name: "nothing usable", title: "!!!", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.title); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestUnique(t *testing.T) {
	used := map[string]struct{}{}
	got := []string{
		Unique("intro", used),
		Unique("intro", used),
		Unique("intro", used),
		Unique("intro-1", used),
	}
	want := []string{"intro", "intro-1", "intro-2", "intro-1-1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected slugs (-want +got):\n%s", diff)
	}
	if len(used) != 4 {
		t.Errorf("expected 4 used slugs, got %d", len(used))
	}
}

func TestBuild(t *testing.T) {
	input := "# Title\n" +
		"\n" +
		"Intro text.\n" +
		"\n" +
		"## Install ##\n" +
		"Setext One\n" +
		"==========\n" +
		"Setext Two\n" +
		"---\n" +
		"##NoSpace\n" +
		"#\n" +
		"## Install\n" +
		"```\n" +
		"# inside fence\n" +
		"```\n" +
		"### !!!\n"

	want := []Item{
		{Level: 1, Title: "Title", Slug: "title", Line: 0},
		{Level: 2, Title: "Install", Slug: "install", Line: 4},
		{Level: 1, Title: "Setext One", Slug: "setext-one", Line: 5},
		{Level: 2, Title: "Setext Two", Slug: "setext-two", Line: 7},
		{Level: 2, Title: "Install", Slug: "install-1", Line: 11},
		{Level: 1, Title: "inside fence", Slug: "inside-fence", Line: 13},
		{Level: 3, Title: "!!!", Slug: "section", Line: 15},
	}

	got := Build(input)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected outline (-want +got):\n%s", diff)
	}
}

func TestBuild_SlugsArePairwiseDistinct(t *testing.T) {
	input := "# A\n# A\n# a\n# A-1\n# A 1\n# !!\n# ??\n"
	items := Build(input)
	if len(items) != 7 {
		t.Fatalf("expected 7 headings, got %d", len(items))
	}
	seen := map[string]bool{}
	for _, item := range items {
		if seen[item.Slug] {
			t.Errorf("duplicate slug %q", item.Slug)
		}
		seen[item.Slug] = true
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	if got := Build(""); len(got) != 0 {
		t.Errorf("expected no headings, got %v", got)
	}
}

func TestLineForFragment(t *testing.T) {
	items := Build("# Intro\ntext\n## Getting Started\nmore\n## Café Menu\n")

	tests := []struct {
		name     string
		fragment string
		wantLine int
		wantOK   bool
	}{
		{name: "empty is top", fragment: "", wantLine: 0, wantOK: true},
		{name: "literal slug", fragment: "getting-started", wantLine: 2, wantOK: true},
		{name: "uppercase literal", fragment: "Getting-Started", wantLine: 2, wantOK: true},
		{name: "github prefix", fragment: "user-content-getting-started", wantLine: 2, wantOK: true},
		{name: "percent encoded", fragment: "caf%C3%A9-menu", wantLine: 4, wantOK: true},
		{name: "re-slugified title", fragment: "Getting+Started", wantLine: 2, wantOK: true},
		{name: "prefix only", fragment: "user-content-", wantLine: 0, wantOK: true},
		{name: "unknown", fragment: "missing", wantLine: 0, wantOK: false},
		{name: "no slug characters", fragment: "%21%21", wantLine: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, ok := LineForFragment(items, tt.fragment)
			if ok != tt.wantOK || line != tt.wantLine {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.wantLine, tt.wantOK, line, ok)
			}
		})
	}
}

func TestPercentDecode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "a%20b", want: "a b"},
		{in: "a+b", want: "a b"},
		{in: "100%", want: "100%"},
		{in: "%zz", want: "%zz"},
		{in: "%4", want: "%4"},
		{in: "%ff", want: "�"},
	}
	for _, tt := range tests {
		if got := PercentDecode(tt.in); got != tt.want {
			t.Errorf("PercentDecode(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
