// Package document loads Markdown files and keeps their derived views (the
// enriched text and the outline) in sync with the raw source.
package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gubarz/mdview/internal/outline"
	"github.com/gubarz/mdview/internal/preprocess"
)

// WelcomeText is shown when no file is open.
const WelcomeText = "# mdview\n" +
	"\n" +
	"Open a `.md` file to view it.\n" +
	"\n" +
	"- Pass one or more files on the command line.\n" +
	"- Press `r` to re-read the current file.\n" +
	"- Press `a` to reload automatically when files change.\n"

// Extensions lists the file suffixes treated as Markdown.
var Extensions = []string{".md", ".markdown", ".mdown", ".mkd", ".mkdn", ".mdtxt"}

// Document is one open Markdown source. Transformed and Outline are always
// derived from Raw; they are replaced together, never edited.
type Document struct {
	ID          int
	Path        string // empty for the welcome page
	Raw         string
	Transformed string
	Outline     []outline.Item
	Repo        *Repo
}

// New builds a document from text already in memory.
func New(id int, path, raw string, repo *Repo, opts preprocess.Options) *Document {
	d := &Document{ID: id, Path: path, Raw: raw, Repo: repo}
	d.Rebuild(opts)
	return d
}

// Welcome returns the placeholder document.
func Welcome(id int, opts preprocess.Options) *Document {
	return New(id, "", WelcomeText, nil, opts)
}

// Open reads path and discovers its repository. A failed repository lookup
// is not fatal; the document is returned without repository context.
func Open(id int, path string, opts preprocess.Options) (*Document, error) {
	path = NormalizePath(path)
	raw, err := ReadMarkdown(path)
	if err != nil {
		return nil, err
	}
	repo, _ := DiscoverRepo(path)
	return New(id, path, raw, repo, opts), nil
}

// Reload re-reads the file. On error the previous content is kept.
func (d *Document) Reload(opts preprocess.Options) error {
	if d.Path == "" {
		return fmt.Errorf("document %d has no file to reload", d.ID)
	}
	raw, err := ReadMarkdown(d.Path)
	if err != nil {
		return err
	}
	repo, _ := DiscoverRepo(d.Path)
	d.Raw = raw
	d.Repo = repo
	d.Rebuild(opts)
	return nil
}

// Rebuild recomputes the derived views from Raw.
func (d *Document) Rebuild(opts preprocess.Options) {
	opts.RepoURL = ""
	if d.Repo != nil {
		opts.RepoURL = d.Repo.BaseURL
	}
	d.Transformed = preprocess.Process(d.Raw, opts)
	d.Outline = outline.Build(d.Raw)
}

// Name is the label shown in tabs.
func (d *Document) Name() string {
	if d.Path == "" {
		return "Welcome"
	}
	return filepath.Base(d.Path)
}

// LineForFragment resolves a heading fragment to a line of Raw.
func (d *Document) LineForFragment(fragment string) (int, bool) {
	return outline.LineForFragment(d.Outline, fragment)
}

// NormalizePath makes path absolute and resolves symlinks where possible,
// so the same file opened twice maps to one key.
func NormalizePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return filepath.Clean(path)
}

// IsMarkdown reports whether path has a Markdown extension.
func IsMarkdown(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
