package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Repo is the GitHub repository a document lives in.
type Repo struct {
	// BaseURL is https://github.com/<owner>/<repo>.
	BaseURL string
}

var githubRemotePrefixes = []string{
	"https://github.com/",
	"http://github.com/",
	"git@github.com:",
	"ssh://git@github.com/",
}

// ParseGitHubRemote converts a GitHub remote URL into the repository's web
// base URL. It reports false for anything that is not a GitHub remote.
func ParseGitHubRemote(remote string) (string, bool) {
	remote = strings.TrimSpace(remote)
	for _, prefix := range githubRemotePrefixes {
		rest, ok := strings.CutPrefix(remote, prefix)
		if !ok {
			continue
		}
		rest = strings.TrimSuffix(rest, ".git")
		parts := strings.Split(rest, "/")
		if len(parts) < 2 {
			return "", false
		}
		owner, repo := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if owner == "" || repo == "" {
			return "", false
		}
		return "https://github.com/" + owner + "/" + repo, true
	}
	return "", false
}

// DiscoverRepo finds the git repository containing path and derives the
// GitHub base URL from its origin remote. It returns nil, nil when path is
// not inside a repository or origin is not on GitHub.
func DiscoverRepo(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(filepath.Dir(path), &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repository for %q: %w", path, err)
	}

	remote, err := repo.Remote("origin")
	if errors.Is(err, git.ErrRemoteNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read origin remote: %w", err)
	}

	for _, url := range remote.Config().URLs {
		if base, ok := ParseGitHubRemote(url); ok {
			return &Repo{BaseURL: base}, nil
		}
	}
	return nil, nil
}
