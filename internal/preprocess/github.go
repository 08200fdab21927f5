package preprocess

import (
	"regexp"
	"strings"

	"mvdan.cc/xurls/v2"
)

var (
	crossRepoRe = regexp.MustCompile(`([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)#([0-9]+)`)
	// The leading group keeps matches out of identifiers such as abc#1.
	pullRequestRe = regexp.MustCompile(`(?i)(^|[^A-Za-z0-9_])PR\s*#([0-9]+)`)
	issueRe       = regexp.MustCompile(`(^|[^A-Za-z0-9_])#([0-9]+)`)

	// schemeURLRe finds URLs whose paths would otherwise look like
	// owner/repo#N references.
	schemeURLRe = xurls.Strict()
)

// linkifyReferences turns owner/repo#N into issue links. With a repository
// base URL it also links "PR #N" and bare "#N" to that repository.
func linkifyReferences(text, repoURL string) string {
	text = outsideReferences(text, func(s string) string {
		return replaceSubmatches(s, crossRepoRe, func(m []string) string {
			owner, repo, num := m[1], m[2], m[3]
			return "[" + owner + "/" + repo + "#" + num + "](https://github.com/" +
				owner + "/" + repo + "/issues/" + num + ")"
		})
	})

	repoURL = strings.TrimRight(repoURL, "/")
	if repoURL == "" {
		return text
	}

	text = outsideReferences(text, func(s string) string {
		return replaceSubmatches(s, pullRequestRe, func(m []string) string {
			return m[1] + "[PR#" + m[2] + "](" + repoURL + "/pull/" + m[2] + ")"
		})
	})
	text = outsideReferences(text, func(s string) string {
		return replaceSubmatches(s, issueRe, func(m []string) string {
			return m[1] + "[#" + m[2] + "](" + repoURL + "/issues/" + m[2] + ")"
		})
	})
	return text
}

// outsideReferences skips existing links and URLs.
func outsideReferences(text string, fn func(string) string) string {
	return outsideLinks(text, func(s string) string {
		return outsideMatches(s, schemeURLRe, fn)
	})
}

// replaceSubmatches is ReplaceAllStringFunc with access to capture groups.
func replaceSubmatches(s string, re *regexp.Regexp, fn func([]string) string) string {
	idx := re.FindAllStringSubmatchIndex(s, -1)
	if len(idx) == 0 {
		return s
	}

	var out strings.Builder
	out.Grow(len(s) + len(idx)*48)
	last := 0
	for _, loc := range idx {
		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = s[loc[2*g]:loc[2*g+1]]
			}
		}
		out.WriteString(s[last:loc[0]])
		out.WriteString(fn(groups))
		last = loc[1]
	}
	out.WriteString(s[last:])
	return out.String()
}
