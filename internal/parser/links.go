// Package parser extracts link candidates from fetched page content and
// resolves them against the page they were found on.
//
// Resolution is deliberately simple: "../" segments are kept as they are and
// query-only references are treated as ordinary relative paths.
package parser

import (
	"regexp"
	"strings"

	"github.com/masahif/gemcrawl/internal/weburl"
)

var (
	hrefPattern   = regexp.MustCompile(`(?i)href=['"]([^\s()<>'"]+)['"]`)
	schemePattern = regexp.MustCompile(`^[A-Za-z0-9_]+:`)
)

// ExtractLinks returns the unique href values found in content, in order of
// first occurrence.
func ExtractLinks(content string) []string {
	matches := hrefPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		links = append(links, m[1])
	}
	return links
}

// Resolve turns a link candidate into an absolute URL string relative to
// source. The result is not validated.
//
//	"https://x.y/z"  unchanged (any "scheme:" prefix)
//	"//cdn.x/y.js"   "https://cdn.x/y.js"
//	"/abs/path"      "https://" + source 2-label domain + "/abs/path"
//	"rel.html"       source.RelativePrefix() + "rel.html"
func Resolve(candidate string, source weburl.URL) string {
	if i := strings.IndexByte(candidate, '#'); i >= 0 {
		candidate = candidate[:i]
	}

	switch {
	case schemePattern.MatchString(candidate):
		return candidate
	case strings.HasPrefix(candidate, "//"):
		return "https:" + candidate
	case strings.HasPrefix(candidate, "/"):
		// The host's subdomain is dropped here.
		return "https://" + source.Domain().String() + candidate
	default:
		return source.RelativePrefix() + candidate
	}
}

// Discover extracts the links in content, keeps the candidates accepted by
// keep, and returns their resolved forms without duplicates. A nil keep
// accepts every candidate.
func Discover(content string, source weburl.URL, keep func(candidate string) bool) []string {
	candidates := ExtractLinks(content)
	if len(candidates) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(candidates))
	var resolved []string
	for _, candidate := range candidates {
		if keep != nil && !keep(candidate) {
			continue
		}
		abs := Resolve(candidate, source)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		resolved = append(resolved, abs)
	}
	return resolved
}
