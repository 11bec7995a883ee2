// Package pipeline holds ready-made crawl strategies and the presets that
// combine them.
package pipeline

import (
	"context"
	"strings"

	"github.com/masahif/gemcrawl/internal/crawler"
	"github.com/masahif/gemcrawl/internal/weburl"
)

// MediaExtensions mark links to assets rather than pages.
var MediaExtensions = []string{".webm", ".gif", ".mp4", ".jpg", ".png", ".js", ".css", ".woff", ".xml"}

// DefaultBlocklist is used by TLDFilter when no blocklist is given. It
// extends MediaExtensions with query strings, social links and shop
// navigation pages.
var DefaultBlocklist = append(append([]string(nil), MediaExtensions...),
	"=", "istats", "goedbegin", "warenhuis-shop", "plaza", "start",
	"pagina", "bestellen", "twitter", "facebook",
)

// containsAfterStart reports whether any of subs occurs in s past its first
// byte. A match at index 0 does not count.
func containsAfterStart(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Index(s, sub) > 0 {
			return true
		}
	}
	return false
}

// InternalURLFilter keeps links that stay on the source's 2-label domain
// and do not point at media files. Relative links are always internal.
var InternalURLFilter = crawler.SaveFilterFunc(func(candidate string, source weburl.URL) bool {
	if containsAfterStart(candidate, MediaExtensions) {
		return false
	}

	var absolute string
	switch {
	case strings.HasPrefix(candidate, "//"):
		absolute = "https:" + candidate
	case hasScheme(candidate):
		absolute = candidate
	default:
		return true
	}

	u, err := weburl.Parse(absolute)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Domain().String(), source.Domain().String())
})

func hasScheme(s string) bool {
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return false
	}
	for _, r := range s[:i] {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// TLDFilter keeps absolute links under one top-level domain. Links
// containing a Blocklist entry past their first byte are dropped.
type TLDFilter struct {
	TLD       string
	Blocklist []string
}

// NewTLDFilter returns a filter for tld using DefaultBlocklist.
func NewTLDFilter(tld string) TLDFilter {
	return TLDFilter{TLD: strings.TrimPrefix(tld, "."), Blocklist: DefaultBlocklist}
}

func (f TLDFilter) Save(candidate string, _ weburl.URL) bool {
	if containsAfterStart(candidate, f.Blocklist) {
		return false
	}
	u, err := weburl.Parse(candidate)
	if err != nil {
		return false
	}
	return u.Domain().MatchesTLD(f.TLD)
}

// Unvisited processes URLs whose own counter is still zero. It pairs with
// FullURLKey.
var Unvisited = crawler.ProcessConditionFunc(func(ctx context.Context, u weburl.URL, b crawler.Backend) (bool, error) {
	n, err := b.VisitCount(ctx, u.String())
	if err != nil {
		return false, err
	}
	return n == 0, nil
})

// BelowDomainCount processes URLs whose 2-label domain has fewer than limit
// visits.
func BelowDomainCount(limit int) crawler.ProcessCondition {
	return crawler.ProcessConditionFunc(func(ctx context.Context, u weburl.URL, b crawler.Backend) (bool, error) {
		n, err := b.VisitCount(ctx, u.Domain().String())
		if err != nil {
			return false, err
		}
		return n < limit, nil
	})
}

// FullURLKey counts visits per URL.
var FullURLKey = crawler.CountKeyFunc(func(u weburl.URL) string {
	return u.String()
})
