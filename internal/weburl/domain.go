package weburl

import "strings"

// Domain is a host name suffix such as "example.com"
type Domain struct {
	raw string
}

// NewDomain wraps a host name or host name suffix
func NewDomain(name string) Domain {
	return Domain{raw: name}
}

// String returns the domain name
func (d Domain) String() string {
	return d.raw
}

// TopLevels returns the last n dot-separated labels joined by dots.
// If the domain has fewer than n labels the whole domain is returned.
func (d Domain) TopLevels(n int) string {
	if n <= 0 || d.raw == "" {
		return ""
	}
	labels := strings.Split(d.raw, ".")
	if n > len(labels) {
		n = len(labels)
	}
	return strings.Join(labels[len(labels)-n:], ".")
}

// MatchesTLD reports whether the top level label equals suffix, ignoring case.
func (d Domain) MatchesTLD(suffix string) bool {
	return strings.EqualFold(d.TopLevels(1), suffix)
}
