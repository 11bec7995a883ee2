// Package weburl provides the URL and Domain value types used throughout the
// crawler. Domains are approximated by the last two labels of a host name;
// public suffixes are not consulted.
package weburl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ErrInvalidURL is returned when a string is not a valid absolute URL
var ErrInvalidURL = errors.New("invalid url")

// URL is a validated absolute URL. The zero value is not valid; use Parse.
type URL struct {
	raw  string
	host string
}

// Parse validates raw and wraps it in a URL. It requires a scheme and a host
// and rejects whitespace and control characters. No network access happens.
func Parse(raw string) (URL, error) {
	if raw == "" {
		return URL{}, fmt.Errorf("%w: empty string", ErrInvalidURL)
	}
	if strings.IndexFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return URL{}, fmt.Errorf("%w: %q contains whitespace", ErrInvalidURL, raw)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" || parsed.Hostname() == "" {
		return URL{}, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, raw)
	}

	return URL{raw: raw, host: parsed.Hostname()}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level values.
func MustParse(raw string) URL {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the URL exactly as it was given to Parse.
func (u URL) String() string {
	return u.raw
}

// Host returns the host name without port.
func (u URL) Host() string {
	return u.host
}

// Domain returns the last two labels of the host. "www.shop.example.com"
// yields "example.com".
func (u URL) Domain() Domain {
	return NewDomain(NewDomain(u.host).TopLevels(2))
}

// RelativePrefix returns the URL cut just after the last '/' of its path, so
// that a relative reference can be appended to it. A URL without a path
// separator is returned unchanged.
func (u URL) RelativePrefix() string {
	authority := strings.Index(u.raw, "://")
	if authority < 0 {
		return u.raw
	}
	rest := u.raw[authority+3:]
	pathStart := strings.IndexAny(rest, "/?#")
	if pathStart < 0 || rest[pathStart] != '/' {
		return u.raw
	}
	pathStart += authority + 3

	pathEnd := len(u.raw)
	if i := strings.IndexAny(u.raw[pathStart:], "?#"); i >= 0 {
		pathEnd = pathStart + i
	}

	last := strings.LastIndexByte(u.raw[pathStart:pathEnd], '/')
	return u.raw[:pathStart+last+1]
}
