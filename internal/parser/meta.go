package parser

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// PageMeta contains the document-level metadata of a page
type PageMeta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Robots      string `json:"robots,omitempty"`
	Canonical   string `json:"canonical,omitempty"` // href of rel=canonical, unresolved
	Language    string `json:"language,omitempty"`  // lang attribute of <html>
	ContentHash string `json:"content_hash"`        // SHA-256 of the raw content
}

// Empty reports whether no metadata besides the hash was found
func (m PageMeta) Empty() bool {
	return m.Title == "" && m.Description == "" && m.Robots == "" && m.Canonical == "" && m.Language == ""
}

// ExtractMeta parses content and collects its title, description, robots
// directive, canonical link and language. The first occurrence of each wins.
func ExtractMeta(content string) (PageMeta, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return PageMeta{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var meta PageMeta
	traverse(doc, &meta)

	hash := sha256.Sum256([]byte(content))
	meta.ContentHash = fmt.Sprintf("%x", hash)

	return meta, nil
}

// traverse recursively walks the HTML tree
func traverse(n *html.Node, meta *PageMeta) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "html":
			if meta.Language == "" {
				meta.Language = strings.TrimSpace(attr(n, "lang"))
			}

		case "title":
			if meta.Title == "" {
				meta.Title = strings.Join(strings.Fields(text(n)), " ")
			}

		case "meta":
			parseMeta(n, meta)

		case "link":
			if meta.Canonical == "" && strings.EqualFold(attr(n, "rel"), "canonical") {
				meta.Canonical = strings.TrimSpace(attr(n, "href"))
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		traverse(c, meta)
	}
}

// parseMeta extracts metadata from meta tags
func parseMeta(n *html.Node, meta *PageMeta) {
	content := strings.TrimSpace(attr(n, "content"))

	switch strings.ToLower(attr(n, "name")) {
	case "description":
		if meta.Description == "" {
			meta.Description = content
		}
	case "robots":
		if meta.Robots == "" {
			meta.Robots = content
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// text concatenates the text nodes below n
func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}

	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(text(c))
	}
	return sb.String()
}
