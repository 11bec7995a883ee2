package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/masahif/gemcrawl/internal/crawler"
	"github.com/masahif/gemcrawl/internal/parser"
)

var wordPressGenerator = regexp.MustCompile(`(?i)^wordpress\s+(\S+)`)

func parseDocument(content string) (*goquery.Document, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// LDJSONExtractor returns the body of the first ld+json script on a page as
// json.RawMessage. Pages whose first block is not valid JSON yield nothing.
var LDJSONExtractor = crawler.GemExtractorFunc(func(content string) (any, bool) {
	doc, ok := parseDocument(content)
	if !ok {
		return nil, false
	}

	var body string
	found := false
	doc.Find("script[type]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		typ, _ := s.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(typ), "application/ld+json") {
			return true
		}
		body = strings.TrimSpace(s.Text())
		found = true
		return false
	})

	if !found || body == "" || !json.Valid([]byte(body)) {
		return nil, false
	}
	return json.RawMessage(body), true
})

// WordPressVersionExtractor reads the version from a
// <meta name="generator" content="WordPress X"> tag as {"wp_version": X}.
var WordPressVersionExtractor = crawler.GemExtractorFunc(func(content string) (any, bool) {
	doc, ok := parseDocument(content)
	if !ok {
		return nil, false
	}

	var version string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "generator") {
			return true
		}
		if m := wordPressGenerator.FindStringSubmatch(strings.TrimSpace(s.AttrOr("content", ""))); m != nil {
			version = m[1]
			return false
		}
		return true
	})

	if version == "" {
		return nil, false
	}
	return map[string]string{"wp_version": version}, true
})

// PageMetaExtractor records the title, description, robots directive,
// canonical link, language and content hash of a page as a parser.PageMeta.
// Pages without any metadata yield nothing.
var PageMetaExtractor = crawler.GemExtractorFunc(func(content string) (any, bool) {
	meta, err := parser.ExtractMeta(content)
	if err != nil || meta.Empty() {
		return nil, false
	}
	return meta, true
})
