package crawler

import (
	"context"
	"strings"

	"github.com/masahif/gemcrawl/internal/weburl"
)

// ProcessCondition decides whether a queued URL is fetched at all. It may
// read the backend; a returned error aborts the run.
type ProcessCondition interface {
	Process(ctx context.Context, u weburl.URL, backend Backend) (bool, error)
}

// ProcessConditionFunc adapts a function to ProcessCondition.
type ProcessConditionFunc func(ctx context.Context, u weburl.URL, backend Backend) (bool, error)

func (f ProcessConditionFunc) Process(ctx context.Context, u weburl.URL, backend Backend) (bool, error) {
	return f(ctx, u, backend)
}

// SaveFilter decides whether a link candidate found on source is enqueued.
type SaveFilter interface {
	Save(candidate string, source weburl.URL) bool
}

// SaveFilterFunc adapts a function to SaveFilter.
type SaveFilterFunc func(candidate string, source weburl.URL) bool

func (f SaveFilterFunc) Save(candidate string, source weburl.URL) bool {
	return f(candidate, source)
}

// GemExtractor pulls a structured payload out of page content. ok is false
// when the page holds nothing worth recording.
type GemExtractor interface {
	Extract(content string) (payload any, ok bool)
}

// GemExtractorFunc adapts a function to GemExtractor.
type GemExtractorFunc func(content string) (any, bool)

func (f GemExtractorFunc) Extract(content string) (any, bool) {
	return f(content)
}

// CountKey maps a visited URL to the counter it increments.
type CountKey interface {
	Key(u weburl.URL) string
}

// CountKeyFunc adapts a function to CountKey.
type CountKeyFunc func(u weburl.URL) string

func (f CountKeyFunc) Key(u weburl.URL) string {
	return f(u)
}

// Pipeline is the set of strategies an engine runs each URL through.
// Nil fields fall back to the defaults, except Extractor: a nil extractor
// records no gems.
type Pipeline struct {
	Condition ProcessCondition
	Filter    SaveFilter
	Extractor GemExtractor
	Key       CountKey
}

// DefaultPipeline processes every URL, keeps ".html" links, records nothing
// and counts visits per 2-label domain.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Condition: AlwaysProcess,
		Filter:    DotHTMLFilter,
		Key:       DomainCountKey,
	}
}

func (p Pipeline) withDefaults() Pipeline {
	if p.Condition == nil {
		p.Condition = AlwaysProcess
	}
	if p.Filter == nil {
		p.Filter = DotHTMLFilter
	}
	if p.Key == nil {
		p.Key = DomainCountKey
	}
	return p
}

var (
	// AlwaysProcess accepts every URL.
	AlwaysProcess = ProcessConditionFunc(func(context.Context, weburl.URL, Backend) (bool, error) {
		return true, nil
	})

	// DotHTMLFilter keeps candidates ending in ".html", ignoring case.
	DotHTMLFilter = SaveFilterFunc(func(candidate string, _ weburl.URL) bool {
		return strings.HasSuffix(strings.ToLower(candidate), ".html")
	})

	// DomainCountKey counts visits per 2-label domain.
	DomainCountKey = CountKeyFunc(func(u weburl.URL) string {
		return u.Domain().String()
	})
)
