package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/masahif/gemcrawl/internal/crawler"
)

const (
	PresetDefault   = "default"
	PresetMeta      = "meta"
	PresetPrice     = "price"
	PresetWordPress = "wordpress"
)

const (
	DefaultTLD              = "nl"
	DefaultDomainVisitLimit = 10
)

// ErrUnknownPreset is returned by Preset for names it does not know
var ErrUnknownPreset = errors.New("unknown preset")

// PresetOptions tune the presets that take parameters. Zero values take
// the defaults.
type PresetOptions struct {
	TLD              string // wordpress: top-level domain to stay in
	DomainVisitLimit int    // wordpress: visits per domain
}

var presets = map[string]func(PresetOptions) crawler.Pipeline{
	PresetDefault: func(PresetOptions) crawler.Pipeline {
		return crawler.DefaultPipeline()
	},
	// Site audit: default filters, page metadata of every visited page.
	PresetMeta: func(PresetOptions) crawler.Pipeline {
		p := crawler.DefaultPipeline()
		p.Extractor = PageMetaExtractor
		return p
	},
	// Product pages: every URL once, stay on the shop's domain, keep the
	// ld+json block.
	PresetPrice: func(PresetOptions) crawler.Pipeline {
		return crawler.Pipeline{
			Condition: Unvisited,
			Filter:    InternalURLFilter,
			Extractor: LDJSONExtractor,
			Key:       FullURLKey,
		}
	},
	// WordPress survey: a few pages per domain across one TLD.
	PresetWordPress: func(opts PresetOptions) crawler.Pipeline {
		return crawler.Pipeline{
			Condition: BelowDomainCount(opts.DomainVisitLimit),
			Filter:    NewTLDFilter(opts.TLD),
			Extractor: WordPressVersionExtractor,
			Key:       crawler.DomainCountKey,
		}
	},
}

// Preset returns the named pipeline.
func Preset(name string, opts PresetOptions) (crawler.Pipeline, error) {
	build, ok := presets[name]
	if !ok {
		return crawler.Pipeline{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownPreset, name, PresetNames())
	}
	if opts.TLD == "" {
		opts.TLD = DefaultTLD
	}
	if opts.DomainVisitLimit <= 0 {
		opts.DomainVisitLimit = DefaultDomainVisitLimit
	}
	return build(opts), nil
}

// PresetNames lists the known presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
