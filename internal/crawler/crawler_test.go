package crawler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masahif/gemcrawl/internal/weburl"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, b Backend, f Fetcher, opts Options) *Engine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	e, err := NewEngine(b, f, opts)
	require.NoError(t, err)
	return e
}

func TestNewEngine_Defaults(t *testing.T) {
	e := newTestEngine(t, newMemBackend(), newFakeFetcher(), Options{})

	assert.Equal(t, DefaultTarget, e.opts.Target)
	assert.Equal(t, DefaultBatchSize, e.opts.BatchSize)
	assert.Equal(t, DefaultQueueCapacity, e.opts.QueueCapacity)
	assert.NotNil(t, e.pipeline.Condition)
	assert.NotNil(t, e.pipeline.Filter)
	assert.NotNil(t, e.pipeline.Key)
	assert.Nil(t, e.pipeline.Extractor)
	assert.Equal(t, StatusRunning, e.Status())
}

func TestNewEngine_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		fetcher Fetcher
		opts    Options
	}{
		{"nil backend", nil, newFakeFetcher(), Options{}},
		{"nil fetcher", newMemBackend(), nil, Options{}},
		{"negative target", newMemBackend(), newFakeFetcher(), Options{Target: -1}},
		{"negative batch", newMemBackend(), newFakeFetcher(), Options{BatchSize: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.backend, tt.fetcher, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestEngine_TargetReachedMidBatch(t *testing.T) {
	urls := []string{
		"https://example.com/1.html",
		"https://example.com/2.html",
		"https://example.com/3.html",
		"https://example.com/4.html",
		"https://example.com/5.html",
	}
	fetcher := newFakeFetcher()
	for _, u := range urls {
		fetcher.html(u, "<p>leaf</p>")
	}
	backend := newMemBackend(urls...)

	e := newTestEngine(t, backend, fetcher, Options{Target: 3})
	status, err := e.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatusTargetReached, status)
	assert.Equal(t, 3, e.Stats().Visited)
	assert.Equal(t, urls[:3], fetcher.gets)
	assert.Equal(t, 3, backend.counts["example.com"])
	// The whole batch was dropped, so the unprocessed tail is gone.
	assert.Empty(t, backend.queue)
}

func TestEngine_EmptyQueue(t *testing.T) {
	backend := newMemBackend()
	fetcher := newFakeFetcher()
	e := newTestEngine(t, backend, fetcher, Options{})

	status, err := e.Step(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatusQueueExhausted, status)
	assert.Empty(t, backend.counts)
	assert.Empty(t, backend.gems)
	assert.Zero(t, backend.calls["DropBatch"])
	assert.Zero(t, backend.calls["Enqueue"])
	assert.Empty(t, fetcher.heads)
	assert.Zero(t, e.Stats().Visited)
}

func TestEngine_HaltedStaysHalted(t *testing.T) {
	backend := newMemBackend()
	e := newTestEngine(t, backend, newFakeFetcher(), Options{})

	status, err := e.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusQueueExhausted, status)

	require.NoError(t, backend.Enqueue(context.Background(), []string{"https://example.com/late.html"}))

	status, err = e.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusQueueExhausted, status)
	assert.Equal(t, 1, backend.calls["FetchBatch"])
}

func TestEngine_SharedCountKey(t *testing.T) {
	urls := []string{"https://www.example.com/a.html", "https://shop.example.com/b.html"}
	fetcher := newFakeFetcher().html(urls[0], "").html(urls[1], "")
	backend := newMemBackend(urls...)

	e := newTestEngine(t, backend, fetcher, Options{})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	count, err := backend.VisitCount(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEngine_SaveFilterRejectedNeverFetched(t *testing.T) {
	fetcher := newFakeFetcher().
		html("https://example.com/index.html", `<a href="b.html">b</a><a href="c.php">c</a><a href="/d.HTML">d</a>`).
		html("https://example.com/b.html", `<p>end</p>`)
	backend := newMemBackend("https://example.com/index.html")

	e := newTestEngine(t, backend, fetcher, Options{})
	status, err := e.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatusQueueExhausted, status)

	fetched := backend.allFetched()
	assert.Contains(t, fetched, "https://example.com/b.html")
	assert.Contains(t, fetched, "https://example.com/d.HTML")
	for _, u := range fetched {
		assert.NotContains(t, u, "c.php")
	}
}

func TestEngine_DiscoveredURLsParse(t *testing.T) {
	fetcher := newFakeFetcher().
		html("https://example.com/index.html", `<a href="http:.html">bad</a><a href="ok.html">ok</a>`)
	backend := newMemBackend("https://example.com/index.html")

	e := newTestEngine(t, backend, fetcher, Options{})
	status, err := e.Step(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusRunning, status)

	require.Equal(t, []string{"https://example.com/ok.html"}, backend.queue)
	for _, u := range backend.queue {
		_, err := weburl.Parse(u)
		assert.NoError(t, err, u)
	}
}

func TestEngine_GetFailureStillCounts(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["https://example.com/a.html"] = fakePage{
		contentType: "text/html",
		body:        `<a href="b.html">b</a>`,
		getErr:      &FetchError{Method: "GET", URL: "https://example.com/a.html", StatusCode: 500},
	}
	backend := newMemBackend("https://example.com/a.html")
	extracted := 0
	extractor := GemExtractorFunc(func(string) (any, bool) {
		extracted++
		return "gem", true
	})

	e := newTestEngine(t, backend, fetcher, Options{Pipeline: Pipeline{Extractor: extractor}})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	stats := e.Stats()
	assert.Equal(t, 1, stats.Visited)
	assert.Equal(t, 1, stats.FetchErrors)
	assert.Equal(t, 1, backend.counts["example.com"])
	assert.Zero(t, backend.calls["Enqueue"])
	assert.Empty(t, backend.gems)
	assert.Zero(t, extracted)
}

func TestEngine_SkipsWithoutCounting(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["https://example.com/logo.png"] = fakePage{contentType: "image/png"}
	fetcher.pages["https://example.com/down.html"] = fakePage{headErr: errors.New("connection refused")}
	fetcher.pages["https://example.com/feed.html"] = fakePage{contentType: "APPLICATION/XHTML+XML", body: ""}
	backend := newMemBackend(
		"not a url",
		"https://example.com/logo.png",
		"https://example.com/down.html",
		"https://example.com/missing.html",
		"https://example.com/feed.html",
	)

	e := newTestEngine(t, backend, fetcher, Options{Verbose: true})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	stats := e.Stats()
	assert.Equal(t, 1, stats.Visited)
	assert.Equal(t, 4, stats.Skipped)
	assert.Equal(t, 1, backend.counts["example.com"])
	assert.Equal(t, []string{"https://example.com/feed.html"}, fetcher.gets)
}

func TestEngine_ProcessConditionRejects(t *testing.T) {
	fetcher := newFakeFetcher().html("https://example.com/a.html", "")
	backend := newMemBackend("https://example.com/a.html")
	never := ProcessConditionFunc(func(context.Context, weburl.URL, Backend) (bool, error) {
		return false, nil
	})

	e := newTestEngine(t, backend, fetcher, Options{Pipeline: Pipeline{Condition: never}})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fetcher.heads)
	assert.Zero(t, e.Stats().Visited)
}

func TestEngine_ProcessConditionErrorIsStorageFailure(t *testing.T) {
	backend := newMemBackend("https://example.com/a.html")
	backend.errs["VisitCount"] = errors.New("db locked")
	cond := ProcessConditionFunc(func(ctx context.Context, u weburl.URL, b Backend) (bool, error) {
		n, err := b.VisitCount(ctx, u.String())
		return n == 0, err
	})

	e := newTestEngine(t, backend, newFakeFetcher(), Options{Pipeline: Pipeline{Condition: cond}})
	_, err := e.Run(context.Background())

	assert.ErrorIs(t, err, ErrStorage)
}

func TestEngine_StorageErrorAborts(t *testing.T) {
	fetcher := newFakeFetcher().html("https://example.com/a.html", "")
	backend := newMemBackend("https://example.com/a.html", "https://example.com/b.html")
	backend.errs["IncrementVisit"] = errors.New("disk full")

	e := newTestEngine(t, backend, fetcher, Options{})
	status, err := e.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "increment visit", se.Op)
	assert.Equal(t, StatusRunning, status)
	assert.Empty(t, fetcher.gets)
}

func TestEngine_FetchBatchErrorAborts(t *testing.T) {
	backend := newMemBackend()
	backend.errs["FetchBatch"] = errors.New("connection reset")

	e := newTestEngine(t, backend, newFakeFetcher(), Options{})
	_, err := e.Step(context.Background())

	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, StatusRunning, e.Status())
}

func TestEngine_QueueCapacitySkipsDiscovery(t *testing.T) {
	fetcher := newFakeFetcher().html("https://example.com/a.html", `<a href="new.html">n</a>`)
	backend := newMemBackend(
		"https://example.com/a.html",
		"https://example.com/x1.html",
		"https://example.com/x2.html",
		"https://example.com/x3.html",
	)

	e := newTestEngine(t, backend, fetcher, Options{BatchSize: 1, QueueCapacity: 2, Target: 1})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	// Three URLs were still pending after the first drop.
	assert.Zero(t, backend.calls["Enqueue"])
	assert.NotContains(t, backend.queue, "https://example.com/new.html")
}

func TestEngine_RecordsGems(t *testing.T) {
	fetcher := newFakeFetcher().
		html("https://example.com/a.html", `<span class="price">42</span>`).
		html("https://example.com/b.html", `nothing`)
	backend := newMemBackend("https://example.com/a.html", "https://example.com/b.html")
	extractor := GemExtractorFunc(func(content string) (any, bool) {
		if content == "nothing" {
			return nil, false
		}
		return map[string]string{"price": "42"}, true
	})

	e := newTestEngine(t, backend, fetcher, Options{Pipeline: Pipeline{Extractor: extractor}})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"https://example.com/a.html": map[string]string{"price": "42"}}, backend.gems)
	assert.Equal(t, 1, e.Stats().GemsRecorded)
}

func TestEngine_CustomCountKey(t *testing.T) {
	fetcher := newFakeFetcher().html("https://www.example.com/a.html", "")
	backend := newMemBackend("https://www.example.com/a.html")
	byHost := CountKeyFunc(func(u weburl.URL) string { return u.Host() })

	e := newTestEngine(t, backend, fetcher, Options{Pipeline: Pipeline{Key: byHost}})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"www.example.com": 1}, backend.counts)
}

func TestEngine_Seed(t *testing.T) {
	backend := newMemBackend()
	e := newTestEngine(t, backend, newFakeFetcher(), Options{})

	n, err := e.Seed(context.Background(), []string{"https://example.com/", "::bad", ""})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"https://example.com/"}, backend.queue)
}

func TestEngine_CancelledContext(t *testing.T) {
	backend := newMemBackend("https://example.com/a.html")
	e := newTestEngine(t, backend, newFakeFetcher(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, backend.calls["FetchBatch"])
}

func TestEngine_MiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) StepMiddleware {
		return func(next Stepper) Stepper {
			return StepperFunc(func(ctx context.Context) (Status, error) {
				order = append(order, name)
				return next.Step(ctx)
			})
		}
	}

	e := newTestEngine(t, newMemBackend(), newFakeFetcher(), Options{
		Middleware: []StepMiddleware{tag("outer"), tag("inner")},
	})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestIsHTML(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{" application/xhtml+xml", true},
		{"application/json", false},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isHTML(tt.contentType), tt.contentType)
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "target reached", StatusTargetReached.String())
	assert.Equal(t, "queue exhausted", StatusQueueExhausted.String())
	assert.False(t, StatusRunning.Halted())
	assert.True(t, StatusQueueExhausted.Halted())
}
