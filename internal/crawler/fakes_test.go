package crawler

import (
	"context"
	"net/http"
	"sync"

	"github.com/masahif/gemcrawl/internal/weburl"
)

// memBackend is an in-memory Backend that records every call.
type memBackend struct {
	mu      sync.Mutex
	queue   []string
	counts  map[string]int
	gems    map[string]any
	fetched [][]string
	calls   map[string]int

	// errs makes the named operation fail.
	errs map[string]error
}

func newMemBackend(urls ...string) *memBackend {
	return &memBackend{
		queue:  append([]string(nil), urls...),
		counts: make(map[string]int),
		gems:   make(map[string]any),
		calls:  make(map[string]int),
		errs:   make(map[string]error),
	}
}

func (b *memBackend) record(op string) error {
	b.calls[op]++
	return b.errs[op]
}

func (b *memBackend) FetchBatch(_ context.Context, limit int) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("FetchBatch"); err != nil {
		return nil, err
	}
	n := min(limit, len(b.queue))
	batch := append([]string(nil), b.queue[:n]...)
	b.fetched = append(b.fetched, batch)
	return batch, nil
}

func (b *memBackend) DropBatch(_ context.Context, limit int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("DropBatch"); err != nil {
		return err
	}
	b.queue = b.queue[min(limit, len(b.queue)):]
	return nil
}

func (b *memBackend) PendingCount(context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("PendingCount"); err != nil {
		return 0, err
	}
	return len(b.queue), nil
}

func (b *memBackend) Enqueue(_ context.Context, urls []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("Enqueue"); err != nil {
		return err
	}
	b.queue = append(b.queue, urls...)
	return nil
}

func (b *memBackend) IncrementVisit(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("IncrementVisit"); err != nil {
		return err
	}
	b.counts[key]++
	return nil
}

func (b *memBackend) VisitCount(_ context.Context, key string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("VisitCount"); err != nil {
		return 0, err
	}
	return b.counts[key], nil
}

func (b *memBackend) RecordGem(_ context.Context, u weburl.URL, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("RecordGem"); err != nil {
		return err
	}
	b.gems[u.String()] = payload
	return nil
}

func (b *memBackend) allFetched() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var all []string
	for _, batch := range b.fetched {
		all = append(all, batch...)
	}
	return all
}

type fakePage struct {
	contentType string
	body        string
	headErr     error
	getErr      error
}

// fakeFetcher serves pages from a map. Unknown URLs fail with a 404.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]fakePage
	heads []string
	gets  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]fakePage)}
}

func (f *fakeFetcher) html(url, body string) *fakeFetcher {
	f.pages[url] = fakePage{contentType: "text/html; charset=utf-8", body: body}
	return f
}

func (f *fakeFetcher) Head(_ context.Context, rawURL string) (http.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads = append(f.heads, rawURL)

	page, ok := f.pages[rawURL]
	if !ok {
		return nil, &FetchError{Method: http.MethodHead, URL: rawURL, StatusCode: http.StatusNotFound}
	}
	if page.headErr != nil {
		return nil, page.headErr
	}
	h := http.Header{}
	h.Set("Content-Type", page.contentType)
	return h, nil
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, rawURL)

	page, ok := f.pages[rawURL]
	if !ok {
		return "", &FetchError{Method: http.MethodGet, URL: rawURL, StatusCode: http.StatusNotFound}
	}
	if page.getErr != nil {
		return "", page.getErr
	}
	return page.body, nil
}
