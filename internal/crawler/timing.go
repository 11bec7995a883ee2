package crawler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/masahif/gemcrawl/internal/weburl"
)

// Timer accumulates the durations of repeated calls.
type Timer struct {
	mu    sync.Mutex
	total time.Duration
	calls int
}

// Observe adds one call of duration d.
func (t *Timer) Observe(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += d
	t.calls++
}

// Total returns the accumulated duration.
func (t *Timer) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Calls returns the number of observed calls.
func (t *Timer) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *Timer) since(start time.Time) {
	t.Observe(time.Since(start))
}

// TimedStep returns middleware that records the duration of every step in t.
func TimedStep(t *Timer) StepMiddleware {
	return func(next Stepper) Stepper {
		return StepperFunc(func(ctx context.Context) (Status, error) {
			defer t.since(time.Now())
			return next.Step(ctx)
		})
	}
}

// TimedBackend records the time spent in every backend call.
type TimedBackend struct {
	Backend
	Timer *Timer
}

// NewTimedBackend wraps b with a fresh timer.
func NewTimedBackend(b Backend) *TimedBackend {
	return &TimedBackend{Backend: b, Timer: &Timer{}}
}

func (b *TimedBackend) FetchBatch(ctx context.Context, limit int) ([]string, error) {
	defer b.Timer.since(time.Now())
	return b.Backend.FetchBatch(ctx, limit)
}

func (b *TimedBackend) DropBatch(ctx context.Context, limit int) error {
	defer b.Timer.since(time.Now())
	return b.Backend.DropBatch(ctx, limit)
}

func (b *TimedBackend) PendingCount(ctx context.Context) (int, error) {
	defer b.Timer.since(time.Now())
	return b.Backend.PendingCount(ctx)
}

func (b *TimedBackend) Enqueue(ctx context.Context, urls []string) error {
	defer b.Timer.since(time.Now())
	return b.Backend.Enqueue(ctx, urls)
}

func (b *TimedBackend) IncrementVisit(ctx context.Context, key string) error {
	defer b.Timer.since(time.Now())
	return b.Backend.IncrementVisit(ctx, key)
}

func (b *TimedBackend) VisitCount(ctx context.Context, key string) (int, error) {
	defer b.Timer.since(time.Now())
	return b.Backend.VisitCount(ctx, key)
}

func (b *TimedBackend) RecordGem(ctx context.Context, u weburl.URL, payload any) error {
	defer b.Timer.since(time.Now())
	return b.Backend.RecordGem(ctx, u, payload)
}

// TimedFetcher records the time spent loading content.
type TimedFetcher struct {
	Fetcher
	Timer *Timer
}

// NewTimedFetcher wraps f with a fresh timer.
func NewTimedFetcher(f Fetcher) *TimedFetcher {
	return &TimedFetcher{Fetcher: f, Timer: &Timer{}}
}

func (f *TimedFetcher) Head(ctx context.Context, rawURL string) (http.Header, error) {
	defer f.Timer.since(time.Now())
	return f.Fetcher.Head(ctx, rawURL)
}

func (f *TimedFetcher) Get(ctx context.Context, rawURL string) (string, error) {
	defer f.Timer.since(time.Now())
	return f.Fetcher.Get(ctx, rawURL)
}
