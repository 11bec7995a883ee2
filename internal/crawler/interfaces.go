package crawler

import (
	"context"
	"net/http"

	"github.com/masahif/gemcrawl/internal/weburl"
)

// Backend is the crawler's interface to storage: a queue of pending URLs,
// visit counters per location and a sink for gems.
//
// Implementations are not required to make FetchBatch and DropBatch atomic,
// and Enqueue may introduce duplicates.
type Backend interface {
	// FetchBatch returns up to limit of the oldest pending URLs without
	// removing them. An empty result means the queue is exhausted.
	FetchBatch(ctx context.Context, limit int) ([]string, error)

	// DropBatch removes up to limit of the oldest pending URLs.
	DropBatch(ctx context.Context, limit int) error

	// PendingCount returns the number of pending URLs.
	PendingCount(ctx context.Context) (int, error)

	// Enqueue appends urls to the tail of the queue.
	Enqueue(ctx context.Context, urls []string) error

	// IncrementVisit adds one visit to the location key.
	IncrementVisit(ctx context.Context, key string) error

	// VisitCount returns the visits recorded for key, 0 if none.
	VisitCount(ctx context.Context, key string) (int, error)

	// RecordGem stores the payload found at u.
	RecordGem(ctx context.Context, u weburl.URL, payload any) error
}

// Fetcher performs the network requests for a crawl. Redirects are followed
// transparently; any failure, including a non-2xx status, is an error.
type Fetcher interface {
	// Head returns the response headers of a HEAD request to rawURL.
	Head(ctx context.Context, rawURL string) (http.Header, error)

	// Get returns the body of a GET request to rawURL.
	Get(ctx context.Context, rawURL string) (string, error)
}

// Stepper runs one batch of a crawl.
type Stepper interface {
	Step(ctx context.Context) (Status, error)
}

// StepperFunc adapts a function to the Stepper interface.
type StepperFunc func(ctx context.Context) (Status, error)

// Step calls f(ctx).
func (f StepperFunc) Step(ctx context.Context) (Status, error) {
	return f(ctx)
}

// StepMiddleware wraps a Stepper, e.g. to measure or log each batch.
type StepMiddleware func(next Stepper) Stepper
