// Package crawler provides the batch crawl engine.
// An Engine pulls batches of URLs from a Backend, probes and fetches them
// through a Fetcher, and feeds discovered links and extracted gems back to
// the Backend under the control of a Pipeline.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/masahif/gemcrawl/internal/parser"
	"github.com/masahif/gemcrawl/internal/weburl"
)

const (
	DefaultTarget        = 100
	DefaultBatchSize     = 10
	DefaultQueueCapacity = 1000
)

// Options configure an Engine. Zero numeric fields take their defaults.
type Options struct {
	Target        int // Visits after which the crawl halts
	BatchSize     int // URLs taken from the backend per step
	QueueCapacity int // Pending count above which discovery is skipped
	Pipeline      Pipeline
	Logger        *slog.Logger
	Verbose       bool // Log every skipped URL
	Middleware    []StepMiddleware
}

// Engine runs the batch crawl state machine. It is not safe for concurrent
// Step calls; Stats may be read from any goroutine.
type Engine struct {
	backend  Backend
	fetcher  Fetcher
	opts     Options
	pipeline Pipeline
	logger   *slog.Logger

	stats      CrawlStats
	statsMutex sync.RWMutex
}

// NewEngine creates an engine over backend and fetcher.
func NewEngine(backend Backend, fetcher Fetcher, opts Options) (*Engine, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrInvalidOptions)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is required", ErrInvalidOptions)
	}
	if opts.Target < 0 || opts.BatchSize < 0 || opts.QueueCapacity < 0 {
		return nil, fmt.Errorf("%w: target, batch size and queue capacity must not be negative", ErrInvalidOptions)
	}

	if opts.Target == 0 {
		opts.Target = DefaultTarget
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.QueueCapacity == 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		backend:  backend,
		fetcher:  fetcher,
		opts:     opts,
		pipeline: opts.Pipeline.withDefaults(),
		logger:   logger,
	}, nil
}

// Seed validates urls and enqueues the valid ones. It returns how many were
// enqueued.
func (e *Engine) Seed(ctx context.Context, urls []string) (int, error) {
	valid := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := weburl.Parse(raw)
		if err != nil {
			e.logger.Warn("Ignoring invalid seed URL", "url", raw, "error", err)
			continue
		}
		valid = append(valid, u.String())
	}
	if len(valid) == 0 {
		return 0, nil
	}
	if err := e.backend.Enqueue(ctx, valid); err != nil {
		return 0, storageErr("enqueue seeds", err)
	}
	e.logger.Info("Added seed URLs to queue", "count", len(valid))
	return len(valid), nil
}

// Run steps the engine until it halts, the context is cancelled or a
// storage error occurs.
func (e *Engine) Run(ctx context.Context) (Status, error) {
	var stepper Stepper = e
	for i := len(e.opts.Middleware) - 1; i >= 0; i-- {
		stepper = e.opts.Middleware[i](stepper)
	}

	e.logger.Info("Starting crawler",
		"target", e.opts.Target,
		"batch_size", e.opts.BatchSize,
		"queue_capacity", e.opts.QueueCapacity)

	for {
		status, err := stepper.Step(ctx)
		if err != nil {
			e.logger.Error("Crawling aborted", "error", err)
			return status, err
		}
		if status.Halted() {
			stats := e.Stats()
			e.logger.Info("Crawling completed",
				"status", status.String(),
				"visited", stats.Visited,
				"batches", stats.Batches,
				"enqueued", stats.URLsEnqueued,
				"gems", stats.GemsRecorded,
				"duration", stats.Duration)
			return status, nil
		}
	}
}

// Step processes one batch. Once halted it keeps returning the halt status
// without touching the backend.
func (e *Engine) Step(ctx context.Context) (Status, error) {
	if status := e.Status(); status.Halted() {
		return status, nil
	}
	if err := ctx.Err(); err != nil {
		return StatusRunning, err
	}
	e.markStarted()

	urls, err := e.backend.FetchBatch(ctx, e.opts.BatchSize)
	if err != nil {
		return StatusRunning, storageErr("fetch batch", err)
	}
	if len(urls) == 0 {
		e.halt(StatusQueueExhausted)
		e.debug("Queue exhausted")
		return StatusQueueExhausted, nil
	}

	if err := e.backend.DropBatch(ctx, e.opts.BatchSize); err != nil {
		return StatusRunning, storageErr("drop batch", err)
	}
	e.updateStats(func(s *CrawlStats) { s.Batches++ })

	for i, raw := range urls {
		if e.Stats().Visited >= e.opts.Target {
			e.halt(StatusTargetReached)
			// Remaining URLs were already dropped from the backend.
			e.debug("Target reached", "target", e.opts.Target, "discarded", len(urls)-i)
			return StatusTargetReached, nil
		}
		if err := ctx.Err(); err != nil {
			return StatusRunning, err
		}
		if err := e.visit(ctx, raw); err != nil {
			return StatusRunning, err
		}
	}

	return StatusRunning, nil
}

// Status returns the current engine status
func (e *Engine) Status() Status {
	e.statsMutex.RLock()
	defer e.statsMutex.RUnlock()
	return e.stats.Status
}

// Stats returns current crawling statistics
func (e *Engine) Stats() CrawlStats {
	e.statsMutex.RLock()
	defer e.statsMutex.RUnlock()

	stats := e.stats
	if !stats.StartTime.IsZero() {
		stats.Duration = time.Since(stats.StartTime)
	}
	return stats
}

// visit runs a single queued URL through the pipeline. Only storage errors
// and cancellation are returned; everything else is a skip.
func (e *Engine) visit(ctx context.Context, raw string) error {
	u, err := weburl.Parse(raw)
	if err != nil {
		e.skip(raw, "invalid url", "error", err)
		return nil
	}

	ok, err := e.pipeline.Condition.Process(ctx, u, e.backend)
	if err != nil {
		return asStorageErr("process condition", err)
	}
	if !ok {
		e.skip(raw, "rejected by process condition")
		return nil
	}

	header, err := e.fetcher.Head(ctx, u.String())
	if err != nil {
		e.skip(raw, "probe failed", "error", err)
		return nil
	}
	if !isHTML(header.Get("Content-Type")) {
		e.skip(raw, "not html", "content_type", header.Get("Content-Type"))
		return nil
	}

	if err := e.backend.IncrementVisit(ctx, e.pipeline.Key.Key(u)); err != nil {
		return storageErr("increment visit", err)
	}

	content, err := e.fetcher.Get(ctx, u.String())
	if err != nil {
		e.logger.Warn("Failed to fetch content", "url", u.String(), "error", err)
		content = ""
		e.updateStats(func(s *CrawlStats) { s.FetchErrors++ })
	}
	e.updateStats(func(s *CrawlStats) { s.Visited++ })

	pending, err := e.backend.PendingCount(ctx)
	if err != nil {
		return storageErr("pending count", err)
	}
	if pending <= e.opts.QueueCapacity {
		links := e.discover(content, u)
		if len(links) > 0 {
			if err := e.backend.Enqueue(ctx, links); err != nil {
				return storageErr("enqueue", err)
			}
			e.updateStats(func(s *CrawlStats) { s.URLsEnqueued += len(links) })
		}
	} else {
		e.debug("Queue over capacity, skipping discovery", "url", u.String(), "pending", pending)
	}

	if e.pipeline.Extractor != nil && content != "" {
		if payload, ok := e.pipeline.Extractor.Extract(content); ok {
			if err := e.backend.RecordGem(ctx, u, payload); err != nil {
				return storageErr("record gem", err)
			}
			e.updateStats(func(s *CrawlStats) { s.GemsRecorded++ })
			e.logger.Info("Recorded gem", "url", u.String())
		}
	}

	e.logger.Debug("Processed URL", "url", u.String(), "bytes", len(content))
	return nil
}

// discover returns the links in content accepted by the save filter,
// resolved against source. Links that do not parse are dropped.
func (e *Engine) discover(content string, source weburl.URL) []string {
	if content == "" {
		return nil
	}

	keep := func(candidate string) bool {
		return e.pipeline.Filter.Save(candidate, source)
	}

	resolved := parser.Discover(content, source, keep)
	links := resolved[:0]
	for _, link := range resolved {
		if _, err := weburl.Parse(link); err != nil {
			e.debug("Dropping unparseable link", "url", link, "source", source.String())
			continue
		}
		links = append(links, link)
	}
	return links
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func asStorageErr(op string, err error) error {
	if errors.Is(err, ErrStorage) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return storageErr(op, err)
}

func (e *Engine) skip(raw, reason string, args ...any) {
	e.updateStats(func(s *CrawlStats) { s.Skipped++ })
	e.debug("Skipped URL", append([]any{"url", raw, "reason", reason}, args...)...)
}

// debug logs diagnostic events at info level when verbose output is on.
func (e *Engine) debug(msg string, args ...any) {
	if e.opts.Verbose {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) halt(status Status) {
	e.updateStats(func(s *CrawlStats) { s.Status = status })
}

func (e *Engine) markStarted() {
	e.updateStats(func(s *CrawlStats) {
		if s.StartTime.IsZero() {
			s.StartTime = time.Now()
		}
	})
}

func (e *Engine) updateStats(fn func(*CrawlStats)) {
	e.statsMutex.Lock()
	defer e.statsMutex.Unlock()
	fn(&e.stats)
}
