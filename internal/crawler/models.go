package crawler

import "time"

// Status is the state of an engine after a batch step
type Status int

const (
	// StatusRunning means more batches may be processed
	StatusRunning Status = iota
	// StatusTargetReached means the configured number of visits was made
	StatusTargetReached
	// StatusQueueExhausted means the backend returned an empty batch
	StatusQueueExhausted
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusTargetReached:
		return "target reached"
	case StatusQueueExhausted:
		return "queue exhausted"
	default:
		return "unknown"
	}
}

// Halted reports whether no further processing will happen
func (s Status) Halted() bool {
	return s != StatusRunning
}

// CrawlStats represents crawling statistics
type CrawlStats struct {
	Visited      int           // URLs probed as HTML and fetched
	Batches      int           // Batches taken from the backend
	Skipped      int           // URLs skipped before fetching
	FetchErrors  int           // GET failures after a successful probe
	URLsEnqueued int           // Discovered URLs handed to the backend
	GemsRecorded int           // Payloads handed to the backend
	Status       Status        // Current engine status
	StartTime    time.Time     // When the first batch started
	Duration     time.Duration // Time since StartTime
}
