package config

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSeedURLs is returned when no seed URLs are provided
	ErrNoSeedURLs = errors.New("no seed URLs provided")
	// ErrInvalidTarget is returned when target is not greater than 0
	ErrInvalidTarget = errors.New("target must be greater than 0")
	// ErrInvalidBatchSize is returned when batch_size is not greater than 0
	ErrInvalidBatchSize = errors.New("batch_size must be greater than 0")
	// ErrInvalidQueueCapacity is returned when queue_capacity is not greater than 0
	ErrInvalidQueueCapacity = errors.New("queue_capacity must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrEmptyDatabasePath is returned when database path is empty
	ErrEmptyDatabasePath = errors.New("database_path cannot be empty")
	// ErrEmptyRedisAddr is returned when the redis backend has no address
	ErrEmptyRedisAddr = errors.New("redis.addr cannot be empty")
	// ErrUnknownBackend is returned for a backend other than sqlite or redis
	ErrUnknownBackend = errors.New("backend must be sqlite or redis")
	// ErrInvalidHeader is matched by every HeaderError
	ErrInvalidHeader = errors.New("invalid header")
)

// HeaderError reports a header not in "Key: Value" form
type HeaderError struct {
	Header string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("invalid header %q: expected \"Key: Value\"", e.Header)
}

func (e *HeaderError) Is(target error) bool {
	return target == ErrInvalidHeader
}
