package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage is matched by every backend failure surfaced from a run
	ErrStorage = errors.New("storage failure")
	// ErrFetch is matched by every failed HEAD or GET request
	ErrFetch = errors.New("fetch failure")
	// ErrInvalidOptions is returned by NewEngine for unusable options
	ErrInvalidOptions = errors.New("invalid engine options")
)

// StorageError wraps a backend error with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorage) true for any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// FetchError describes a failed request. StatusCode is 0 when no response
// was received.
type FetchError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetch) true for any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
