package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("resource not found")

// FetchError wraps a failure to retrieve listings from the source.
// Treated as transient by the scheduler's backoff policy.
type FetchError struct {
	URL    string
	Status int // HTTP status when one was received, 0 otherwise
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseFailure marks malformed upstream data. It fails the cycle for one
// watch only, never the whole loop.
type ParseFailure struct {
	URL string
	Err error
}

func (e *ParseFailure) Error() string { return fmt.Sprintf("parse %s: %v", e.URL, e.Err) }

func (e *ParseFailure) Unwrap() error { return e.Err }

// RepositoryError marks the store being unavailable; transient to the
// scheduler, the aborted pass is retried next cycle.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string { return fmt.Sprintf("repository %s: %v", e.Op, e.Err) }

func (e *RepositoryError) Unwrap() error { return e.Err }

// DeliveryError classifies a failed notification delivery attempt.
// Permanent failures (client/config errors) are not retried. RetryAfter
// carries an explicit channel hint that overrides computed backoff.
type DeliveryError struct {
	Permanent  bool
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *DeliveryError) Error() string {
	class := "transient"
	if e.Permanent {
		class = "permanent"
	}
	if e.Status != 0 {
		return fmt.Sprintf("delivery failed (%s): status %d", class, e.Status)
	}
	return fmt.Sprintf("delivery failed (%s): %v", class, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
