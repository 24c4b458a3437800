package relay

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound marks a source item that no longer resolves
	// (deleted or inaccessible). Never fatal.
	ErrNotFound = errors.New("item not found")
	// ErrForbidden marks an operation the account is not allowed to perform.
	ErrForbidden = errors.New("operation forbidden")
	// ErrPayloadTooLarge marks a send rejected for exceeding the platform's
	// size limit. Senders with a reduced-payload fallback should retry on it.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Throttled wraps err with the remote-imposed cooldown duration.
//
// Clients map the platform's flood-control response to this so the
// dispatcher can suspend for retryAfter plus a safety margin.
func Throttled(err error, retryAfter time.Duration) error {
	if err == nil {
		return nil
	}
	if retryAfter < 0 {
		retryAfter = 0
	}
	return throttledError{err: err, after: retryAfter}
}

// ThrottledError is implemented by errors that carry an explicit cooldown.
type ThrottledError interface {
	error
	RetryAfter() time.Duration
}

type throttledError struct {
	err   error
	after time.Duration
}

func (e throttledError) Error() string             { return fmt.Sprintf("throttled(%s): %v", e.after, e.err) }
func (e throttledError) Unwrap() error             { return e.err }
func (e throttledError) RetryAfter() time.Duration { return e.after }

// AsThrottled extracts the cooldown hint from err, if any.
func AsThrottled(err error) (time.Duration, bool) {
	var te ThrottledError
	if err != nil && errors.As(err, &te) {
		return te.RetryAfter(), true
	}
	return 0, false
}
