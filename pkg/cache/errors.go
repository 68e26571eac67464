package cache

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by the cache backends and the repository transport.
var (
	// ErrNotFound marks a resource that does not exist remotely. It is final.
	ErrNotFound = errors.New("not found")

	// ErrNetwork marks transport failures: timeouts, refused connections, 5xx.
	ErrNetwork = errors.New("network error")
)

// RetryableError marks err as transient.
type RetryableError struct{ Err error }

// Retryable wraps err so that [Backoff.Do] tries again. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err, or anything it wraps, is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff is an exponential retry schedule.
type Backoff struct {
	Attempts int           // total calls, at least 1
	Delay    time.Duration // wait before the second call; doubles afterwards
}

// DefaultBackoff makes three attempts, waiting one and then two seconds.
var DefaultBackoff = Backoff{Attempts: 3, Delay: time.Second}

// Do calls fn until it succeeds, returns an error that is not retryable, or
// the attempts run out. The last error is returned. Waiting between attempts
// stops early with ctx.Err() when ctx ends.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Delay
	var lastErr error

	for i := range attempts {
		if lastErr = fn(); lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return lastErr
}

// RetryWithBackoff runs fn under [DefaultBackoff].
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Do(ctx, fn)
}
