package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const retryBase = 250 * time.Millisecond

// TransientError marks a failure worth retrying (rate limits, 5xx, network).
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so WithRetry will try again.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// TransientStatus reports whether an HTTP status is worth retrying.
func TransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

// WithRetry runs fn, retrying up to retries extra times with exponential
// backoff while fn returns errors wrapped by Transient or network errors.
// The returned error is unwrapped from the retry machinery.
func WithRetry(ctx context.Context, retries uint64, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(retries, retry.WithJitter(50*time.Millisecond, retry.NewExponential(retryBase)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var transient *TransientError
		if errors.As(err, &transient) {
			return retry.RetryableError(transient.Err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return retry.RetryableError(err)
		}
		return err
	})
}
