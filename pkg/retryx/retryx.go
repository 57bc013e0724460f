// Package retryx provides a small fixed-delay retry combinator for network
// calls that fail transiently.
package retryx

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
	"time"
)

// Policy controls how Do re-runs an operation: how many total attempts,
// the fixed delay between them, and which errors are worth retrying.
type Policy struct {
	Attempts  int
	Delay     time.Duration
	Retryable func(error) bool
}

// Transport is the policy used for federation calls: five attempts spaced
// 250ms apart, retrying connection-level failures only.
var Transport = Policy{
	Attempts:  5,
	Delay:     250 * time.Millisecond,
	Retryable: IsTransient,
}

// Do runs op until it succeeds, exhausts the policy's attempts, or returns
// an error the policy does not retry. The last error comes back as-is so
// callers can still classify it.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if werr := wait(ctx, p.Delay); werr != nil {
			return werr
		}
	}
	return err
}

// wait sleeps for d or until ctx is done, whichever comes first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether err looks like a connection-level failure
// (refused, reset, timed out) rather than a protocol or caller error.
// Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
