package retryx_test

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/deepslate-launcher/deepslate-core/pkg/retryx"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	policy := retryx.Policy{Attempts: 5, Delay: time.Millisecond, Retryable: retryx.IsTransient}

	calls := 0
	err := retryx.Do(context.Background(), policy, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	t.Parallel()

	policy := retryx.Policy{Attempts: 5, Delay: time.Millisecond, Retryable: retryx.IsTransient}

	wantErr := errors.New("bad request")
	calls := 0
	err := retryx.Do(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	policy := retryx.Policy{Attempts: 3, Delay: time.Millisecond, Retryable: retryx.IsTransient}

	calls := 0
	err := retryx.Do(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return &net.OpError{Op: "dial", Err: syscall.ECONNRESET}
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
	require.True(t, retryx.IsTransient(err))
}

func TestDoRespectsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := retryx.Policy{Attempts: 5, Delay: time.Minute, Retryable: retryx.IsTransient}

	calls := 0
	err := retryx.Do(ctx, policy, func(ctx context.Context) error {
		calls++
		return &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dial refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"wrapped in url error", &url.Error{Op: "Post", URL: "https://example.com", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain error", errors.New("401 unauthorized"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, retryx.IsTransient(tt.err))
		})
	}
}
