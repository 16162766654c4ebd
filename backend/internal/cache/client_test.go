package cache

import (
	"context"
	"errors"
	"net"
	"testing"

	redis "github.com/redis/go-redis/v9"
)

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "connection refused" }
func (fakeNetErr) Timeout() bool   { return false }
func (fakeNetErr) Temporary() bool { return true }

var _ net.Error = fakeNetErr{}

func TestWithRetryConnectivityError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		return fakeNetErr{}
	})
	if err == nil {
		t.Fatal("expected terminal error after exhausting retries")
	}
	if calls != MaxRetries {
		t.Errorf("calls = %d, want %d", calls, MaxRetries)
	}
}

func TestWithRetryRecoversMidway(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		if calls < 2 {
			return fakeNetErr{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWithRetryNonConnectivityImmediate(t *testing.T) {
	opErr := errors.New("ERR wrong number of arguments")
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		return opErr
	})
	if !errors.Is(err, opErr) {
		t.Fatalf("error = %v, want %v", err, opErr)
	}
	if calls != 1 {
		t.Errorf("non-connectivity error retried %d times, want 1 call", calls)
	}
}

func TestWithRetryNilIsNotRetried(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		return redis.Nil
	})
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("error = %v, want redis.Nil", err)
	}
	if calls != 1 {
		t.Errorf("cache miss retried %d times, want 1 call", calls)
	}
}

func TestWithRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, "test", func() error {
		return fakeNetErr{}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestIsConnErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"miss", redis.Nil, false},
		{"net", fakeNetErr{}, true},
		{"closed", redis.ErrClosed, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"command", errors.New("ERR unknown command"), false},
	}
	for _, tc := range cases {
		if got := isConnErr(tc.err); got != tc.want {
			t.Errorf("isConnErr(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
