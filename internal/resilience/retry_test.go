package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), 3, time.Millisecond, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("boom")
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("got %v, %v", v, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	want := errors.New("still down")
	calls := 0
	_, err := Retry(context.Background(), 2, time.Millisecond, func() (string, error) {
		calls++
		return "", want
	})
	if !errors.Is(err, want) || calls != 2 {
		t.Fatalf("got err=%v calls=%d", err, calls)
	}
}

func TestRetrySingleAttemptWhenZero(t *testing.T) {
	calls := 0
	_, _ = Retry(context.Background(), 0, time.Millisecond, func() (int, error) {
		calls++
		return 0, errors.New("x")
	})
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, 5, time.Second, func() (int, error) {
		return 0, errors.New("x")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
