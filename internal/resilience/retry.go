package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/smartcity/saferoute/internal/telemetry"
)

// Retry executes fn with exponential backoff (base delay) + full jitter.
// delay acts as initial backoff; grows x2 per attempt, capped at 60s.
// Jitter: random duration in [0, currentDelay].
func Retry[T any](ctx context.Context, attempts int, delay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		attempts = 1
	}
	m := telemetry.Metrics()
	cur := delay
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn()
		m.RetryAttempts.Add(ctx, 1)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if cur > 60*time.Second {
			cur = 60 * time.Second
		}
		sleep := time.Duration(rand.Int63n(int64(cur) + 1))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
		cur *= 2
	}
	return zero, lastErr
}
