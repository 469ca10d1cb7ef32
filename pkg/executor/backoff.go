package executor

import (
	"context"
	"math"
	"time"
)

const defaultMaxBackoff = time.Minute

// Backoff doubles the wait after every failed attempt, capped at MaxDuration.
type Backoff struct {
	BaseDuration time.Duration
	MaxDuration  time.Duration
	RetryCount   int
}

func (b *Backoff) Duration() time.Duration {
	d := b.BaseDuration * time.Duration(math.Pow(2, float64(b.RetryCount)))

	limit := b.MaxDuration
	if limit <= 0 {
		limit = defaultMaxBackoff
	}
	if d > limit || d <= 0 {
		return limit
	}
	return d
}

func (b *Backoff) Increase() {
	b.RetryCount++
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
