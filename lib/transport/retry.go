package transport

import (
	"context"
	"time"

	random "github.com/mazen160/go-random"
)

type RetryPolicy struct {
	Base        time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:        time.Second,
		MaxDelay:    time.Second * 30,
		MaxAttempts: 5,
	}
}

// Delay computes the wait before the next attempt, given how many
// attempts have already failed. An explicit retryAfter from the upstream
// takes precedence over the computed backoff. Jitter of ±20% keeps
// sequential entity fetches from retrying in lockstep.
func (p RetryPolicy) Delay(failed int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}

	delay := p.Base
	for i := 1; i < failed; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}

	pct, err := random.IntRange(-20, 21)
	if err != nil {
		return delay
	}
	return delay + delay*time.Duration(pct)/100
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
