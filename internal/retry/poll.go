package retry

import (
	"context"
	"errors"
	"time"
)

// ErrPollExhausted is returned by Poll when check never succeeds.
var ErrPollExhausted = errors.New("poll attempts exhausted")

// LinearCapped grows the delay by Step per attempt up to Cap.
type LinearCapped struct {
	Step time.Duration
	Cap  time.Duration
}

// Delay returns the wait after the given 1-based attempt.
func (l LinearCapped) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := l.Step * time.Duration(attempt)
	if l.Cap > 0 && d > l.Cap {
		return l.Cap
	}
	return d
}

// Poll calls check up to maxAttempts times, sleeping schedule.Delay(attempt)
// after each miss. It returns nil as soon as check reports true.
func Poll(ctx context.Context, maxAttempts int, schedule LinearCapped, check func() bool) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempt := 1; ; attempt++ {
		if check() {
			return nil
		}
		if attempt >= maxAttempts {
			return ErrPollExhausted
		}

		timer := time.NewTimer(schedule.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
