package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrPollExhausted is returned by Poll when the condition never held within
// the policy's attempt budget.
var ErrPollExhausted = eris.New("resilience: poll attempts exhausted")

// PollPolicy is a bounded fixed-interval polling budget.
type PollPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// Budget is the longest a Poll under p can wait, excluding check time.
func (p PollPolicy) Budget() time.Duration {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(p.MaxAttempts-1) * p.Interval
}

// Poll calls check up to p.MaxAttempts times, sleeping p.Interval on clock
// between attempts. It returns the 1-based attempt on which check reported
// done. A check error aborts polling and is returned as is. When attempts run
// out Poll returns ErrPollExhausted.
func Poll(ctx context.Context, clock Clock, p PollPolicy, check func(ctx context.Context) (bool, error)) (int, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
		if attempt == attempts {
			break
		}
		if err := clock.Sleep(ctx, p.Interval); err != nil {
			return attempt, err
		}
	}
	return attempts, ErrPollExhausted
}
