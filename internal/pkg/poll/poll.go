// Package poll runs fixed-interval status checks against asynchronous
// platform operations (container processing, pull-from-URL publishes).
//
// Polling is linear with a fixed attempt ceiling; there is no backoff.
// The Sleeper is injectable so tests do not wait on the wall clock.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when MaxAttempts checks ran without reaching a
// terminal state.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// CheckFunc performs one status check. Returning done=true stops polling.
// A non-nil error also stops polling and is returned to the caller as-is.
type CheckFunc func(ctx context.Context, attempt int) (done bool, err error)

// Poller calls a CheckFunc up to MaxAttempts times, Interval apart.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Sleeper     Sleeper
}

// New returns a Poller using the real clock.
func New(interval time.Duration, maxAttempts int) *Poller {
	return &Poller{Interval: interval, MaxAttempts: maxAttempts, Sleeper: ContextSleep}
}

// Run polls until check reports done, check errors, ctx is cancelled, or
// the attempt budget runs out. It returns the number of checks performed.
func (p *Poller) Run(ctx context.Context, check CheckFunc) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleeper
	if sleep == nil {
		sleep = ContextSleep
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		done, err := check(ctx, attempt)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return attempt, err
		}
	}
	return maxAttempts, ErrExhausted
}

// ContextSleep sleeps for d, returning early with ctx.Err() on cancellation.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoSleep is a Sleeper that returns immediately unless ctx is done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// IsCancelled reports whether err came from context cancellation or deadline.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
