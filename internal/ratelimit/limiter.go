// Package ratelimit gates model invocations with a sliding window over
// invocation timestamps. A nil limiter means unbounded.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLimitExceeded is returned by non-blocking limiters when the window is full.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Policy decides what happens when the window is full.
type Policy int

const (
	// Block waits until the oldest timestamp slides out of the window.
	Block Policy = iota
	// Reject returns ErrLimitExceeded immediately.
	Reject
)

// Gate is the contract factories bind against. Both the in-process and the
// Redis-backed limiter satisfy it.
type Gate interface {
	Acquire(ctx context.Context) error
}

// Limiter allows at most maxCalls invocations within the trailing window.
// Sliding window over timestamps, not fixed buckets: only timestamps within
// the last window duration count toward the limit.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	policy   Policy
	history  []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a sliding-window limiter. maxCalls <= 0 means unbounded.
func New(maxCalls int, window time.Duration, policy Policy) *Limiter {
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		policy:   policy,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Acquire records an invocation, waiting or rejecting per policy when the
// window is full. Safe for concurrent use; the history is the only shared
// state between calls.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.maxCalls <= 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := l.now()
		l.trim(now)

		if len(l.history) < l.maxCalls {
			l.history = append(l.history, now)
			l.mu.Unlock()
			return nil
		}

		if l.policy == Reject {
			l.mu.Unlock()
			return ErrLimitExceeded
		}

		// Wait until the oldest timestamp falls out of the window, then
		// re-check: another caller may have taken the freed slot.
		wait := l.history[0].Add(l.window).Sub(now)
		l.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// trim drops timestamps older than the window. Callers hold the lock.
func (l *Limiter) trim(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.history) && !l.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.history = append(l.history[:0], l.history[i:]...)
	}
}

// Pending returns how many invocations currently count toward the limit.
func (l *Limiter) Pending() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trim(l.now())
	return len(l.history)
}
