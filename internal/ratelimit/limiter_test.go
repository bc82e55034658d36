package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when the limiter sleeps, so window-slide tests
// run instantly.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	lim *Limiter
}

func newFakeClock(lim *Limiter) *fakeClock {
	fc := &fakeClock{t: time.Unix(1000, 0), lim: lim}
	lim.now = fc.now
	lim.sleep = fc.sleep
	return fc
}

func (fc *fakeClock) now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.t
}

func (fc *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	fc.mu.Lock()
	fc.t = fc.t.Add(d)
	fc.mu.Unlock()
	return ctx.Err()
}

func (fc *fakeClock) advance(d time.Duration) {
	fc.mu.Lock()
	fc.t = fc.t.Add(d)
	fc.mu.Unlock()
}

func TestRejectPolicyDeniesOverLimit(t *testing.T) {
	lim := New(3, time.Minute, Reject)
	newFakeClock(lim)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := lim.Acquire(ctx); err != nil {
			t.Fatalf("call %d: unexpected err %v", i, err)
		}
	}
	if err := lim.Acquire(ctx); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("call 4: got %v, want ErrLimitExceeded", err)
	}
}

func TestWindowSlideFreesSlot(t *testing.T) {
	lim := New(2, time.Minute, Reject)
	fc := newFakeClock(lim)

	ctx := context.Background()
	if err := lim.Acquire(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	fc.advance(30 * time.Second)
	if err := lim.Acquire(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := lim.Acquire(ctx); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	// First timestamp leaves the window after 31 more seconds.
	fc.advance(31 * time.Second)
	if err := lim.Acquire(ctx); err != nil {
		t.Fatalf("expected slot after window slide, got %v", err)
	}
	if got := lim.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}
}

func TestBlockPolicyWaitsForSlot(t *testing.T) {
	lim := New(1, time.Minute, Block)
	newFakeClock(lim)

	ctx := context.Background()
	if err := lim.Acquire(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	// Second call blocks; the fake sleep advances the clock past the window.
	if err := lim.Acquire(ctx); err != nil {
		t.Fatalf("blocking acquire: %v", err)
	}
}

func TestBlockPolicyHonorsContextCancel(t *testing.T) {
	lim := New(1, time.Minute, Block)
	newFakeClock(lim)
	// Cancelled context surfaces from the sleep.
	ctx, cancel := context.WithCancel(context.Background())
	if err := lim.Acquire(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	cancel()
	if err := lim.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestNilAndUnboundedLimiters(t *testing.T) {
	var lim *Limiter
	if err := lim.Acquire(context.Background()); err != nil {
		t.Fatalf("nil limiter: %v", err)
	}
	unbounded := New(0, time.Minute, Reject)
	for i := 0; i < 100; i++ {
		if err := unbounded.Acquire(context.Background()); err != nil {
			t.Fatalf("unbounded limiter: %v", err)
		}
	}
}

func TestConcurrentAcquiresNeverExceedLimit(t *testing.T) {
	lim := New(5, time.Minute, Reject)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lim.Acquire(context.Background()); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 5 {
		t.Fatalf("allowed = %d, want exactly 5", allowed)
	}
}

func TestTokenBudget(t *testing.T) {
	b := NewTokenBudget(10, time.Minute)
	b.now = func() time.Time { return time.Unix(1000, 0) }

	ctx := context.Background()
	// "hello world" is a couple of tokens; spending it repeatedly must
	// eventually trip the 10-token budget.
	tripped := false
	for i := 0; i < 20; i++ {
		if err := b.Spend(ctx, "hello world", "gpt-4o"); err != nil {
			if !errors.Is(err, ErrLimitExceeded) {
				t.Fatalf("unexpected err: %v", err)
			}
			tripped = true
			break
		}
	}
	if !tripped {
		t.Fatal("token budget never tripped")
	}
}

func TestTokenBudgetUnbounded(t *testing.T) {
	var b *TokenBudget
	if err := b.Spend(context.Background(), "text", "gpt-4o"); err != nil {
		t.Fatalf("nil budget: %v", err)
	}
	if err := NewTokenBudget(0, time.Minute).Spend(context.Background(), "text", "gpt-4o"); err != nil {
		t.Fatalf("zero budget: %v", err)
	}
}

func TestCountTokensFallback(t *testing.T) {
	if got := CountTokens("hello world", "unknown-model"); got == 0 {
		t.Fatalf("expected token count > 0")
	}
	if got := CountTokens("", "gpt-4o"); got != 0 {
		t.Fatalf("expected 0 for empty text, got %d", got)
	}
}
