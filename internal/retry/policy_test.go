package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newPolicy(rec Recoverer) *Policy {
	return &Policy{
		MaxAttempts: 2,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		AuthDelay:   3 * time.Second,
		Recoverer:   rec,
	}
}

// countingRecoverer records invocations and signals each one.
type countingRecoverer struct {
	mu    sync.Mutex
	n     int
	fired chan struct{}
}

func (r *countingRecoverer) Recover(ctx context.Context) {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *countingRecoverer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func TestShouldRetry_NonAuthBounded(t *testing.T) {
	p := newPolicy(nil)
	err := errors.New("connection reset")

	if !p.ShouldRetry(1, err) || !p.ShouldRetry(2, err) {
		t.Fatalf("first two failures should be retryable")
	}
	if p.ShouldRetry(3, err) {
		t.Fatalf("third failure must exhaust retries")
	}
}

func TestShouldRetry_AuthSingleRecovery(t *testing.T) {
	rec := &countingRecoverer{fired: make(chan struct{}, 2)}
	p := newPolicy(rec)
	authErr := Auth(errors.New("jwt expired"))

	if !p.ShouldRetry(1, authErr) {
		t.Fatalf("first auth failure should allow one retry")
	}
	select {
	case <-rec.fired:
	case <-time.After(time.Second):
		t.Fatalf("recoverer was not invoked")
	}
	if p.ShouldRetry(2, authErr) {
		t.Fatalf("auth failures get at most one retry")
	}
	if got := rec.count(); got != 1 {
		t.Fatalf("recoverer invoked %d times; want exactly 1", got)
	}
}

func TestShouldRetry_CancellationNotCounted(t *testing.T) {
	p := newPolicy(nil)
	if p.ShouldRetry(1, context.Canceled) {
		t.Fatalf("cancellation must not be retried")
	}
	if p.ShouldRetry(1, fmt.Errorf("fetch: %w", context.DeadlineExceeded)) {
		t.Fatalf("wrapped deadline must not be retried")
	}
	if p.ShouldRetry(1, nil) {
		t.Fatalf("nil error must not be retried")
	}
}

func TestShouldRetry_Permanent(t *testing.T) {
	p := newPolicy(nil)
	if p.ShouldRetry(1, Permanent(errors.New("document not found"))) {
		t.Fatalf("permanent failures must not be retried")
	}
}

func TestRetryDelay_AuthLongerThanNetwork(t *testing.T) {
	p := newPolicy(nil)
	authErr := Auth(errors.New("expired"))
	netErr := errors.New("timeout")

	if got, want := p.RetryDelay(1, authErr), p.AuthDelay; got != want {
		t.Fatalf("auth delay = %v; want %v", got, want)
	}
	if p.RetryDelay(1, authErr) <= p.RetryDelay(1, netErr) {
		t.Fatalf("auth retry must wait longer than an equivalent non-auth retry")
	}
}

func TestRetryDelay_ExponentialCapped(t *testing.T) {
	p := newPolicy(nil)
	err := errors.New("boom")

	if got := p.RetryDelay(1, err); got != 100*time.Millisecond {
		t.Errorf("attempt 1 delay = %v; want 100ms", got)
	}
	if got := p.RetryDelay(2, err); got != 200*time.Millisecond {
		t.Errorf("attempt 2 delay = %v; want 200ms", got)
	}
	if got := p.RetryDelay(10, err); got != p.MaxDelay {
		t.Errorf("attempt 10 delay = %v; want capped at %v", got, p.MaxDelay)
	}
	if got := p.RetryDelay(0, err); got != 100*time.Millisecond {
		t.Errorf("attempt 0 coerced delay = %v; want 100ms", got)
	}
}

func TestConcurrentAuthFailures_OneRecovery(t *testing.T) {
	rec := &countingRecoverer{fired: make(chan struct{}, 8)}
	// Block the recoverer so overlapping failures see it in flight.
	gate := make(chan struct{})
	blocking := RecoverFunc(func(ctx context.Context) {
		rec.Recover(ctx)
		<-gate
	})
	p := newPolicy(blocking)
	authErr := Auth(errors.New("expired"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.ShouldRetry(1, authErr)
		}()
	}
	wg.Wait()
	<-rec.fired
	close(gate)

	// Give stray goroutines a moment, then assert a single run happened.
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Fatalf("recoverer invoked %d times; want 1", got)
	}
}

func TestWrapNil(t *testing.T) {
	if Auth(nil) != nil || Permanent(nil) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
}

func TestClassifiers(t *testing.T) {
	base := errors.New("x")
	if !IsAuth(fmt.Errorf("outer: %w", Auth(base))) {
		t.Fatalf("IsAuth should see through wrapping")
	}
	if IsAuth(base) || IsPermanent(base) {
		t.Fatalf("plain errors must not classify")
	}
	if !IsPermanent(Permanent(base)) {
		t.Fatalf("IsPermanent(Permanent(err)) = false")
	}
}
