package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/errors"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	var changes []State
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(_ string, _, to State) { changes = append(changes, to) },
	})
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open breaker ran fn (err = %v)", err)
	}
	if len(changes) != 1 || changes[0] != StateOpen {
		t.Errorf("state changes = %v", changes)
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBoom })
	if cb.State() != StateOpen {
		t.Fatal("breaker should be open")
	}
	now = now.Add(2 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("store", CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(func() error { return context.Canceled })
	if cb.State() != StateClosed {
		t.Errorf("cancellation tripped the breaker")
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "search", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
	if err := WithTimeout(context.Background(), time.Second, "search", func(context.Context) error { return errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "connect", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Errorf("err = %v, attempts = %d", err, attempts)
	}
	attempts = 0
	err = Retry(context.Background(), "connect", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return errBoom
	})
	if !errors.Is(err, errBoom) || attempts != 2 {
		t.Errorf("err = %v, attempts = %d", err, attempts)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	errDenied := errors.New("password authentication failed")
	attempts := 0
	cfg := RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, errDenied) },
	}
	err := Retry(context.Background(), "connect", cfg, func() error {
		attempts++
		if attempts == 1 {
			return errBoom
		}
		return errDenied
	})
	if !errors.Is(err, errDenied) {
		t.Errorf("err = %v, want the permanent error", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}
