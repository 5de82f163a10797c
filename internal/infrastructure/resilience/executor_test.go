package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BreakerEnabled: false,
	}
}

func alwaysRetry(error) Verdict {
	return Verdict{Retry: true, Record: true}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	attempts := 0
	err := executor.Execute(context.Background(), "test_op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, alwaysRetry)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteStopsOnNonRetryable(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	permanent := errors.New("permanent")
	attempts := 0
	err := executor.Execute(context.Background(), "test_op", func(context.Context) error {
		attempts++
		return permanent
	}, func(error) Verdict {
		return Verdict{Retry: false, Record: true}
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Execute() error = %v, want %v", err, permanent)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	transient := errors.New("transient")
	attempts := 0
	err := executor.Execute(context.Background(), "test_op", func(context.Context) error {
		attempts++
		return transient
	}, alwaysRetry)
	if !errors.Is(err, transient) {
		t.Fatalf("Execute() error = %v, want %v", err, transient)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestExecuteRespectsContextCancellation(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := executor.Execute(ctx, "test_op", func(context.Context) error {
		attempts++
		return nil
	}, alwaysRetry)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if attempts != 0 {
		t.Fatalf("attempts = %d, want 0", attempts)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 1
	policy.BreakerEnabled = true
	policy.BreakerMinCalls = 3
	policy.BreakerFailureRatio = 0.5
	policy.BreakerCooldown = time.Minute
	executor := NewExecutor(policy)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		if err := executor.Execute(context.Background(), "breaker_op", func(context.Context) error {
			return boom
		}, alwaysRetry); !errors.Is(err, boom) {
			t.Fatalf("Execute() error = %v, want %v", err, boom)
		}
	}

	err := executor.Execute(context.Background(), "breaker_op", func(context.Context) error {
		t.Fatal("call must not run while the circuit is open")
		return nil
	}, alwaysRetry)
	if !IsCircuitOpen(err) {
		t.Fatalf("Execute() error = %v, want open circuit", err)
	}
}

func TestBreakerIgnoresUnrecordedErrors(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 1
	policy.BreakerEnabled = true
	policy.BreakerMinCalls = 2
	policy.BreakerFailureRatio = 0.5
	executor := NewExecutor(policy)

	benign := errors.New("client error")
	for i := 0; i < 5; i++ {
		err := executor.Execute(context.Background(), "ignored_op", func(context.Context) error {
			return benign
		}, func(error) Verdict {
			return Verdict{Retry: false, Record: false}
		})
		if !errors.Is(err, benign) {
			t.Fatalf("Execute() error = %v, want %v", err, benign)
		}
	}
}

func TestBreakersAreScopedPerOperation(t *testing.T) {
	policy := fastPolicy()
	policy.MaxAttempts = 1
	policy.BreakerEnabled = true
	policy.BreakerMinCalls = 2
	policy.BreakerFailureRatio = 0.5
	policy.BreakerCooldown = time.Minute
	executor := NewExecutor(policy)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_ = executor.Execute(context.Background(), "failing_op", func(context.Context) error {
			return boom
		}, alwaysRetry)
	}
	if err := executor.Execute(context.Background(), "failing_op", func(context.Context) error {
		return nil
	}, alwaysRetry); !IsCircuitOpen(err) {
		t.Fatalf("failing_op error = %v, want open circuit", err)
	}

	if err := executor.Execute(context.Background(), "healthy_op", func(context.Context) error {
		return nil
	}, alwaysRetry); err != nil {
		t.Fatalf("healthy_op error = %v, want nil", err)
	}
}
