package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict is a classifier's reading of one call failure. Retry drives the
// retry loop; Record decides whether the failure counts toward the breaker.
// Tenant mistakes and cancelled contexts should record nothing, a saturated
// backend should record everything.
type Verdict struct {
	Retry  bool
	Record bool
}

type Classifier func(err error) Verdict

// Executor runs outbound calls under one shared Policy, with breaker state
// scoped per operation name so an open Qdrant circuit never blocks the
// Ollama or NATS paths.
type Executor struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:   policy.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Execute(ctx context.Context, operation string, call func(context.Context) error, classify Classifier) error {
	if call == nil {
		return fmt.Errorf("resilience: nil call for operation %q", operation)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unnamed"
	}
	if classify == nil {
		classify = recordOnly
	}

	if !e.policy.BreakerEnabled {
		return e.run(ctx, op, call, classify)
	}
	_, err := e.breakerFor(op, classify).Execute(func() (any, error) {
		return nil, e.run(ctx, op, call, classify)
	})
	return err
}

func (e *Executor) run(ctx context.Context, op string, call func(context.Context) error, classify Classifier) error {
	wait := e.policy.InitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := call(ctx)
		if err == nil {
			return nil
		}
		if !classify(err).Retry || attempt >= e.policy.MaxAttempts {
			return err
		}

		slog.Warn("dependency_retry",
			"operation", op,
			"attempt", attempt,
			"max_attempts", e.policy.MaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		wait *= 2
		if wait > e.policy.MaxBackoff {
			wait = e.policy.MaxBackoff
		}
	}
}

func (e *Executor) breakerFor(op string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[op]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: op,
		// Single probe while half-open.
		MaxRequests: 1,
		Timeout:     e.policy.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.policy.BreakerMinCalls {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.policy.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).Record
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("breaker_state", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func recordOnly(error) Verdict {
	return Verdict{Record: true}
}
