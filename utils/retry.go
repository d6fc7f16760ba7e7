package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNetwork marks a transient, network-class failure. Errors wrapping it are
// retried by the Executor.
var ErrNetwork = errors.New("network error")

// RetryPolicy holds the parameters for the retry strategy.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy is 3 attempts, 1s initial delay, doubling, capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
	}
}

// Delay returns the wait before the given retry (1-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 1; i < retry; i++ {
		d *= p.Multiplier
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// RetryObserver receives attempt outcomes, e.g. for metrics.
type RetryObserver interface {
	ObserveAttempt(label string)
	ObserveRetry(label string)
	ObserveFailure(label string, transient bool)
}

// Executor wraps scrape operations with bounded retry and exponential back-off.
// It is the only place transient-failure policy lives.
type Executor struct {
	policy    RetryPolicy
	logger    *Logger
	retryable func(error) bool
	sleep     func(ctx context.Context, d time.Duration) error
	observer  RetryObserver
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithSleep replaces the back-off sleep. Tests pass a no-op.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *Executor) { e.sleep = fn }
}

// WithObserver attaches a RetryObserver.
func WithObserver(o RetryObserver) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

// WithRetryPredicate replaces IsNetworkError as the retry predicate.
func WithRetryPredicate(fn func(error) bool) ExecutorOption {
	return func(e *Executor) { e.retryable = fn }
}

// NewExecutor creates an Executor with the given policy.
func NewExecutor(policy RetryPolicy, logger *Logger, opts ...ExecutorOption) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	e := &Executor{
		policy:    policy,
		logger:    logger,
		retryable: IsNetworkError,
		sleep:     SleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type targetKey struct{}

// WithTarget attaches the resource an operation works on (usually a URL).
// It shows up in retry logs, errors and spans but never in metric labels,
// which stay bounded to the operation label.
func WithTarget(ctx context.Context, target string) context.Context {
	return context.WithValue(ctx, targetKey{}, target)
}

// TargetFrom returns the target set by WithTarget, or "".
func TargetFrom(ctx context.Context) string {
	t, _ := ctx.Value(targetKey{}).(string)
	return t
}

func describe(ctx context.Context, label string) string {
	if t := TargetFrom(ctx); t != "" {
		return label + " " + t
	}
	return label
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. label should be low-cardinality; put URLs in the
// context with WithTarget.
func (e *Executor) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	name := describe(ctx, label)
	ctx, span := otel.Tracer("emlak-ingest/executor").Start(ctx, label, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	if t := TargetFrom(ctx); t != "" {
		span.SetAttributes(attribute.String("target", t))
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if e.observer != nil {
			e.observer.ObserveAttempt(label)
		}
		span.SetAttributes(attribute.Int("attempt", attempt))

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !e.retryable(lastErr) {
			if e.observer != nil {
				e.observer.ObserveFailure(label, false)
			}
			span.SetStatus(codes.Error, lastErr.Error())
			return lastErr
		}

		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.policy.Delay(attempt)
		e.logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
			name, attempt, e.policy.MaxAttempts, lastErr, delay)
		if e.observer != nil {
			e.observer.ObserveRetry(label)
		}
		if err := e.sleep(ctx, delay); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if e.observer != nil {
		e.observer.ObserveFailure(label, true)
	}
	span.SetStatus(codes.Error, lastErr.Error())
	return fmt.Errorf("%s failed after %d attempts: %w", name, e.policy.MaxAttempts, lastErr)
}

// Execute is the value-returning form of Executor.Do.
func Execute[T any](ctx context.Context, e *Executor, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, label, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsNetworkError reports whether err is a transient network-class failure:
// timeouts, refused or reset connections, DNS failures, browser net::ERR_* codes.
// A bare context deadline or cancellation is not retried.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "net::ERR_")
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
