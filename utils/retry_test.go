package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestExecutor(rs *recordingSleep) *Executor {
	return NewExecutor(DefaultRetryPolicy(), NewNopLogger(), WithSleep(rs.sleep))
}

func TestExecutorRetriesTimeoutThreeTimes(t *testing.T) {
	rs := &recordingSleep{}
	exec := newTestExecutor(rs)

	attempts := 0
	_, err := Execute(context.Background(), exec, "detail", func(context.Context) (string, error) {
		attempts++
		return "", &net.DNSError{Err: "i/o timeout", Name: "www.sahibinden.com", IsTimeout: true}
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rs.delays)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestExecutorDoesNotRetryNonNetworkError(t *testing.T) {
	rs := &recordingSleep{}
	exec := newTestExecutor(rs)
	parseErr := errors.New("selector .classifiedDetailTitle not found")

	attempts := 0
	_, err := Execute(context.Background(), exec, "detail", func(context.Context) (int, error) {
		attempts++
		return 0, parseErr
	})

	assert.ErrorIs(t, err, parseErr)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rs.delays)
}

func TestExecutorSucceedsAfterTransientFailure(t *testing.T) {
	exec := newTestExecutor(&recordingSleep{})

	attempts := 0
	got, err := Execute(context.Background(), exec, "search", func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", fmt.Errorf("navigate: %w", ErrNetwork)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, attempts)
}

func TestRetryPolicyDelayIsCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 8, InitialDelay: time.Second, Multiplier: 2, MaxDelay: 10 * time.Second}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{7, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.retry); got != tt.want {
			t.Errorf("Delay(%d) = %v; want %v", tt.retry, got, tt.want)
		}
	}
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped sentinel", fmt.Errorf("navigate: %w", ErrNetwork), true},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "x"}, true},
		{"browser net error", errors.New("page load error net::ERR_CONNECTION_RESET"), true},
		{"bare deadline", context.DeadlineExceeded, false},
		{"wrapped deadline", fmt.Errorf("wait .title: %w", context.DeadlineExceeded), false},
		{"cancelled", context.Canceled, false},
		{"parse", errors.New("strconv.ParseFloat: invalid syntax"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNetworkError(tt.err))
		})
	}
}

type countingObserver struct {
	attempts, retries, transient, permanent int
}

func (o *countingObserver) ObserveAttempt(string) { o.attempts++ }
func (o *countingObserver) ObserveRetry(string)   { o.retries++ }
func (o *countingObserver) ObserveFailure(_ string, transient bool) {
	if transient {
		o.transient++
	} else {
		o.permanent++
	}
}

func TestExecutorReportsToObserver(t *testing.T) {
	obs := &countingObserver{}
	exec := NewExecutor(DefaultRetryPolicy(), NewNopLogger(),
		WithSleep((&recordingSleep{}).sleep), WithObserver(obs))

	_ = exec.Do(context.Background(), "x", func(context.Context) error { return ErrNetwork })

	assert.Equal(t, 3, obs.attempts)
	assert.Equal(t, 2, obs.retries)
	assert.Equal(t, 1, obs.transient)
	assert.Equal(t, 0, obs.permanent)
}

func TestExecutorErrorNamesTarget(t *testing.T) {
	exec := newTestExecutor(&recordingSleep{})
	ctx := WithTarget(context.Background(), "https://www.emlakjet.com/ilan/42")

	err := exec.Do(ctx, "emlakjet detail", func(ctx context.Context) error {
		assert.Equal(t, "https://www.emlakjet.com/ilan/42", TargetFrom(ctx))
		return ErrNetwork
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "emlakjet detail https://www.emlakjet.com/ilan/42 failed after 3 attempts")
}
