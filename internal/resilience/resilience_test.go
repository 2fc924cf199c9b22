package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	val, err := Do(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("overloaded"), 529)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastRetry(5), func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastRetry(2), func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(fmt.Errorf("attempt %d", calls), 503)
	})
	require.Error(t, err)
	assert.Equal(t, "attempt 2", err.Error())
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastRetry(5), func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("timeout"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 429)), true},
		{"reset", errors.New("read: connection reset by peer"), true},
		{"timeout message", errors.New("dial tcp: i/o timeout"), true},
		{"plain", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{429, 500, 503, 529} {
		assert.True(t, IsTransientStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404} {
		assert.False(t, IsTransientStatus(code), code)
	}
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var transitions []string
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		OnStateChange:    func(from, to State) { transitions = append(transitions, from.String()+">"+to.String()) },
	})
	b.now = func() time.Time { return now }

	fail := func(_ context.Context) (int, error) { return 0, errors.New("down") }
	ok := func(_ context.Context) (int, error) { return 1, nil }

	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Closed, b.State())
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Open, b.State())

	called := false
	_, err := Call(context.Background(), b, func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, Closed, b.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	fail := func(_ context.Context) (int, error) { return 0, errors.New("down") }
	_, _ = Call(context.Background(), b, fail)
	require.Equal(t, Open, b.State())

	now = now.Add(2 * time.Second)
	_, err := Call(context.Background(), b, fail)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, Open, b.State())

	_, err = Call(context.Background(), b, fail)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	fail := func(_ context.Context) (int, error) { return 0, errors.New("down") }
	ok := func(_ context.Context) (int, error) { return 0, nil }

	_, _ = Call(context.Background(), b, fail)
	_, _ = Call(context.Background(), b, ok)
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Closed, b.State())
}
