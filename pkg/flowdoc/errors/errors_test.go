package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  2,
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryTransient, "transient"},
		{CategoryPermanent, "permanent"},
		{CategoryValidation, "validation"},
		{CategorySessionInvalid, "session_invalid"},
		{Category(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.String())
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryPermanent},
		{"HTTP 429", &HTTPError{StatusCode: 429}, CategoryTransient},
		{"HTTP 408", &HTTPError{StatusCode: 408}, CategoryTransient},
		{"HTTP 502", &HTTPError{StatusCode: 502}, CategoryTransient},
		{"HTTP 401", &HTTPError{StatusCode: 401}, CategoryPermanent},
		{"HTTP 404", &HTTPError{StatusCode: 404}, CategoryPermanent},
		{"socket dropped", &TransportError{Op: "read", Err: errors.New("eof")}, CategoryTransient},
		{"session invalid", &TransportError{Op: "poll", Code: CodeSessionInvalid}, CategorySessionInvalid},
		{"validation", &ValidationError{Field: "url", Message: "empty"}, CategoryValidation},
		{"timeout", &TimeoutError{Operation: "save", Duration: time.Second}, CategoryTransient},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), CategoryTransient},
		{"canceled", context.Canceled, CategoryPermanent},
		{"categorized", Transient(errors.New("x"), "save"), CategoryTransient},
		{"connection refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, CategoryTransient},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), CategoryTransient},
		{"truncated body", fmt.Errorf("decode: %w", io.ErrUnexpectedEOF), CategoryTransient},
		{"unknown", errors.New("boom"), CategoryPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.err))
		})
	}
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsRetryable(&HTTPError{StatusCode: 503}))
	assert.False(t, IsRetryable(&HTTPError{StatusCode: 400}))
	assert.True(t, IsValidation(&ValidationError{Message: "required"}))
	assert.True(t, IsSessionInvalid(fmt.Errorf("poll: %w", &TransportError{Code: 3000})))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "HTTP 500 from GET https://x.io: boom",
		(&HTTPError{StatusCode: 500, Method: "GET", Endpoint: "https://x.io", Message: "boom"}).Error())
	assert.Equal(t, "HTTP 404: missing", (&HTTPError{StatusCode: 404, Message: "missing"}).Error())
	assert.Equal(t, "validation error on shape1.p1.value: required",
		(&ValidationError{ShapeID: "shape1", ParamID: "p1", Field: "value", Message: "required"}).Error())
	assert.Equal(t, "validation error: bad", (&ValidationError{Message: "bad"}).Error())
	assert.Equal(t, "collab poll (code 3000): invalid",
		(&TransportError{Op: "poll", Code: 3000, Err: errors.New("invalid")}).Error())

	err := NewCategorized(errors.New("failed"), CategoryTransient, "save")
	assert.Equal(t, "save: failed (category: transient, attempts: 0)", err.Error())
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("eof")
	err := &TransportError{Op: "read", Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestWithRetry(t *testing.T) {
	t.Run("succeeds first attempt", func(t *testing.T) {
		res := WithRetry(fastRetry(3), func() (string, error) { return "ok", nil })
		require.NoError(t, res.Err)
		assert.Equal(t, "ok", res.Value)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("retries transient then succeeds", func(t *testing.T) {
		calls := 0
		res := WithRetry(fastRetry(3), func() (int, error) {
			calls++
			if calls < 3 {
				return 0, &HTTPError{StatusCode: 503}
			}
			return 42, nil
		})
		require.NoError(t, res.Err)
		assert.Equal(t, 42, res.Value)
		assert.Equal(t, 3, res.Attempts)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		res := WithRetry(fastRetry(5), func() (int, error) {
			calls++
			return 0, &HTTPError{StatusCode: 401}
		})
		require.Error(t, res.Err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, CategoryPermanent, Categorize(res.Err))
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		var retried []int
		cfg := NewRetryConfig(fastRetry(3), WithOnRetry(func(n int, _ error, _ time.Duration) {
			retried = append(retried, n)
		}))
		res := WithRetry(cfg, func() (int, error) { return 0, &TimeoutError{Operation: "x"} })

		var catErr *CategorizedError
		require.ErrorAs(t, res.Err, &catErr)
		assert.Equal(t, "max retries exceeded", catErr.Context)
		assert.Equal(t, 3, res.Attempts)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("custom retryable func", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(fastRetry(2), WithRetryableFunc(func(error) bool { return true }))
		res := WithRetry(cfg, func() (int, error) {
			calls++
			return 0, errors.New("anything")
		})
		require.Error(t, res.Err)
		assert.Equal(t, 2, calls)
	})
}

func TestWithRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := WithRetryContext(ctx, fastRetry(3), func(context.Context) (int, error) {
		t.Fatal("fn must not run")
		return 0, nil
	})
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 0, res.Attempts)
}

func TestUniform(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := Uniform(3*time.Second, 13*time.Second)
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 13*time.Second)
	}
	assert.Equal(t, time.Second, Uniform(time.Second, time.Second))
}

func TestJittered(t *testing.T) {
	assert.Equal(t, time.Second, Jittered(time.Second, 0))
	for i := 0; i < 50; i++ {
		d := Jittered(time.Second, 0.5)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestNewRetryConfig(t *testing.T) {
	cfg := NewRetryConfig(DefaultRetry, WithMaxAttempts(7), WithJitter(0), WithMaxBackoff(time.Second), WithInitialBackoff(time.Millisecond))
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 0.0, cfg.Jitter)
	assert.Equal(t, time.Second, cfg.MaxBackoff)
	assert.Equal(t, time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 3, DefaultRetry.MaxAttempts, "base must not change")
}
