package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	lastErr := errors.New("still broken")
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func() (int, error) {
		calls++
		return 0, lastErr
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, lastErr)
}

func TestDoNonRetryableShortCircuits(t *testing.T) {
	fatal := errors.New("bad credentials")
	calls := 0
	_, err := Do(context.Background(), Policy{
		MaxAttempts:  5,
		BaseDelay:    time.Millisecond,
		NonRetryable: func(err error) bool { return errors.Is(err, fatal) },
	}, func() (int, error) {
		calls++
		return 0, fatal
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, fatal)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond}, func() (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestDoSingleAttemptFloor(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 0, BaseDelay: time.Millisecond}, func() (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
