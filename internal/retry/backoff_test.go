package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"commrouter/internal/models"

	"github.com/stretchr/testify/assert"
)

func fastConfig(attempts int) BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		MaxAttempts:  attempts,
	}
}

func TestBackoff_RetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := NewBackoff(fastConfig(3)).Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoff_RetryReturnsLastError(t *testing.T) {
	calls := 0
	err := NewBackoff(fastConfig(2)).Retry(context.Background(), func() error {
		calls++
		return errors.New("still failing")
	})

	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 2, calls)
}

func TestBackoff_RetryWithPredicateStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("UNIQUE constraint failed")
	calls := 0
	err := NewBackoff(fastConfig(5)).RetryWithPredicate(context.Background(), func() error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := NewBackoff(fastConfig(3)).Retry(ctx, func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestBackoff_DelayIsCapped(t *testing.T) {
	b := NewBackoff(BackoffConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2, MaxAttempts: 5})

	assert.Equal(t, 100*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 300*time.Millisecond, b.GetNextDelay(4))
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 1, MaxAttempts: 1, Jitter: true}
	b := NewBackoff(cfg)
	for i := 0; i < 50; i++ {
		d := b.GetNextDelay(1)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(models.RetryConfig{InitialBackoffMs: 250, MaxBackoffMs: 2000, MaxAttempts: 7})
	assert.Equal(t, 250*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.MaxDelay)
	assert.Equal(t, 7, cfg.MaxAttempts)

	defaults := FromConfig(models.RetryConfig{})
	assert.Equal(t, DefaultBackoffConfig().MaxAttempts, defaults.MaxAttempts)
}
