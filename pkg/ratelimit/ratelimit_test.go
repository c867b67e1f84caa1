package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_Burst(t *testing.T) {
	tb := NewTokenBucket(3, 1)
	now := time.Unix(1700000000, 0)
	tb.now = func() time.Time { return now }
	tb.lastRefill = now

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(1500 * time.Millisecond)
	assert.Equal(t, 1, tb.Remaining())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	// refill never exceeds capacity
	now = now.Add(time.Hour)
	assert.Equal(t, 3, tb.Remaining())
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 0.001)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucket_WaitBlocksUntilRefill(t *testing.T) {
	tb := NewTokenBucket(1, 50)
	require.True(t, tb.Allow())

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestPerSecond_Disabled(t *testing.T) {
	tb := PerSecond(0)
	assert.Nil(t, tb)
	assert.True(t, tb.Allow())
	assert.NoError(t, tb.Wait(context.Background()))

	var rl RateLimiter = PerSecond(2.5)
	assert.NotNil(t, rl)
}
