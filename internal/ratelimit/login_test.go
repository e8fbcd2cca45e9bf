package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimiter(t *testing.T, maxAttempts int) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLoginLimiter(client, maxAttempts, time.Minute), mr
}

func TestCheckPassesUnderLimit(t *testing.T) {
	limiter, _ := testLimiter(t, 3)
	ctx := context.Background()

	require.NoError(t, limiter.Check(ctx, "alice@example.com", "10.0.0.1"))
	require.NoError(t, limiter.RecordFailure(ctx, "alice@example.com", "10.0.0.1"))
	require.NoError(t, limiter.RecordFailure(ctx, "alice@example.com", "10.0.0.1"))
	require.NoError(t, limiter.Check(ctx, "alice@example.com", "10.0.0.1"))
}

func TestCheckBlocksAtLimit(t *testing.T) {
	limiter, _ := testLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = limiter.RecordFailure(ctx, "alice@example.com", "10.0.0.1")
	}
	assert.ErrorIs(t, limiter.Check(ctx, "alice@example.com", "10.0.0.1"), ErrRateLimited)

	// A different email from the same IP is blocked by the IP counter.
	assert.ErrorIs(t, limiter.Check(ctx, "bob@example.com", "10.0.0.1"), ErrRateLimited)

	// Same email from a fresh IP is still blocked by the email counter.
	assert.ErrorIs(t, limiter.Check(ctx, "alice@example.com", "10.0.0.2"), ErrRateLimited)
}

func TestRecordFailureSignalsOverflow(t *testing.T) {
	limiter, _ := testLimiter(t, 2)
	ctx := context.Background()

	require.NoError(t, limiter.RecordFailure(ctx, "alice@example.com", ""))
	require.NoError(t, limiter.RecordFailure(ctx, "alice@example.com", ""))
	assert.ErrorIs(t, limiter.RecordFailure(ctx, "alice@example.com", ""), ErrRateLimited)
}

func TestResetClearsEmailCounter(t *testing.T) {
	limiter, _ := testLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = limiter.RecordFailure(ctx, "alice@example.com", "")
	}
	require.ErrorIs(t, limiter.Check(ctx, "alice@example.com", ""), ErrRateLimited)

	require.NoError(t, limiter.Reset(ctx, "alice@example.com"))
	assert.NoError(t, limiter.Check(ctx, "alice@example.com", ""))
}

func TestWindowExpires(t *testing.T) {
	limiter, mr := testLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = limiter.RecordFailure(ctx, "alice@example.com", "10.0.0.1")
	}
	require.ErrorIs(t, limiter.Check(ctx, "alice@example.com", "10.0.0.1"), ErrRateLimited)

	mr.FastForward(2 * time.Minute)
	assert.NoError(t, limiter.Check(ctx, "alice@example.com", "10.0.0.1"))
}

func TestNilLimiterIsNoOp(t *testing.T) {
	var limiter *LoginLimiter
	ctx := context.Background()

	assert.NoError(t, limiter.Check(ctx, "alice@example.com", "10.0.0.1"))
	assert.NoError(t, limiter.RecordFailure(ctx, "alice@example.com", "10.0.0.1"))
	assert.NoError(t, limiter.Reset(ctx, "alice@example.com"))
}
