package chain_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/satchel/internal/chain"
)

func TestRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rl := chain.NewRateLimiter(1, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("rpc"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("rpc"), "burst exhausted")
}

func TestRateLimiterSeparateEndpoints(t *testing.T) {
	t.Parallel()

	rl := chain.NewRateLimiter(1, 1)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestRateLimiterUnlimited(t *testing.T) {
	t.Parallel()

	rl := chain.NewRateLimiter(0, 0)
	for i := 0; i < 1000; i++ {
		require.True(t, rl.Allow("rpc"))
	}
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	rl := chain.NewRateLimiter(0.001, 1)
	require.NoError(t, rl.Wait(context.Background(), "slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, rl.Wait(ctx, "slow"))

	var nilLimiter *chain.RateLimiter
	require.NoError(t, nilLimiter.Wait(context.Background(), "x"))
}

func TestRateLimiterConcurrent(t *testing.T) {
	t.Parallel()

	rl := chain.NewRateLimiter(1000, 1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rl.Allow("shared")
		}()
	}
	wg.Wait()
}
