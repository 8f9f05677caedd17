package rate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNoLimiter(t *testing.T) {
	l := &NoLimiter{}
	for i := 0; i < 1000; i++ {
		allowed, err := l.Allow("key")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestLocalRateLimiter_PerKey(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(2))

	for _, key := range []string{"a", "b"} {
		for i := 0; i < 2; i++ {
			allowed, err := l.Allow(key)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := l.Allow(key)
		require.NoError(t, err)
		assert.False(t, allowed)
	}
}

func TestLocalRateLimiter_FractionalLimit(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(0.5))

	allowed, err := l.Allow("a")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow("a")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLocalRateLimiter_EvictsIdleKeys(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(1)).(*localRateLimiter)

	allowed, err := l.Allow("first")
	require.NoError(t, err)
	require.True(t, allowed)

	for i := 0; i < defaultMaxTrackedKeys; i++ {
		_, err := l.Allow(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, defaultMaxTrackedKeys, l.limiters.GetWeight())

	allowed, err = l.Allow("first")
	require.NoError(t, err)
	assert.True(t, allowed)
}
