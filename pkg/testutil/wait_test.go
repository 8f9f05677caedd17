package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitFor(t *testing.T) {
	assert.NoError(t, WaitFor(50*time.Millisecond, 10*time.Millisecond, func() bool {
		return true
	}))

	var calls int
	assert.NoError(t, WaitFor(time.Second, time.Millisecond, func() bool {
		calls++
		return calls == 3
	}))
	assert.Equal(t, 3, calls)

	assert.Error(t, WaitFor(50*time.Millisecond, 10*time.Millisecond, func() bool {
		return false
	}))

	assert.Error(t, WaitFor(10*time.Millisecond, 50*time.Millisecond, func() bool {
		return true
	}))
}
