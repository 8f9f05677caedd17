package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-timelock-server/pkg/retry/backoff"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(d time.Duration) {
	s.delays = append(s.delays, d)
}

func withRecordingSleeper(t *testing.T) *recordingSleeper {
	recorder := &recordingSleeper{}
	sleep = recorder.Sleep
	t.Cleanup(func() {
		sleep = time.Sleep
	})
	return recorder
}

func TestRetry(t *testing.T) {
	attempts, err := Retry(func() error { return nil }, Limit(5))
	require.NoError(t, err)
	assert.EqualValues(t, 1, attempts)

	var calls int
	attempts, err = Retry(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, Limit(5))
	require.NoError(t, err)
	assert.EqualValues(t, 3, attempts)

	attempts, err = Retry(func() error { return errors.New("always") }, Limit(4))
	assert.EqualError(t, err, "always")
	assert.EqualValues(t, 4, attempts)
}

func TestRetry_Backoff(t *testing.T) {
	recorder := withRecordingSleeper(t)

	attempts, err := Retry(
		func() error { return errors.New("unavailable") },
		Limit(5),
		Backoff(backoff.BinaryExponential(time.Second), 3*time.Second),
	)
	assert.Error(t, err)
	assert.EqualValues(t, 5, attempts)

	// The limit is checked before sleeping, so the final failure doesn't wait
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, recorder.delays)
}

func TestRetry_Jitter(t *testing.T) {
	recorder := withRecordingSleeper(t)

	_, err := Retry(
		func() error { return errors.New("unavailable") },
		Limit(50),
		BackoffWithJitter(backoff.Constant(100*time.Millisecond), time.Second, 0.1),
	)
	assert.Error(t, err)

	require.Len(t, recorder.delays, 49)
	for _, delay := range recorder.delays {
		assert.True(t, delay >= 90*time.Millisecond)
		assert.True(t, delay <= 110*time.Millisecond)
	}
}

func TestLoop(t *testing.T) {
	recorder := withRecordingSleeper(t)

	errStop := errors.New("stop")

	var i int
	err := Loop(
		func() error {
			defer func() { i++ }()

			if i > 10 {
				return errStop
			}
			if i%4 == 0 {
				return nil
			}
			return errors.New("transient")
		},
		NonRetriableErrors(errStop),
		Backoff(backoff.Exponential(1, 1), time.Second),
	)
	assert.Equal(t, errStop, err)

	// Runs 1-3, 5-7 and 9-10 fail, with each success resetting the schedule
	assert.Len(t, recorder.delays, 8)
}
