package retry

import (
	"errors"
	"math/rand"
	"time"

	"github.com/code-payments/code-timelock-server/pkg/retry/backoff"
)

// Strategy decides whether a failed action is retried. Strategies may block,
// as backoff does.
type Strategy func(attempts uint, err error) bool

// Limit allows at most maxAttempts runs of the action, including the first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// NonRetriableErrors stops retrying on any of the provided errors, including
// when wrapped.
func NonRetriableErrors(nonRetriableErrors ...error) Strategy {
	return func(_ uint, err error) bool {
		for _, target := range nonRetriableErrors {
			if errors.Is(err, target) {
				return false
			}
		}
		return true
	}
}

// Backoff sleeps per strategy, capped at maxBackoff, before allowing the
// next attempt.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return BackoffWithJitter(strategy, maxBackoff, 0)
}

// BackoffWithJitter is Backoff with the capped delay randomly shifted by up
// to +/- jitter of itself. A jitter of 0.1 turns a 100ms delay into 90-110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	capped := backoff.Capped(strategy, maxBackoff)

	return func(attempts uint, _ error) bool {
		delay := capped(attempts)
		if jitter > 0 {
			delay = time.Duration(float64(delay) * (1 + jitter*(2*rand.Float64()-1)))
		}

		sleep(delay)
		return true
	}
}

var sleep = time.Sleep
