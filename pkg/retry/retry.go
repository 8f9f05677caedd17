package retry

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retry runs action until it succeeds or a strategy declines another attempt.
// It returns the number of attempts made.
//
// Strategies are evaluated in order and evaluation stops at the first one
// that declines, so strategies that sleep belong last.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		attempts++

		err := action()
		if err == nil || !shouldRetry(attempts, err, strategies) {
			return attempts, err
		}
	}
}

// Loop runs action forever, until a strategy declines to retry a failure.
// Successful runs reset the attempt counter that strategies observe.
func Loop(action Action, strategies ...Strategy) error {
	var failures uint
	for {
		err := action()
		if err == nil {
			failures = 0
			continue
		}

		failures++
		if !shouldRetry(failures, err, strategies) {
			return err
		}
	}
}

func shouldRetry(attempts uint, err error, strategies []Strategy) bool {
	for _, strategy := range strategies {
		if !strategy(attempts, err) {
			return false
		}
	}
	return true
}
