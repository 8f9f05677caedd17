package timelock

import (
	"github.com/pkg/errors"

	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
)

var (
	ErrInvalidDelay       = errors.New("timelock delay must be a non-negative number of seconds")
	ErrInvalidNonce       = errors.New("nonce does not derive a timelock signer")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidInstruction = errors.New("invalid instruction")

	ErrTimelockExists    = errors.New("timelock already exists")
	ErrTransactionExists = errors.New("transaction already exists")

	ErrTimelockNotFound    = errors.New("timelock not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	// Messages match the timelock program's error codes
	ErrDelayNotElapsed = errors.New(timelock_program.ErrNotDelayElapsed.Error())
	ErrAlreadyExecuted = errors.New(timelock_program.ErrAlreadyExecuted.Error())
)

// TargetInvocationError is returned when the target program of a queued
// transaction fails. The transaction remains unexecuted.
type TargetInvocationError struct {
	Err error
}

func (e *TargetInvocationError) Error() string {
	return "target invocation failed: " + e.Err.Error()
}

func (e *TargetInvocationError) Unwrap() error {
	return e.Err
}

// IsRetryable returns whether an Execute call that failed with err may
// succeed later without any change to the transaction.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDelayNotElapsed) {
		return true
	}

	var invocationErr *TargetInvocationError
	return errors.As(err, &invocationErr)
}

// ToProgramError maps an execution error onto the timelock program's error
// codes, if one applies.
func ToProgramError(err error) (timelock_program.TimelockError, bool) {
	switch {
	case errors.Is(err, ErrDelayNotElapsed):
		return timelock_program.ErrNotDelayElapsed, true
	case errors.Is(err, ErrAlreadyExecuted):
		return timelock_program.ErrAlreadyExecuted, true
	}
	return 0, false
}
