package timelock

import (
	"github.com/code-payments/code-timelock-server/pkg/solana"
)

type TimelockError uint32

const (
	// Timelock delay has not elapsed.
	ErrNotDelayElapsed TimelockError = iota + 300

	// Transaction has already been executed.
	ErrAlreadyExecuted
)

func (e TimelockError) Error() string {
	switch e {
	case ErrNotDelayElapsed:
		return "Timelock delay has not elapsed."
	case ErrAlreadyExecuted:
		return "Transaction has already been executed."
	}
	return solana.CustomError(e).Error()
}

// ToInstructionError wraps the program error the way a runtime reports it
func (e TimelockError) ToInstructionError(index int) solana.InstructionError {
	return solana.InstructionError{
		Index: index,
		Err:   solana.CustomError(e),
	}
}
