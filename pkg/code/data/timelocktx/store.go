package timelocktx

import (
	"context"
	"time"

	"github.com/code-payments/code-timelock-server/pkg/database/query"
)

type Store interface {
	// Save creates a new queued transaction. ErrTransactionExists is returned
	// if the address is already in use.
	Save(ctx context.Context, record *Record) error

	// GetByAddress gets a queued transaction by its address
	GetByAddress(ctx context.Context, address string) (*Record, error)

	// GetAllByTimelock gets all transactions queued against a timelock
	GetAllByTimelock(ctx context.Context, timelock string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// GetAllExecutable gets unexecuted transactions whose delay has elapsed as
	// of the provided time, ordered by executable time then id. Only
	// transactions after the cursor are returned.
	GetAllExecutable(ctx context.Context, at time.Time, after ExecutableCursor, limit uint64) ([]*Record, error)

	// GetCountByState gets the count of transactions in the provided state
	GetCountByState(ctx context.Context, state State) (uint64, error)

	// MarkExecuted atomically transitions a transaction to the executed state.
	// ErrAlreadyExecuted is returned if it has already transitioned.
	MarkExecuted(ctx context.Context, address string, executedAt time.Time) error
}
