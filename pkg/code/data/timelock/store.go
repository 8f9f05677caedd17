package timelock

import (
	"context"
)

type Store interface {
	// Save creates a new timelock record. Records are immutable once created,
	// so ErrTimelockExists is returned if the address is already in use.
	Save(ctx context.Context, record *Record) error

	// GetByAddress gets a timelock by its address
	GetByAddress(ctx context.Context, address string) (*Record, error)

	// GetBySigner gets a timelock by its derived signer address
	GetBySigner(ctx context.Context, signer string) (*Record, error)

	// GetCount gets the total number of timelocks
	GetCount(ctx context.Context) (uint64, error)
}
