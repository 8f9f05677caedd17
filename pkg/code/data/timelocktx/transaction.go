package timelocktx

import (
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-timelock-server/pkg/solana"
	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
)

var (
	ErrTransactionNotFound = errors.New("no records could be found")
	ErrTransactionExists   = errors.New("transaction record already exists")
	ErrAlreadyExecuted     = errors.New("transaction has already been executed")
)

type State uint8

const (
	StateUnknown State = iota
	StateQueued
	StateExecuted
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateExecuted:
		return "executed"
	}
	return "unknown"
}

type AccountMeta struct {
	PublicKey  string
	IsSigner   bool
	IsWritable bool
}

// Record is a queued transaction. Everything but the execution state is
// fixed at queue time.
type Record struct {
	Id uint64

	Address  string
	Timelock string

	Program  string
	Accounts []AccountMeta
	Data     []byte

	ExecutableAt time.Time

	IsExecuted bool
	ExecutedAt *time.Time

	CreatedAt time.Time
}

func (r *Record) State() State {
	if r.IsExecuted {
		return StateExecuted
	}
	return StateQueued
}

// ExecutableCursor is a position in the executable-time ordering of
// transactions. The zero value is before every transaction.
type ExecutableCursor struct {
	ExecutableAt time.Time
	Id           uint64
}

func (c ExecutableCursor) IsZero() bool {
	return c.ExecutableAt.IsZero() && c.Id == 0
}

// IsBefore returns whether the record sorts after the cursor
func (c ExecutableCursor) IsBefore(r *Record) bool {
	if c.ExecutableAt.Equal(r.ExecutableAt) {
		return c.Id < r.Id
	}
	return c.ExecutableAt.Before(r.ExecutableAt)
}

func (r *Record) ToExecutableCursor() ExecutableCursor {
	return ExecutableCursor{
		ExecutableAt: r.ExecutableAt,
		Id:           r.Id,
	}
}

// IsExecutable returns whether the delay has elapsed as of the provided time
func (r *Record) IsExecutable(at time.Time) bool {
	return !at.Before(r.ExecutableAt)
}

// ToInstruction builds the instruction exactly as it was queued
func (r *Record) ToInstruction() (solana.Instruction, error) {
	program, err := decodeAddress(r.Program)
	if err != nil {
		return solana.Instruction{}, errors.Wrap(err, "invalid program")
	}

	accounts := make([]solana.AccountMeta, len(r.Accounts))
	for i, account := range r.Accounts {
		publicKey, err := decodeAddress(account.PublicKey)
		if err != nil {
			return solana.Instruction{}, errors.Wrapf(err, "invalid account at index %d", i)
		}

		accounts[i] = solana.AccountMeta{
			PublicKey:  publicKey,
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return solana.NewInstruction(program, append([]byte{}, r.Data...), accounts...), nil
}

func (r *Record) ToProgramAccount() (*timelock_program.TransactionAccount, error) {
	ixn, err := r.ToInstruction()
	if err != nil {
		return nil, err
	}

	accounts := make([]timelock_program.TransactionAccountMeta, len(ixn.Accounts))
	for i, account := range ixn.Accounts {
		accounts[i] = timelock_program.TransactionAccountMetaFromAccountMeta(account)
	}

	return &timelock_program.TransactionAccount{
		ProgramId:    ixn.Program,
		Accounts:     accounts,
		Data:         ixn.Data,
		ExecutableAt: r.ExecutableAt.Unix(),
		DidExecute:   r.IsExecuted,
	}, nil
}

func (r *Record) Clone() *Record {
	var executedAt *time.Time
	if r.ExecutedAt != nil {
		value := *r.ExecutedAt
		executedAt = &value
	}

	var accounts []AccountMeta
	if r.Accounts != nil {
		accounts = make([]AccountMeta, len(r.Accounts))
		copy(accounts, r.Accounts)
	}

	var data []byte
	if r.Data != nil {
		data = make([]byte, len(r.Data))
		copy(data, r.Data)
	}

	return &Record{
		Id: r.Id,

		Address:  r.Address,
		Timelock: r.Timelock,

		Program:  r.Program,
		Accounts: accounts,
		Data:     data,

		ExecutableAt: r.ExecutableAt,

		IsExecuted: r.IsExecuted,
		ExecutedAt: executedAt,

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	cloned := r.Clone()

	dst.Id = cloned.Id

	dst.Address = cloned.Address
	dst.Timelock = cloned.Timelock

	dst.Program = cloned.Program
	dst.Accounts = cloned.Accounts
	dst.Data = cloned.Data

	dst.ExecutableAt = cloned.ExecutableAt

	dst.IsExecuted = cloned.IsExecuted
	dst.ExecutedAt = cloned.ExecutedAt

	dst.CreatedAt = cloned.CreatedAt
}

func (r *Record) Validate() error {
	if r == nil {
		return errors.New("record is nil")
	}

	if _, err := decodeAddress(r.Address); err != nil {
		return errors.Wrap(err, "invalid address")
	}

	if _, err := decodeAddress(r.Timelock); err != nil {
		return errors.Wrap(err, "invalid timelock")
	}

	if _, err := r.ToInstruction(); err != nil {
		return err
	}

	if r.ExecutableAt.IsZero() {
		return errors.New("executable at is required")
	}

	if r.IsExecuted != (r.ExecutedAt != nil) {
		return errors.New("executed at must be set if and only if executed")
	}

	return nil
}

func decodeAddress(address string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, err
	}

	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid address length: %d", len(decoded))
	}

	return decoded, nil
}
