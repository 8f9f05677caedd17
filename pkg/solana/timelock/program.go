package timelock

import (
	"crypto/ed25519"
	"errors"

	"github.com/code-payments/code-timelock-server/pkg/solana"
)

var (
	ErrInvalidProgram         = errors.New("invalid program id")
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("3uTE1CEth2KcSPRCq8q78b4NM7d6KBBjvHswb8DE8aDH")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

var (
	SYSTEM_PROGRAM_ID = ed25519.PublicKey(mustBase58Decode("11111111111111111111111111111111"))

	SYSVAR_RENT_PUBKEY = ed25519.PublicKey(mustBase58Decode("SysvarRent111111111111111111111111111111111"))
)

// TransactionAccountMeta is the account entry stored in a queued transaction.
// Field order matches the on-chain layout.
type TransactionAccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
}

func (m TransactionAccountMeta) ToAccountMeta() solana.AccountMeta {
	if m.IsWritable {
		return solana.NewAccountMeta(m.PublicKey, m.IsSigner)
	}
	return solana.NewReadonlyAccountMeta(m.PublicKey, m.IsSigner)
}

func TransactionAccountMetaFromAccountMeta(m solana.AccountMeta) TransactionAccountMeta {
	return TransactionAccountMeta{
		PublicKey:  m.PublicKey,
		IsSigner:   m.IsSigner,
		IsWritable: m.IsWritable,
	}
}
