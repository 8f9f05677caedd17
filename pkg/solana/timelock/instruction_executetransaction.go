package timelock

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/code-timelock-server/pkg/solana"
)

var executeTransactionInstructionDiscriminator = []byte{
	231, 173, 49, 91, 235, 24, 68, 19,
}

const (
	ExecuteTransactionInstructionSize = 8 // discriminator
)

type ExecuteTransactionInstructionAccounts struct {
	Timelock       ed25519.PublicKey
	TimelockSigner ed25519.PublicKey
	Transaction    ed25519.PublicKey

	// Accounts required by the queued instruction, including its program
	Remaining []solana.AccountMeta
}

func NewExecuteTransactionInstruction(
	accounts *ExecuteTransactionInstructionAccounts,
) solana.Instruction {
	var offset int

	data := make([]byte, ExecuteTransactionInstructionSize)
	putDiscriminator(data, executeTransactionInstructionDiscriminator, &offset)

	metas := []solana.AccountMeta{
		solana.NewReadonlyAccountMeta(accounts.Timelock, false),
		solana.NewReadonlyAccountMeta(accounts.TimelockSigner, false),
		solana.NewAccountMeta(accounts.Transaction, false),
	}
	metas = append(metas, accounts.Remaining...)

	return solana.NewInstruction(PROGRAM_ID, data, metas...)
}

func ExecuteTransactionInstructionFromBinary(data []byte) error {
	var offset int
	var discriminator []byte

	if len(data) != ExecuteTransactionInstructionSize {
		return ErrInvalidInstructionData
	}

	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, executeTransactionInstructionDiscriminator) {
		return ErrInvalidInstructionData
	}

	return nil
}

// GetExecutableInstruction converts a queued transaction into the instruction
// invoked on behalf of the timelock signer. Any account referencing the signer
// is marked as a read only signer, all others are passed through as queued.
func GetExecutableInstruction(tx *TransactionAccount, timelockSigner ed25519.PublicKey) solana.Instruction {
	metas := make([]solana.AccountMeta, len(tx.Accounts))
	for i, account := range tx.Accounts {
		meta := account.ToAccountMeta()
		if bytes.Equal(meta.PublicKey, timelockSigner) {
			meta = solana.NewReadonlyAccountMeta(meta.PublicKey, true)
		}
		metas[i] = meta
	}

	return solana.NewInstruction(tx.ProgramId, tx.Data, metas...).Clone()
}
