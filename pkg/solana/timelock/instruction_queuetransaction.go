package timelock

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/code-timelock-server/pkg/solana"
)

var queueTransactionInstructionDiscriminator = []byte{
	0, 142, 229, 190, 90, 141, 38, 5,
}

type QueueTransactionInstructionArgs struct {
	ProgramId ed25519.PublicKey
	Accounts  []TransactionAccountMeta
	Data      []byte
}

type QueueTransactionInstructionAccounts struct {
	Timelock    ed25519.PublicKey
	Transaction ed25519.PublicKey
	Authority   ed25519.PublicKey
}

func (args *QueueTransactionInstructionArgs) size() int {
	return 8 + // discriminator
		32 + // pid
		transactionAccountMetasSize(args.Accounts) + // accs
		vecLengthSize + len(args.Data) // data
}

func NewQueueTransactionInstruction(
	accounts *QueueTransactionInstructionAccounts,
	args *QueueTransactionInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, args.size())

	putDiscriminator(data, queueTransactionInstructionDiscriminator, &offset)
	putKey(data, args.ProgramId, &offset)
	putTransactionAccountMetas(data, args.Accounts, &offset)
	putBytes(data, args.Data, &offset)

	return solana.NewInstruction(
		PROGRAM_ID,
		data,
		solana.NewReadonlyAccountMeta(accounts.Timelock, false),
		solana.NewAccountMeta(accounts.Transaction, true),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
		solana.NewAccountMeta(accounts.Authority, true),
		solana.NewReadonlyAccountMeta(SYSVAR_RENT_PUBKEY, false),
	)
}

func QueueTransactionInstructionFromBinary(data []byte) (*QueueTransactionInstructionArgs, error) {
	var offset int
	var discriminator []byte

	if len(data) < 8+32 {
		return nil, ErrInvalidInstructionData
	}

	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, queueTransactionInstructionDiscriminator) {
		return nil, ErrInvalidInstructionData
	}

	var args QueueTransactionInstructionArgs

	getKey(data, &args.ProgramId, &offset)

	if !getTransactionAccountMetas(data, &args.Accounts, &offset) {
		return nil, ErrInvalidInstructionData
	}

	if !getBytes(data, &args.Data, &offset) {
		return nil, ErrInvalidInstructionData
	}

	if offset != len(data) {
		return nil, ErrInvalidInstructionData
	}

	return &args, nil
}
