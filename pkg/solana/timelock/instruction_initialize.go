package timelock

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/code-timelock-server/pkg/solana"
)

var initializeInstructionDiscriminator = []byte{
	175, 175, 109, 31, 13, 152, 155, 237,
}

const (
	InitializeInstructionArgsSize = (8 + // delay
		1) // nonce

	InitializeInstructionSize = (8 + // discriminator
		InitializeInstructionArgsSize) // args
)

type InitializeInstructionArgs struct {
	Delay int64
	Nonce uint8
}

type InitializeInstructionAccounts struct {
	Timelock  ed25519.PublicKey
	Authority ed25519.PublicKey
}

func NewInitializeInstruction(
	accounts *InitializeInstructionAccounts,
	args *InitializeInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, InitializeInstructionSize)

	putDiscriminator(data, initializeInstructionDiscriminator, &offset)
	putInt64(data, args.Delay, &offset)
	putUint8(data, args.Nonce, &offset)

	return solana.NewInstruction(
		PROGRAM_ID,
		data,
		solana.NewAccountMeta(accounts.Timelock, true),
		solana.NewReadonlyAccountMeta(SYSTEM_PROGRAM_ID, false),
		solana.NewAccountMeta(accounts.Authority, true),
	)
}

func InitializeInstructionFromBinary(data []byte) (*InitializeInstructionArgs, error) {
	var offset int
	var discriminator []byte

	if len(data) < InitializeInstructionSize {
		return nil, ErrInvalidInstructionData
	}

	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, initializeInstructionDiscriminator) {
		return nil, ErrInvalidInstructionData
	}

	var args InitializeInstructionArgs
	getInt64(data, &args.Delay, &offset)
	getUint8(data, &args.Nonce, &offset)

	return &args, nil
}
