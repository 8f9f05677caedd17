package timelock

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-timelock-server/pkg/solana"
)

func TestInitializeInstruction(t *testing.T) {
	timelock := mustBase58Decode("BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z")
	authority := mustBase58Decode("codeHy87wGD5oMRLG75qKqsSi1vWE3oxNyYmXo5F9YR")

	ixn := NewInitializeInstruction(
		&InitializeInstructionAccounts{
			Timelock:  timelock,
			Authority: authority,
		},
		&InitializeInstructionArgs{
			Delay: 5,
			Nonce: 255,
		},
	)

	assert.EqualValues(t, PROGRAM_ID, ixn.Program)
	assert.Equal(t, []byte{175, 175, 109, 31, 13, 152, 155, 237, 5, 0, 0, 0, 0, 0, 0, 0, 255}, ixn.Data)
	require.Len(t, ixn.Accounts, 3)
	assert.EqualValues(t, timelock, ixn.Accounts[0].PublicKey)
	assert.True(t, ixn.Accounts[0].IsSigner)

	args, err := InitializeInstructionFromBinary(ixn.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 5, args.Delay)
	assert.EqualValues(t, 255, args.Nonce)

	_, err = InitializeInstructionFromBinary(ixn.Data[:10])
	assert.Equal(t, ErrInvalidInstructionData, err)
}

func TestQueueTransactionInstruction(t *testing.T) {
	program := ed25519.PublicKey(mustBase58Decode("codeHy87wGD5oMRLG75qKqsSi1vWE3oxNyYmXo5F9YR"))
	signer := ed25519.PublicKey(mustBase58Decode("3x7oEM2pNg3FrQXzyqgQxxs5rZcbTnFzo6sfPtQdBkx2"))

	for _, expected := range []*QueueTransactionInstructionArgs{
		{
			ProgramId: program,
			Accounts:  []TransactionAccountMeta{},
			Data:      []byte{},
		},
		{
			ProgramId: program,
			Accounts: []TransactionAccountMeta{
				{PublicKey: signer, IsSigner: true},
				{PublicKey: program, IsWritable: true},
			},
			Data: []byte{223, 114, 91, 136, 197, 78, 153, 153, 5, 0, 0, 0, 0, 0, 0, 0},
		},
	} {
		ixn := NewQueueTransactionInstruction(
			&QueueTransactionInstructionAccounts{
				Timelock:    make([]byte, 32),
				Transaction: make([]byte, 32),
				Authority:   make([]byte, 32),
			},
			expected,
		)
		assert.Equal(t, queueTransactionInstructionDiscriminator, ixn.Data[:8])

		actual, err := QueueTransactionInstructionFromBinary(ixn.Data)
		require.NoError(t, err)
		assert.Equal(t, expected, actual)

		_, err = QueueTransactionInstructionFromBinary(ixn.Data[:len(ixn.Data)-1])
		assert.Equal(t, ErrInvalidInstructionData, err)

		_, err = QueueTransactionInstructionFromBinary(append(ixn.Data, 0))
		assert.Equal(t, ErrInvalidInstructionData, err)
	}
}

func TestQueueTransactionInstruction_OversizedLength(t *testing.T) {
	data := make([]byte, 8+32+4)
	copy(data, queueTransactionInstructionDiscriminator)
	data[40] = 0xff
	data[41] = 0xff
	data[42] = 0xff
	data[43] = 0xff

	_, err := QueueTransactionInstructionFromBinary(data)
	assert.Equal(t, ErrInvalidInstructionData, err)
}

func TestExecuteTransactionInstruction(t *testing.T) {
	remaining := []solana.AccountMeta{solana.NewAccountMeta(make([]byte, 32), false)}

	ixn := NewExecuteTransactionInstruction(&ExecuteTransactionInstructionAccounts{
		Timelock:       make([]byte, 32),
		TimelockSigner: make([]byte, 32),
		Transaction:    make([]byte, 32),
		Remaining:      remaining,
	})
	assert.Len(t, ixn.Accounts, 4)
	assert.NoError(t, ExecuteTransactionInstructionFromBinary(ixn.Data))
	assert.Equal(t, ErrInvalidInstructionData, ExecuteTransactionInstructionFromBinary(append(ixn.Data, 1)))
}

func TestGetExecutableInstruction(t *testing.T) {
	program := ed25519.PublicKey(mustBase58Decode("codeHy87wGD5oMRLG75qKqsSi1vWE3oxNyYmXo5F9YR"))
	timelock := ed25519.PublicKey(mustBase58Decode("BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z"))
	signer := ed25519.PublicKey(mustBase58Decode("3x7oEM2pNg3FrQXzyqgQxxs5rZcbTnFzo6sfPtQdBkx2"))

	tx := &TransactionAccount{
		ProgramId: program,
		Accounts: []TransactionAccountMeta{
			{PublicKey: timelock, IsSigner: false, IsWritable: true},
			{PublicKey: signer, IsSigner: false, IsWritable: true},
			{PublicKey: program, IsSigner: true, IsWritable: false},
		},
		Data: []byte{1, 2, 3},
	}

	ixn := GetExecutableInstruction(tx, signer)
	assert.EqualValues(t, program, ixn.Program)
	assert.Equal(t, []byte{1, 2, 3}, ixn.Data)
	require.Len(t, ixn.Accounts, 3)

	assert.Equal(t, solana.NewAccountMeta(timelock, false), ixn.Accounts[0])
	assert.Equal(t, solana.NewReadonlyAccountMeta(signer, true), ixn.Accounts[1])
	assert.Equal(t, solana.NewReadonlyAccountMeta(program, true), ixn.Accounts[2])

	// Queued state is untouched
	assert.False(t, tx.Accounts[1].IsSigner)
	assert.True(t, tx.Accounts[1].IsWritable)
}

func TestTimelockError(t *testing.T) {
	assert.EqualValues(t, 300, ErrNotDelayElapsed)
	assert.EqualValues(t, 301, ErrAlreadyExecuted)
	assert.Equal(t, "Timelock delay has not elapsed.", ErrNotDelayElapsed.Error())
	assert.Equal(t, "Transaction has already been executed.", ErrAlreadyExecuted.Error())

	ixnErr := ErrAlreadyExecuted.ToInstructionError(0)
	require.NotNil(t, ixnErr.CustomError())
	assert.EqualValues(t, 301, *ixnErr.CustomError())
}
