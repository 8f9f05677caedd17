package timelock

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-timelock-server/pkg/clock"
	code_data "github.com/code-payments/code-timelock-server/pkg/code/data"
	timelock_data "github.com/code-payments/code-timelock-server/pkg/code/data/timelock"
	timelocktx_data "github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	"github.com/code-payments/code-timelock-server/pkg/database/query"
	"github.com/code-payments/code-timelock-server/pkg/lock"
	"github.com/code-payments/code-timelock-server/pkg/solana"
	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
	"github.com/code-payments/code-timelock-server/pkg/testutil"
)

func TestCreateTimelock_HappyPath(t *testing.T) {
	env := setup(t)

	record, err := env.executor.CreateTimelock(env.ctx, "BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z", 5*time.Second, 255)
	require.NoError(t, err)
	assert.Equal(t, "BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z", record.Address)
	assert.Equal(t, "3x7oEM2pNg3FrQXzyqgQxxs5rZcbTnFzo6sfPtQdBkx2", record.SignerAddress)
	assert.EqualValues(t, 255, record.Nonce)
	assert.Equal(t, 5*time.Second, record.Delay)
	assert.Equal(t, env.clock.Now(), record.CreatedAt)

	actual, err := env.executor.GetTimelock(env.ctx, record.Address)
	require.NoError(t, err)
	assert.Equal(t, record.SignerAddress, actual.SignerAddress)
	assert.Equal(t, record.Delay, actual.Delay)

	// Non-canonical nonces are allowed, as long as they derive a signer
	record, err = env.executor.CreateTimelock(env.ctx, "7Ema8Z4gAUWegampp2AuX4cvaTRy3VMwJUq8LMJshQTV", 0, 254)
	require.NoError(t, err)
	assert.Equal(t, "FCbVv1qmJvZRSAgumcdQA3mzziaHZMvvuJY46cqSkLmM", record.SignerAddress)
	assert.Zero(t, record.Delay)

	_, err = env.executor.CreateTimelock(env.ctx, "BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z", time.Minute, 255)
	assert.Equal(t, ErrTimelockExists, err)
}

func TestCreateTimelock_NonCanonicalNonce(t *testing.T) {
	env := setup(t)

	record, err := env.executor.CreateTimelock(env.ctx, "BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z", time.Second, 253)
	require.NoError(t, err)
	assert.Equal(t, "72N1rsvTeYQKTdzLyhtvTVYULbQ5JncBbjoqTMt4oWi1", record.SignerAddress)
}

func TestCreateTimelock_Validation(t *testing.T) {
	env := setup(t)

	address := testutil.NewRandomAddress(t)
	_, nonce := env.newSigner(t, address)

	for _, delay := range []time.Duration{-time.Second, -1, 1500 * time.Millisecond, time.Millisecond} {
		_, err := env.executor.CreateTimelock(env.ctx, address, delay, nonce)
		assert.Equal(t, ErrInvalidDelay, err)
	}

	_, err := env.executor.CreateTimelock(env.ctx, "BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z", time.Second, 254)
	assert.Equal(t, ErrInvalidNonce, err)

	for _, invalid := range []string{"", "invalid!", base58.Encode(make([]byte, 31))} {
		_, err = env.executor.CreateTimelock(env.ctx, invalid, time.Second, nonce)
		assert.True(t, errors.Is(err, ErrInvalidAddress))
	}

	// Nothing was persisted by the failed attempts
	count, err := env.data.GetTimelockCount(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = env.executor.GetTimelock(env.ctx, address)
	assert.Equal(t, ErrTimelockNotFound, err)
}

func TestQueueTransaction_HappyPath(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, 30*time.Second)
	ixn := env.newInstruction(t, timelock.SignerAddress)

	address := testutil.NewRandomAddress(t)
	record, err := env.executor.QueueTransaction(env.ctx, timelock.Address, address, ixn)
	require.NoError(t, err)
	assert.Equal(t, address, record.Address)
	assert.Equal(t, timelock.Address, record.Timelock)
	assert.Equal(t, base58.Encode(ixn.Program), record.Program)
	assert.Equal(t, ixn.Data, record.Data)
	assert.Equal(t, env.clock.Now().Add(30*time.Second), record.ExecutableAt)
	assert.False(t, record.IsExecuted)
	assert.Nil(t, record.ExecutedAt)

	require.Len(t, record.Accounts, len(ixn.Accounts))
	for i, account := range ixn.Accounts {
		assert.Equal(t, base58.Encode(account.PublicKey), record.Accounts[i].PublicKey)
		assert.Equal(t, account.IsSigner, record.Accounts[i].IsSigner)
		assert.Equal(t, account.IsWritable, record.Accounts[i].IsWritable)
	}

	actual, err := env.executor.GetTransaction(env.ctx, address)
	require.NoError(t, err)
	assert.Equal(t, record.ExecutableAt.Unix(), actual.ExecutableAt.Unix())
	assert.Equal(t, timelocktx_data.StateQueued, actual.State())

	_, err = env.executor.QueueTransaction(env.ctx, timelock.Address, address, ixn)
	assert.Equal(t, ErrTransactionExists, err)
}

func TestQueueTransaction_EmptyInstruction(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, 0)

	program := testutil.GenerateSolanaKeys(t, 1)[0]
	address := testutil.NewRandomAddress(t)
	record, err := env.executor.QueueTransaction(env.ctx, timelock.Address, address, solana.NewInstruction(program, nil))
	require.NoError(t, err)
	assert.Empty(t, record.Accounts)
	assert.Empty(t, record.Data)

	executed, err := env.executor.ExecuteTransaction(env.ctx, address)
	require.NoError(t, err)
	assert.True(t, executed.IsExecuted)

	invocations := env.invoker.GetInvocations()
	require.Len(t, invocations, 1)
	assert.EqualValues(t, program, invocations[0].Instruction.Program)
	assert.Empty(t, invocations[0].Instruction.Accounts)
	assert.Empty(t, invocations[0].Instruction.Data)
}

func TestQueueTransaction_Validation(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, time.Second)
	ixn := env.newInstruction(t, timelock.SignerAddress)

	_, err := env.executor.QueueTransaction(env.ctx, testutil.NewRandomAddress(t), testutil.NewRandomAddress(t), ixn)
	assert.Equal(t, ErrTimelockNotFound, err)

	_, err = env.executor.QueueTransaction(env.ctx, "invalid!", testutil.NewRandomAddress(t), ixn)
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	_, err = env.executor.QueueTransaction(env.ctx, timelock.Address, "", ixn)
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	invalidProgram := ixn.Clone()
	invalidProgram.Program = invalidProgram.Program[:31]
	_, err = env.executor.QueueTransaction(env.ctx, timelock.Address, testutil.NewRandomAddress(t), invalidProgram)
	assert.True(t, errors.Is(err, ErrInvalidInstruction))

	invalidAccount := ixn.Clone()
	invalidAccount.Accounts[1].PublicKey = nil
	_, err = env.executor.QueueTransaction(env.ctx, timelock.Address, testutil.NewRandomAddress(t), invalidAccount)
	assert.True(t, errors.Is(err, ErrInvalidInstruction))

	oversized := ixn.Clone()
	oversized.Data = make([]byte, timelock_program.TransactionAccountAllocatedSize)
	_, err = env.executor.QueueTransaction(env.ctx, timelock.Address, testutil.NewRandomAddress(t), oversized)
	assert.True(t, errors.Is(err, ErrInvalidInstruction))

	count, err := env.data.GetTimelockTransactionCountByState(env.ctx, timelocktx_data.StateQueued)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExecuteTransaction_DelayGate(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, 5*time.Second)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	env.clock.Advance(3 * time.Second)

	_, err := env.executor.ExecuteTransaction(env.ctx, address)
	assert.Equal(t, ErrDelayNotElapsed, err)
	assert.Equal(t, "Timelock delay has not elapsed.", err.Error())
	assert.True(t, IsRetryable(err))
	assert.Empty(t, env.invoker.GetInvocations())
	env.assertState(t, address, timelocktx_data.StateQueued)

	env.clock.Advance(3 * time.Second)

	record, err := env.executor.ExecuteTransaction(env.ctx, address)
	require.NoError(t, err)
	assert.True(t, record.IsExecuted)
	require.NotNil(t, record.ExecutedAt)
	assert.Equal(t, env.clock.Now(), *record.ExecutedAt)
	assert.Len(t, env.invoker.GetInvocations(), 1)
	env.assertState(t, address, timelocktx_data.StateExecuted)
}

func TestExecuteTransaction_ExactlyAtExecutableTime(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, 5*time.Second)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	env.clock.Advance(5*time.Second - time.Nanosecond)
	_, err := env.executor.ExecuteTransaction(env.ctx, address)
	assert.Equal(t, ErrDelayNotElapsed, err)

	env.clock.Advance(time.Nanosecond)
	_, err = env.executor.ExecuteTransaction(env.ctx, address)
	require.NoError(t, err)
}

func TestExecuteTransaction_ZeroDelay(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, 0)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	_, err := env.executor.ExecuteTransaction(env.ctx, address)
	require.NoError(t, err)
}

func TestExecuteTransaction_Replay(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, time.Second)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	env.clock.Advance(time.Second)
	_, err := env.executor.ExecuteTransaction(env.ctx, address)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		env.clock.Advance(time.Hour)

		_, err = env.executor.ExecuteTransaction(env.ctx, address)
		assert.Equal(t, ErrAlreadyExecuted, err)
		assert.Equal(t, "Transaction has already been executed.", err.Error())
		assert.False(t, IsRetryable(err))
	}

	assert.Len(t, env.invoker.GetInvocations(), 1)
}

func TestExecuteTransaction_IndependentTransactions(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, 10*time.Second)

	first := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))
	env.clock.Advance(5 * time.Second)
	second := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))
	third := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	env.clock.Advance(5 * time.Second)

	_, err := env.executor.ExecuteTransaction(env.ctx, first)
	require.NoError(t, err)

	_, err = env.executor.ExecuteTransaction(env.ctx, second)
	assert.Equal(t, ErrDelayNotElapsed, err)

	env.assertState(t, first, timelocktx_data.StateExecuted)
	env.assertState(t, second, timelocktx_data.StateQueued)
	env.assertState(t, third, timelocktx_data.StateQueued)

	env.clock.Advance(5 * time.Second)

	_, err = env.executor.ExecuteTransaction(env.ctx, third)
	require.NoError(t, err)
	env.assertState(t, second, timelocktx_data.StateQueued)

	_, err = env.executor.ExecuteTransaction(env.ctx, second)
	require.NoError(t, err)

	invocations := env.invoker.GetInvocations()
	require.Len(t, invocations, 3)
	assert.Equal(t, first, invocations[0].Transaction)
	assert.Equal(t, third, invocations[1].Transaction)
	assert.Equal(t, second, invocations[2].Transaction)
}

func TestExecuteTransaction_IndependentTimelocks(t *testing.T) {
	env := setup(t)

	fast := env.createTimelock(t, time.Second)
	slow := env.createTimelock(t, time.Minute)

	fastTx := env.queueTransaction(t, fast.Address, env.newInstruction(t, fast.SignerAddress))
	slowTx := env.queueTransaction(t, slow.Address, env.newInstruction(t, slow.SignerAddress))

	env.clock.Advance(time.Second)

	_, err := env.executor.ExecuteTransaction(env.ctx, fastTx)
	require.NoError(t, err)

	_, err = env.executor.ExecuteTransaction(env.ctx, slowTx)
	assert.Equal(t, ErrDelayNotElapsed, err)

	invocations := env.invoker.GetInvocations()
	require.Len(t, invocations, 1)
	assert.Equal(t, fast.SignerAddress, invocations[0].Signer.String())
}

func TestExecuteTransaction_TargetFailure(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, time.Second)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	env.clock.Advance(time.Second)
	env.invoker.SimulateErrors()

	for i := 0; i < 3; i++ {
		_, err := env.executor.ExecuteTransaction(env.ctx, address)
		require.Error(t, err)

		var invocationErr *TargetInvocationError
		require.True(t, errors.As(err, &invocationErr))
		assert.Contains(t, invocationErr.Error(), "simulated invocation failure")
		assert.True(t, IsRetryable(err))

		record, err := env.executor.GetTransaction(env.ctx, address)
		require.NoError(t, err)
		assert.False(t, record.IsExecuted)
		assert.Nil(t, record.ExecutedAt)
	}

	env.invoker.Reset()

	_, err := env.executor.ExecuteTransaction(env.ctx, address)
	require.NoError(t, err)
	assert.Len(t, env.invoker.GetInvocations(), 1)
}

func TestExecuteTransaction_InvokeTimeout(t *testing.T) {
	env := setupWithOverrides(t, &testOverrides{invokeTimeout: 10 * time.Millisecond}, nil)

	timelock := env.createTimelock(t, 0)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	env.invoker.SimulateDelay(time.Second)

	_, err := env.executor.ExecuteTransaction(env.ctx, address)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsRetryable(err))
	env.assertState(t, address, timelocktx_data.StateQueued)
}

func TestExecuteTransaction_NotFound(t *testing.T) {
	env := setup(t)

	_, err := env.executor.ExecuteTransaction(env.ctx, testutil.NewRandomAddress(t))
	assert.Equal(t, ErrTransactionNotFound, err)
	assert.False(t, IsRetryable(err))

	_, err = env.executor.ExecuteTransaction(env.ctx, "invalid!")
	assert.True(t, errors.Is(err, ErrInvalidAddress))
}

func TestExecuteTransaction_ConcurrentCalls(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, time.Second)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	env.clock.Advance(time.Second)
	env.invoker.SimulateDelay(10 * time.Millisecond)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes, alreadyExecuted int

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := env.executor.ExecuteTransaction(env.ctx, address)

			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				successes++
			case ErrAlreadyExecuted:
				alreadyExecuted++
			default:
				assert.Fail(t, "unexpected error", err.Error())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 31, alreadyExecuted)
	assert.Len(t, env.invoker.GetInvocations(), 1)
}

func TestExecuteTransaction_AccountFidelity(t *testing.T) {
	env := setup(t)

	timelock := env.createTimelock(t, 0)
	signer, err := base58.Decode(timelock.SignerAddress)
	require.NoError(t, err)

	keys := testutil.GenerateSolanaKeys(t, 5)
	queued := solana.NewInstruction(
		keys[0],
		[]byte{223, 114, 91, 136, 197, 78, 153, 153, 42},
		solana.NewAccountMeta(keys[1], false),
		solana.NewAccountMeta(signer, false),
		solana.NewReadonlyAccountMeta(keys[2], false),
		solana.NewAccountMeta(keys[3], true),
		solana.NewReadonlyAccountMeta(signer, false),
		solana.NewReadonlyAccountMeta(keys[4], true),
		solana.NewAccountMeta(keys[1], false),
	)

	address := env.queueTransaction(t, timelock.Address, queued)
	_, err = env.executor.ExecuteTransaction(env.ctx, address)
	require.NoError(t, err)

	invocations := env.invoker.GetInvocations()
	require.Len(t, invocations, 1)
	invoked := invocations[0].Instruction

	assert.EqualValues(t, queued.Program, invoked.Program)
	assert.Equal(t, queued.Data, invoked.Data)
	require.Len(t, invoked.Accounts, len(queued.Accounts))
	for i, expected := range queued.Accounts {
		actual := invoked.Accounts[i]
		assert.EqualValues(t, expected.PublicKey, actual.PublicKey)

		if bytes.Equal(expected.PublicKey, signer) {
			assert.True(t, actual.IsSigner)
			assert.False(t, actual.IsWritable)
		} else {
			assert.Equal(t, expected.IsSigner, actual.IsSigner)
			assert.Equal(t, expected.IsWritable, actual.IsWritable)
		}
	}

	proof := invocations[0].Signer
	assert.True(t, proof.Verify(signer))
	assert.False(t, proof.Verify(keys[1]))
	assert.Equal(t, timelock.Nonce, proof.Nonce())
	assert.Equal(t, timelock.Address, base58.Encode(proof.Timelock()))
	assert.Equal(t, timelock.SignerAddress, proof.String())

	// Signers other than the timelock can't be proven
	assert.False(t, proof.VerifyInstruction(invoked))
	withoutOtherSigners := solana.NewInstruction(invoked.Program, invoked.Data, invoked.Accounts[0], invoked.Accounts[1], invoked.Accounts[4])
	assert.True(t, proof.VerifyInstruction(withoutOtherSigners))
}

func TestSignerProof_ZeroValue(t *testing.T) {
	var proof SignerProof

	_, err := proof.Address()
	assert.Equal(t, ErrInvalidAddress, err)
	assert.False(t, proof.Verify(testutil.GenerateSolanaKeys(t, 1)[0]))
	assert.False(t, proof.VerifyInstruction(solana.Instruction{}))
	assert.Equal(t, "<invalid>", proof.String())
}

func TestExecuteTransaction_DistributedLock(t *testing.T) {
	locks := newTestLockManager()
	env := setupWithOverrides(t, &testOverrides{}, locks)

	timelock := env.createTimelock(t, 0)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	_, err := env.executor.ExecuteTransaction(env.ctx, address)
	require.NoError(t, err)

	_, err = env.executor.ExecuteTransaction(env.ctx, address)
	assert.Equal(t, ErrAlreadyExecuted, err)

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Equal(t, []string{defaultDistributedLockPrefix + address, defaultDistributedLockPrefix + address}, locks.acquired)
	assert.Equal(t, 2, locks.released)
	assert.Empty(t, locks.held)
}

func TestGetTransactionsByTimelock(t *testing.T) {
	env := setup(t)

	_, err := env.executor.GetTransactionsByTimelock(env.ctx, testutil.NewRandomAddress(t))
	assert.Equal(t, ErrTimelockNotFound, err)

	timelockRecord := env.createTimelock(t, time.Second)

	records, err := env.executor.GetTransactionsByTimelock(env.ctx, timelockRecord.Address)
	require.NoError(t, err)
	assert.Empty(t, records)

	var expected []string
	for i := 0; i < 5; i++ {
		expected = append(expected, env.queueTransaction(t, timelockRecord.Address, env.newInstruction(t, timelockRecord.SignerAddress)))
	}

	// Transactions on other timelocks are not included
	other := env.createTimelock(t, time.Second)
	env.queueTransaction(t, other.Address, env.newInstruction(t, other.SignerAddress))

	records, err = env.executor.GetTransactionsByTimelock(env.ctx, timelockRecord.Address)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, record := range records {
		assert.Equal(t, expected[i], record.Address)
	}

	records, err = env.executor.GetTransactionsByTimelock(
		env.ctx,
		timelockRecord.Address,
		query.WithLimit(2),
		query.WithDirection(query.Descending),
	)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, expected[4], records[0].Address)
	assert.Equal(t, expected[3], records[1].Address)

	records, err = env.executor.GetTransactionsByTimelock(
		env.ctx,
		timelockRecord.Address,
		query.WithCursor(query.ToCursor(records[1].Id)),
		query.WithDirection(query.Descending),
	)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, expected[2], records[0].Address)
	assert.Equal(t, expected[0], records[2].Address)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(ErrDelayNotElapsed))
	assert.True(t, IsRetryable(errors.Wrap(ErrDelayNotElapsed, "wrapped")))
	assert.True(t, IsRetryable(&TargetInvocationError{Err: errors.New("failure")}))
	assert.False(t, IsRetryable(ErrAlreadyExecuted))
	assert.False(t, IsRetryable(ErrInvalidDelay))
	assert.False(t, IsRetryable(ErrTransactionNotFound))

	code, ok := ToProgramError(ErrDelayNotElapsed)
	require.True(t, ok)
	assert.EqualValues(t, 300, code)

	code, ok = ToProgramError(ErrAlreadyExecuted)
	require.True(t, ok)
	assert.EqualValues(t, 301, code)

	_, ok = ToProgramError(ErrInvalidDelay)
	assert.False(t, ok)
}

type testEnv struct {
	ctx      context.Context
	data     code_data.Provider
	clock    *clock.Fake
	invoker  *TestInvoker
	executor *Executor
}

func setup(t *testing.T) *testEnv {
	return setupWithOverrides(t, &testOverrides{}, nil)
}

func setupWithOverrides(t *testing.T, overrides *testOverrides, locks lock.Manager) *testEnv {
	data := code_data.NewTestDataProvider()
	clk := clock.NewFake(time.Date(2022, time.March, 1, 12, 0, 0, 0, time.UTC))
	invoker := NewTestInvoker()

	return &testEnv{
		ctx:      context.Background(),
		data:     data,
		clock:    clk,
		invoker:  invoker,
		executor: NewExecutor(data, invoker, clk, locks, withManualTestOverrides(overrides)),
	}
}

func (e *testEnv) newSigner(t *testing.T, address string) (ed25519.PublicKey, uint8) {
	decoded, err := base58.Decode(address)
	require.NoError(t, err)

	signer, nonce, err := timelock_program.GetSignerAddress(decoded)
	require.NoError(t, err)
	return signer, nonce
}

func (e *testEnv) createTimelock(t *testing.T, delay time.Duration) *timelock_data.Record {
	address := testutil.NewRandomAddress(t)
	_, nonce := e.newSigner(t, address)

	record, err := e.executor.CreateTimelock(e.ctx, address, delay, nonce)
	require.NoError(t, err)
	return record
}

func (e *testEnv) newInstruction(t *testing.T, signerAddress string) solana.Instruction {
	signer, err := base58.Decode(signerAddress)
	require.NoError(t, err)

	keys := testutil.GenerateSolanaKeys(t, 3)
	return solana.NewInstruction(
		keys[0],
		[]byte("payload"),
		solana.NewAccountMeta(keys[1], false),
		solana.NewReadonlyAccountMeta(keys[2], false),
		solana.NewReadonlyAccountMeta(signer, true),
	)
}

func (e *testEnv) queueTransaction(t *testing.T, timelock string, ixn solana.Instruction) string {
	address := testutil.NewRandomAddress(t)
	_, err := e.executor.QueueTransaction(e.ctx, timelock, address, ixn)
	require.NoError(t, err)
	return address
}

func (e *testEnv) assertState(t *testing.T, address string, expected timelocktx_data.State) {
	record, err := e.executor.GetTransaction(e.ctx, address)
	require.NoError(t, err)
	assert.Equal(t, expected, record.State())
}

type testLockManager struct {
	mu       sync.Mutex
	held     map[string]struct{}
	acquired []string
	released int
}

func newTestLockManager() *testLockManager {
	return &testLockManager{
		held: make(map[string]struct{}),
	}
}

func (m *testLockManager) Create(_ context.Context, name string) (lock.DistributedLock, error) {
	return &testLock{manager: m, name: name}, nil
}

type testLock struct {
	manager *testLockManager
	name    string
	lost    chan struct{}
}

func (l *testLock) Acquire(_ context.Context) (<-chan struct{}, error) {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()

	if _, ok := l.manager.held[l.name]; ok {
		return nil, errors.New("lock already held")
	}
	l.manager.held[l.name] = struct{}{}
	l.manager.acquired = append(l.manager.acquired, l.name)
	l.lost = make(chan struct{})
	return l.lost, nil
}

func (l *testLock) Unlock(_ context.Context) error {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()

	if _, ok := l.manager.held[l.name]; !ok {
		return nil
	}
	delete(l.manager.held, l.name)
	l.manager.released++
	close(l.lost)
	return nil
}

func (l *testLock) IsLocked() bool {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()

	_, ok := l.manager.held[l.name]
	return ok
}

func TestExecuteTransaction_CallerCancelledDuringInvoke(t *testing.T) {
	env := setup(t)
	data := &flakyMarkProvider{Provider: env.data}
	invoker := &funcInvoker{}
	executor := NewExecutor(data, invoker, env.clock, nil, withManualTestOverrides(&testOverrides{}))

	timelock := env.createTimelock(t, 0)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	ctx, cancel := context.WithCancel(env.ctx)
	defer cancel()
	invoker.fn = func(context.Context, *Invocation) error {
		cancel()
		return nil
	}

	record, err := executor.ExecuteTransaction(ctx, address)
	require.NoError(t, err)
	assert.True(t, record.IsExecuted)
	env.assertState(t, address, timelocktx_data.StateExecuted)

	_, err = executor.ExecuteTransaction(env.ctx, address)
	assert.Equal(t, ErrAlreadyExecuted, err)
	assert.EqualValues(t, 1, invoker.Calls())
}

func TestExecuteTransaction_TransientMarkFailure(t *testing.T) {
	env := setup(t)
	data := &flakyMarkProvider{Provider: env.data, failures: markExecutedAttempts - 1}
	invoker := &funcInvoker{}
	executor := NewExecutor(data, invoker, env.clock, nil, withManualTestOverrides(&testOverrides{}))

	timelock := env.createTimelock(t, 0)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	_, err := executor.ExecuteTransaction(env.ctx, address)
	require.NoError(t, err)
	env.assertState(t, address, timelocktx_data.StateExecuted)
	assert.EqualValues(t, markExecutedAttempts, data.Attempts())

	_, err = executor.ExecuteTransaction(env.ctx, address)
	assert.Equal(t, ErrAlreadyExecuted, err)
	assert.EqualValues(t, 1, invoker.Calls())
}

func TestExecuteTransaction_PersistentMarkFailure(t *testing.T) {
	env := setup(t)
	data := &flakyMarkProvider{Provider: env.data, failures: markExecutedAttempts}
	invoker := &funcInvoker{}
	executor := NewExecutor(data, invoker, env.clock, nil, withManualTestOverrides(&testOverrides{}))

	timelock := env.createTimelock(t, 0)
	address := env.queueTransaction(t, timelock.Address, env.newInstruction(t, timelock.SignerAddress))

	_, err := executor.ExecuteTransaction(env.ctx, address)
	assert.True(t, errors.Is(err, errSimulatedStoreFailure))
	assert.False(t, IsRetryable(err))
	assert.EqualValues(t, markExecutedAttempts, data.Attempts())
	assert.EqualValues(t, 1, invoker.Calls())
}

var errSimulatedStoreFailure = errors.New("simulated store failure")

// flakyMarkProvider fails the first failures state transitions, and rejects
// transitions on a done context the way a database driver would.
type flakyMarkProvider struct {
	code_data.Provider

	mu       sync.Mutex
	failures int
	attempts int
}

func (p *flakyMarkProvider) MarkTimelockTransactionExecuted(ctx context.Context, address string, executedAt time.Time) error {
	p.mu.Lock()
	p.attempts++
	fail := p.attempts <= p.failures
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if fail {
		return errSimulatedStoreFailure
	}
	return p.Provider.MarkTimelockTransactionExecuted(ctx, address, executedAt)
}

func (p *flakyMarkProvider) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

type funcInvoker struct {
	mu    sync.Mutex
	calls int
	fn    func(context.Context, *Invocation) error
}

func (i *funcInvoker) Invoke(ctx context.Context, invocation *Invocation) error {
	i.mu.Lock()
	i.calls++
	fn := i.fn
	i.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, invocation)
}

func (i *funcInvoker) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}
