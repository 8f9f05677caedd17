package timelock

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-timelock-server/pkg/clock"
	code_data "github.com/code-payments/code-timelock-server/pkg/code/data"
	timelock_data "github.com/code-payments/code-timelock-server/pkg/code/data/timelock"
	timelocktx_data "github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	"github.com/code-payments/code-timelock-server/pkg/database/query"
	"github.com/code-payments/code-timelock-server/pkg/lock"
	"github.com/code-payments/code-timelock-server/pkg/metrics"
	"github.com/code-payments/code-timelock-server/pkg/retry"
	"github.com/code-payments/code-timelock-server/pkg/retry/backoff"
	"github.com/code-payments/code-timelock-server/pkg/solana"
	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
	sync_util "github.com/code-payments/code-timelock-server/pkg/sync"
)

const (
	metricsStructName = "timelock.executor"

	markExecutedTimeout    = 5 * time.Second
	markExecutedAttempts   = 5
	markExecutedRetryDelay = 100 * time.Millisecond
)

var (
	errExecutionLockLost = errors.New("execution lock lost")
)

// Executor creates timelocks, queues transactions against them, and executes
// queued transactions once their delay has elapsed.
type Executor struct {
	log     *logrus.Entry
	conf    *conf
	data    code_data.Provider
	invoker Invoker
	clock   clock.Clock

	executionLocks   *sync_util.StripedLock
	distributedLocks lock.Manager
}

// NewExecutor returns a new Executor. The lock manager is optional, and is
// only required when multiple processes execute against the same data.
func NewExecutor(
	data code_data.Provider,
	invoker Invoker,
	clk clock.Clock,
	distributedLocks lock.Manager,
	configProvider ConfigProvider,
) *Executor {
	conf := configProvider()
	return &Executor{
		log:     logrus.StandardLogger().WithField("type", "timelock/executor"),
		conf:    conf,
		data:    data,
		invoker: invoker,
		clock:   clk,

		executionLocks:   sync_util.NewStripedLock(uint(conf.executionLockStripes.Get(context.Background()))),
		distributedLocks: distributedLocks,
	}
}

// CreateTimelock creates a timelock at the provided address with a fixed delay.
// The nonce must derive a signer for the address, but need not be canonical.
func (e *Executor) CreateTimelock(ctx context.Context, address string, delay time.Duration, nonce uint8) (*timelock_data.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateTimelock")
	defer tracer.End()

	log := e.log.WithFields(logrus.Fields{
		"method":  "CreateTimelock",
		"address": address,
		"delay":   delay,
		"nonce":   nonce,
	})

	record, err := func() (*timelock_data.Record, error) {
		if delay < 0 || delay%time.Second != 0 {
			return nil, ErrInvalidDelay
		}

		if _, err := decodeAddress(address); err != nil {
			return nil, err
		}

		signer, err := timelock_data.GetSignerAddress(address, nonce)
		if err != nil {
			return nil, ErrInvalidNonce
		}

		record := &timelock_data.Record{
			Address:       address,
			SignerAddress: signer,
			Nonce:         nonce,
			Delay:         delay,
			CreatedAt:     e.clock.Now(),
		}

		err = e.data.SaveTimelock(ctx, record)
		switch err {
		case nil:
		case timelock_data.ErrTimelockExists:
			return nil, ErrTimelockExists
		default:
			log.WithError(err).Warn("failure saving timelock")
			return nil, err
		}

		log.WithField("signer", signer).Debug("timelock created")
		return record, nil
	}()

	tracer.OnError(err)
	return record, err
}

// QueueTransaction queues an instruction against a timelock. It becomes
// executable once the timelock's delay, measured from now, has elapsed.
func (e *Executor) QueueTransaction(ctx context.Context, timelock, address string, ixn solana.Instruction) (*timelocktx_data.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "QueueTransaction")
	defer tracer.End()

	log := e.log.WithFields(logrus.Fields{
		"method":      "QueueTransaction",
		"timelock":    timelock,
		"transaction": address,
	})

	record, err := func() (*timelocktx_data.Record, error) {
		if _, err := decodeAddress(timelock); err != nil {
			return nil, err
		}
		if _, err := decodeAddress(address); err != nil {
			return nil, err
		}

		accounts, err := validateInstruction(ixn)
		if err != nil {
			return nil, err
		}

		timelockRecord, err := e.data.GetTimelockByAddress(ctx, timelock)
		switch err {
		case nil:
		case timelock_data.ErrTimelockNotFound:
			return nil, ErrTimelockNotFound
		default:
			log.WithError(err).Warn("failure getting timelock")
			return nil, err
		}

		now := e.clock.Now()
		record := &timelocktx_data.Record{
			Address:  address,
			Timelock: timelockRecord.Address,

			Program:  base58.Encode(ixn.Program),
			Accounts: accounts,
			Data:     append([]byte{}, ixn.Data...),

			ExecutableAt: now.Add(timelockRecord.Delay),

			CreatedAt: now,
		}

		err = e.data.SaveTimelockTransaction(ctx, record)
		switch err {
		case nil:
		case timelocktx_data.ErrTransactionExists:
			return nil, ErrTransactionExists
		default:
			log.WithError(err).Warn("failure saving transaction")
			return nil, err
		}

		log.WithField("executable_at", record.ExecutableAt).Debug("transaction queued")
		return record, nil
	}()

	tracer.OnError(err)
	return record, err
}

// ExecuteTransaction executes a queued transaction on behalf of its timelock's
// signer. A transaction executes successfully at most once.
func (e *Executor) ExecuteTransaction(ctx context.Context, address string) (*timelocktx_data.Record, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ExecuteTransaction")
	defer tracer.End()

	log := e.log.WithFields(logrus.Fields{
		"method":      "ExecuteTransaction",
		"transaction": address,
	})

	record, err := func() (*timelocktx_data.Record, error) {
		if _, err := decodeAddress(address); err != nil {
			return nil, err
		}

		// The check, invocation and state transition happen under a single
		// lock, so concurrent calls for the same transaction are serialized.
		mu := e.executionLocks.Get([]byte(address))
		mu.Lock()
		defer mu.Unlock()

		lockLost, unlock, err := e.acquireDistributedLock(ctx, address)
		if err != nil {
			log.WithError(err).Warn("failure acquiring distributed lock")
			return nil, err
		}
		defer unlock()

		record, err := e.data.GetTimelockTransaction(ctx, address)
		switch err {
		case nil:
		case timelocktx_data.ErrTransactionNotFound:
			return nil, ErrTransactionNotFound
		default:
			log.WithError(err).Warn("failure getting transaction")
			return nil, err
		}

		log = log.WithField("timelock", record.Timelock)

		if record.IsExecuted {
			return nil, ErrAlreadyExecuted
		}

		if !record.IsExecutable(e.clock.Now()) {
			return nil, ErrDelayNotElapsed
		}

		timelockRecord, err := e.data.GetTimelockByAddress(ctx, record.Timelock)
		switch err {
		case nil:
		case timelock_data.ErrTimelockNotFound:
			return nil, ErrTimelockNotFound
		default:
			log.WithError(err).Warn("failure getting timelock")
			return nil, err
		}

		invocation, err := newInvocation(timelockRecord, record)
		if err != nil {
			log.WithError(err).Warn("failure building invocation")
			return nil, err
		}

		err = e.invoke(ctx, invocation)
		if err != nil {
			log.WithError(err).Info("target invocation failed")
			return nil, &TargetInvocationError{Err: err}
		}

		select {
		case <-lockLost:
			// The invocation happened, but another process may now hold the
			// lock. The state transition below still guarantees a single
			// recorded execution.
			log.Warn("distributed lock lost during invocation")
		default:
		}

		// The target has run, so the state transition must not be abandoned
		// because the caller went away.
		executedAt := e.clock.Now()
		err = e.markExecuted(context.WithoutCancel(ctx), address, executedAt)
		switch err {
		case nil:
		case timelocktx_data.ErrAlreadyExecuted:
			log.Warn("transaction was concurrently executed")
			return nil, ErrAlreadyExecuted
		default:
			log.WithError(err).Error("transaction invoked but not marked as executed")
			return nil, err
		}

		updated := record.Clone()
		updated.IsExecuted = true
		updated.ExecutedAt = &executedAt

		log.Debug("transaction executed")
		return updated, nil
	}()

	tracer.OnError(err)
	return record, err
}

// GetTimelock gets a timelock by address
func (e *Executor) GetTimelock(ctx context.Context, address string) (*timelock_data.Record, error) {
	record, err := e.data.GetTimelockByAddress(ctx, address)
	if err == timelock_data.ErrTimelockNotFound {
		return nil, ErrTimelockNotFound
	}
	return record, err
}

// GetTransaction gets a queued transaction by address
func (e *Executor) GetTransaction(ctx context.Context, address string) (*timelocktx_data.Record, error) {
	record, err := e.data.GetTimelockTransaction(ctx, address)
	if err == timelocktx_data.ErrTransactionNotFound {
		return nil, ErrTransactionNotFound
	}
	return record, err
}

// GetTransactionsByTimelock gets a page of transactions queued against a
// timelock. An existing timelock without transactions yields an empty page.
func (e *Executor) GetTransactionsByTimelock(ctx context.Context, timelock string, opts ...query.Option) ([]*timelocktx_data.Record, error) {
	if _, err := e.GetTimelock(ctx, timelock); err != nil {
		return nil, err
	}

	records, err := e.data.GetAllTimelockTransactionsByTimelock(ctx, timelock, opts...)
	switch err {
	case nil:
		return records, nil
	case timelocktx_data.ErrTransactionNotFound:
		return nil, nil
	default:
		return nil, err
	}
}

func (e *Executor) invoke(ctx context.Context, invocation *Invocation) error {
	invokeCtx, cancel := context.WithTimeout(ctx, e.conf.invokeTimeout.Get(ctx))
	defer cancel()

	return e.invoker.Invoke(invokeCtx, invocation)
}

func (e *Executor) markExecuted(ctx context.Context, address string, executedAt time.Time) error {
	_, err := retry.Retry(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, markExecutedTimeout)
			defer cancel()

			return e.data.MarkTimelockTransactionExecuted(attemptCtx, address, executedAt)
		},
		retry.NonRetriableErrors(timelocktx_data.ErrAlreadyExecuted),
		retry.Limit(markExecutedAttempts),
		retry.Backoff(backoff.Constant(markExecutedRetryDelay), markExecutedRetryDelay),
	)
	return err
}

func (e *Executor) acquireDistributedLock(ctx context.Context, address string) (<-chan struct{}, func(), error) {
	if e.distributedLocks == nil {
		return nil, func() {}, nil
	}

	distributedLock, err := e.distributedLocks.Create(ctx, e.conf.distributedLockPrefix.Get(ctx)+address)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating distributed lock")
	}

	lost, err := distributedLock.Acquire(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error acquiring distributed lock")
	}

	select {
	case <-lost:
		distributedLock.Unlock(context.Background())
		return nil, nil, errExecutionLockLost
	default:
	}

	unlock := func() {
		if err := distributedLock.Unlock(context.Background()); err != nil {
			e.log.WithError(err).WithField("transaction", address).Warn("failure releasing distributed lock")
		}
	}
	return lost, unlock, nil
}

func newInvocation(timelockRecord *timelock_data.Record, record *timelocktx_data.Record) (*Invocation, error) {
	timelockAddress, err := decodeAddress(timelockRecord.Address)
	if err != nil {
		return nil, err
	}

	signer, err := decodeAddress(timelockRecord.SignerAddress)
	if err != nil {
		return nil, err
	}

	programAccount, err := record.ToProgramAccount()
	if err != nil {
		return nil, err
	}

	proof := newSignerProof(timelockAddress, timelockRecord.Nonce)
	if !proof.Verify(signer) {
		return nil, errors.New("timelock signer does not match derivation")
	}

	return &Invocation{
		Transaction: record.Address,
		Instruction: timelock_program.GetExecutableInstruction(programAccount, signer),
		Signer:      proof,
	}, nil
}

func validateInstruction(ixn solana.Instruction) ([]timelocktx_data.AccountMeta, error) {
	if len(ixn.Program) != ed25519.PublicKeySize {
		return nil, errors.Wrap(ErrInvalidInstruction, "invalid program")
	}

	accounts := make([]timelocktx_data.AccountMeta, len(ixn.Accounts))
	for i, account := range ixn.Accounts {
		if len(account.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.Wrapf(ErrInvalidInstruction, "invalid account at index %d", i)
		}

		accounts[i] = timelocktx_data.AccountMeta{
			PublicKey:  base58.Encode(account.PublicKey),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	programAccount := &timelock_program.TransactionAccount{
		ProgramId: ixn.Program,
		Data:      ixn.Data,
	}
	for _, account := range ixn.Accounts {
		programAccount.Accounts = append(programAccount.Accounts, timelock_program.TransactionAccountMetaFromAccountMeta(account))
	}
	if programAccount.Size() > timelock_program.TransactionAccountAllocatedSize {
		return nil, errors.Wrapf(ErrInvalidInstruction, "instruction exceeds %d bytes when queued", timelock_program.TransactionAccountAllocatedSize)
	}

	return accounts, nil
}

func decodeAddress(address string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrInvalidAddress, "%q", address)
	}
	return decoded, nil
}
