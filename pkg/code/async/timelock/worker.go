package async_timelock

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	timelocktx_data "github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	"github.com/code-payments/code-timelock-server/pkg/code/timelock"
	"github.com/code-payments/code-timelock-server/pkg/metrics"
	"github.com/code-payments/code-timelock-server/pkg/retry"
	"github.com/code-payments/code-timelock-server/pkg/retry/backoff"
	sync_util "github.com/code-payments/code-timelock-server/pkg/sync"
)

type retryState struct {
	attempts      uint
	nextAttemptAt time.Time
}

func (p *service) worker(serviceCtx context.Context, interval time.Duration) error {
	delay := interval

	err := retry.Loop(
		func() (err error) {
			select {
			case <-serviceCtx.Done():
				return serviceCtx.Err()
			case <-time.After(delay):
			}

			tracedCtx, end := metrics.StartTransaction(serviceCtx, "async__timelock_keeper__execute_ready")
			defer func() {
				end(err)
			}()

			return p.executeReadyTransactions(tracedCtx)
		},
		retry.NonRetriableErrors(context.Canceled),
		retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), time.Minute, 0.1),
	)

	return err
}

// executeReadyTransactions executes a batch of transactions whose delay has
// elapsed. Transactions whose target failed are skipped until their retry
// delay passes.
func (p *service) executeReadyTransactions(ctx context.Context) error {
	start := time.Now()
	now := p.clock.Now()

	items, err := p.getReadyBatch(ctx, now)
	if err != nil {
		return err
	} else if len(items) == 0 {
		return nil
	}

	// Transactions of the same timelock go to the same worker, so they're
	// executed one at a time in executable order
	workers := sync_util.NewStripedChannel[*timelocktx_data.Record](uint(p.conf.workerConcurrency.Get(ctx)), uint(len(items)))

	var wg sync.WaitGroup
	for _, receiver := range workers.GetChannels() {
		wg.Add(1)
		go func(receiver <-chan *timelocktx_data.Record) {
			defer wg.Done()

			for record := range receiver {
				p.handleReady(ctx, record)
			}
		}(receiver)
	}

	for _, item := range items {
		workers.BlockingSend([]byte(item.Timelock), item)
	}

	workers.Close()
	wg.Wait()

	metrics.RecordDuration(ctx, sweepDurationMetricName, time.Since(start))

	return nil
}

// getReadyBatch pages through executable transactions until it has a full
// batch that isn't backing off, so failing targets can't hold up the rest.
func (p *service) getReadyBatch(ctx context.Context, now time.Time) ([]*timelocktx_data.Record, error) {
	limit := p.conf.workerBatchSize.Get(ctx)
	if limit == 0 {
		limit = defaultWorkerBatchSize
	}

	var batch []*timelocktx_data.Record
	var cursor timelocktx_data.ExecutableCursor
	for {
		page, err := p.data.GetAllExecutableTimelockTransactions(ctx, now, cursor, limit)
		if err == timelocktx_data.ErrTransactionNotFound {
			return batch, nil
		} else if err != nil {
			return nil, err
		}

		for _, item := range page {
			if !p.isReadyForAttempt(item.Address, now) {
				continue
			}

			batch = append(batch, item)
			if uint64(len(batch)) >= limit {
				return batch, nil
			}
		}

		if uint64(len(page)) < limit {
			return batch, nil
		}
		cursor = page[len(page)-1].ToExecutableCursor()
	}
}

func (p *service) handleReady(ctx context.Context, record *timelocktx_data.Record) {
	log := p.log.WithFields(logrus.Fields{
		"method":      "handleReady",
		"transaction": record.Address,
		"timelock":    record.Timelock,
	})

	_, err := p.executor.ExecuteTransaction(ctx, record.Address)
	switch {
	case err == nil:
		p.clearRetry(record.Address)

		p.metricsMu.Lock()
		p.executedTransactions++
		p.metricsMu.Unlock()

		log.Debug("transaction executed")
	case errors.Is(err, timelock.ErrAlreadyExecuted):
		// Executed through another path since it was fetched
		p.clearRetry(record.Address)
	case timelock.IsRetryable(err):
		attempts, nextAttemptAt := p.scheduleRetry(record.Address)

		p.metricsMu.Lock()
		p.failedInvocations++
		p.metricsMu.Unlock()

		log.WithError(err).WithFields(logrus.Fields{
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
		}).Info("transaction execution failed and will be retried")
	default:
		attempts, nextAttemptAt := p.scheduleRetry(record.Address)

		log.WithError(err).WithFields(logrus.Fields{
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
		}).Warn("failure executing transaction")
	}
}

func (p *service) isReadyForAttempt(address string, now time.Time) bool {
	p.retryMu.Lock()
	defer p.retryMu.Unlock()

	state, ok := p.retries[address]
	if !ok {
		return true
	}
	return !now.Before(state.nextAttemptAt)
}

func (p *service) scheduleRetry(address string) (uint, time.Time) {
	ctx := context.Background()

	p.retryMu.Lock()
	defer p.retryMu.Unlock()

	state, ok := p.retries[address]
	if !ok {
		state = &retryState{}
		p.retries[address] = state
	}

	state.attempts++

	schedule := backoff.Capped(backoff.BinaryExponential(p.conf.baseRetryDelay.Get(ctx)), p.conf.maxRetryDelay.Get(ctx))
	state.nextAttemptAt = p.clock.Now().Add(schedule(state.attempts))
	return state.attempts, state.nextAttemptAt
}

func (p *service) clearRetry(address string) {
	p.retryMu.Lock()
	delete(p.retries, address)
	p.retryMu.Unlock()
}
