package async_timelock

import (
	"context"
	"time"

	timelocktx_data "github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	"github.com/code-payments/code-timelock-server/pkg/metrics"
)

const (
	transactionCountEventName     = "TimelockTransactionCountPollingCheck"
	executedTransactionMetricName = "TimelockKeeper_ExecutedTransactions"
	failedInvocationMetricName    = "TimelockKeeper_FailedInvocations"
	sweepDurationMetricName       = "TimelockKeeper_SweepDuration"
)

func (p *service) metricsGaugeWorker(ctx context.Context) error {
	delay := time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			start := time.Now()

			for _, state := range []timelocktx_data.State{
				timelocktx_data.StateQueued,
				timelocktx_data.StateExecuted,
			} {
				p.recordTransactionCountEvent(ctx, state)
			}
			p.recordKeeperCounts(ctx)

			delay = time.Second - time.Since(start)
		}
	}
}

func (p *service) recordTransactionCountEvent(ctx context.Context, state timelocktx_data.State) {
	count, err := p.data.GetTimelockTransactionCountByState(ctx, state)
	if err != nil {
		return
	}

	metrics.RecordEvent(ctx, transactionCountEventName, map[string]interface{}{
		"count": count,
		"state": state.String(),
	})
}

func (p *service) recordKeeperCounts(ctx context.Context) {
	p.metricsMu.Lock()
	executed := p.executedTransactions
	failed := p.failedInvocations
	p.executedTransactions = 0
	p.failedInvocations = 0
	p.metricsMu.Unlock()

	metrics.RecordCount(ctx, executedTransactionMetricName, uint64(executed))
	metrics.RecordCount(ctx, failedInvocationMetricName, uint64(failed))
}
