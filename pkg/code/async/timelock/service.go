package async_timelock

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-timelock-server/pkg/clock"
	"github.com/code-payments/code-timelock-server/pkg/code/async"
	code_data "github.com/code-payments/code-timelock-server/pkg/code/data"
	"github.com/code-payments/code-timelock-server/pkg/code/timelock"
)

type service struct {
	log      *logrus.Entry
	conf     *conf
	data     code_data.Provider
	executor *timelock.Executor
	clock    clock.Clock

	retryMu sync.Mutex
	retries map[string]*retryState

	metricsMu            sync.Mutex
	executedTransactions int
	failedInvocations    int
}

// New returns a keeper that executes queued transactions once their delay
// has elapsed.
func New(data code_data.Provider, executor *timelock.Executor, clk clock.Clock, configProvider ConfigProvider) async.Service {
	return &service{
		log:      logrus.StandardLogger().WithField("service", "timelock_keeper"),
		conf:     configProvider(),
		data:     data,
		executor: executor,
		clock:    clk,
		retries:  make(map[string]*retryState),
	}
}

func (p *service) Start(ctx context.Context, interval time.Duration) error {
	go func() {
		err := p.worker(ctx, interval)
		if err != nil && err != context.Canceled {
			p.log.WithError(err).Warn("timelock keeper loop terminated unexpectedly")
		}
	}()

	go func() {
		err := p.metricsGaugeWorker(ctx)
		if err != nil && err != context.Canceled {
			p.log.WithError(err).Warn("timelock keeper metrics gauge loop terminated unexpectedly")
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}
