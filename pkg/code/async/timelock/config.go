package async_timelock

import (
	"time"

	"github.com/code-payments/code-timelock-server/pkg/config"
	"github.com/code-payments/code-timelock-server/pkg/config/env"
	"github.com/code-payments/code-timelock-server/pkg/config/memory"
	"github.com/code-payments/code-timelock-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "TIMELOCK_KEEPER_"

	WorkerBatchSizeConfigEnvName = envConfigPrefix + "WORKER_BATCH_SIZE"
	defaultWorkerBatchSize       = 100

	WorkerConcurrencyConfigEnvName = envConfigPrefix + "WORKER_CONCURRENCY"
	defaultWorkerConcurrency       = 16

	BaseRetryDelayConfigEnvName = envConfigPrefix + "BASE_RETRY_DELAY"
	defaultBaseRetryDelay       = time.Second

	MaxRetryDelayConfigEnvName = envConfigPrefix + "MAX_RETRY_DELAY"
	defaultMaxRetryDelay       = time.Hour
)

type conf struct {
	workerBatchSize   config.Uint64
	workerConcurrency config.Uint64
	baseRetryDelay    config.Duration
	maxRetryDelay     config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			workerBatchSize:   env.NewUint64Config(WorkerBatchSizeConfigEnvName, defaultWorkerBatchSize),
			workerConcurrency: env.NewUint64Config(WorkerConcurrencyConfigEnvName, defaultWorkerConcurrency),
			baseRetryDelay:    env.NewDurationConfig(BaseRetryDelayConfigEnvName, defaultBaseRetryDelay),
			maxRetryDelay:     env.NewDurationConfig(MaxRetryDelayConfigEnvName, defaultMaxRetryDelay),
		}
	}
}

type testOverrides struct {
	workerBatchSize uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	workerBatchSize := uint64(defaultWorkerBatchSize)
	if overrides.workerBatchSize > 0 {
		workerBatchSize = overrides.workerBatchSize
	}

	return func() *conf {
		return &conf{
			workerBatchSize:   wrapper.NewUint64Config(memory.NewConfig(workerBatchSize), workerBatchSize),
			workerConcurrency: wrapper.NewUint64Config(memory.NewConfig(uint64(defaultWorkerConcurrency)), defaultWorkerConcurrency),
			baseRetryDelay:    wrapper.NewDurationConfig(memory.NewConfig(defaultBaseRetryDelay), defaultBaseRetryDelay),
			maxRetryDelay:     wrapper.NewDurationConfig(memory.NewConfig(defaultMaxRetryDelay), defaultMaxRetryDelay),
		}
	}
}
