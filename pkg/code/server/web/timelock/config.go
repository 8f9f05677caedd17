package timelock

import (
	"github.com/code-payments/code-timelock-server/pkg/config"
	"github.com/code-payments/code-timelock-server/pkg/config/env"
	"github.com/code-payments/code-timelock-server/pkg/config/memory"
	"github.com/code-payments/code-timelock-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "TIMELOCK_API_"

	QueueRateLimitConfigEnvName = envConfigPrefix + "QUEUE_RATE_LIMIT"
	defaultQueueRateLimit       = 10

	MaxPageSizeConfigEnvName = envConfigPrefix + "MAX_PAGE_SIZE"
	defaultMaxPageSize       = 100
)

type conf struct {
	queueRateLimit config.Float64
	maxPageSize    config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			queueRateLimit: env.NewFloat64Config(QueueRateLimitConfigEnvName, defaultQueueRateLimit),
			maxPageSize:    env.NewUint64Config(MaxPageSizeConfigEnvName, defaultMaxPageSize),
		}
	}
}

type testOverrides struct {
	queueRateLimit float64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		queueRateLimit := overrides.queueRateLimit
		if queueRateLimit == 0 {
			queueRateLimit = 1000
		}

		return &conf{
			queueRateLimit: wrapper.NewFloat64Config(memory.NewConfig(queueRateLimit), queueRateLimit),
			maxPageSize:    wrapper.NewUint64Config(memory.NewConfig(uint64(defaultMaxPageSize)), defaultMaxPageSize),
		}
	}
}
