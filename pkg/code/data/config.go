package data

import (
	"github.com/code-payments/code-timelock-server/pkg/config"
	"github.com/code-payments/code-timelock-server/pkg/config/env"
)

const (
	envConfigPrefix = "DATA_"

	TimelockCacheBudgetConfigEnvName = envConfigPrefix + "TIMELOCK_CACHE_BUDGET"
	defaultTimelockCacheBudget       = 100000
)

type conf struct {
	timelockCacheBudget config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			timelockCacheBudget: env.NewUint64Config(TimelockCacheBudgetConfigEnvName, defaultTimelockCacheBudget),
		}
	}
}
