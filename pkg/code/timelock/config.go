package timelock

import (
	"time"

	"github.com/code-payments/code-timelock-server/pkg/config"
	"github.com/code-payments/code-timelock-server/pkg/config/env"
	"github.com/code-payments/code-timelock-server/pkg/config/memory"
	"github.com/code-payments/code-timelock-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "TIMELOCK_EXECUTOR_"

	InvokeTimeoutConfigEnvName = envConfigPrefix + "INVOKE_TIMEOUT"
	defaultInvokeTimeout       = 10 * time.Second

	ExecutionLockStripesConfigEnvName = envConfigPrefix + "EXECUTION_LOCK_STRIPES"
	defaultExecutionLockStripes       = 1024

	DistributedLockPrefixConfigEnvName = envConfigPrefix + "DISTRIBUTED_LOCK_PREFIX"
	defaultDistributedLockPrefix       = "/timelock/execute/"
)

type conf struct {
	invokeTimeout         config.Duration
	executionLockStripes  config.Uint64
	distributedLockPrefix config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			invokeTimeout:         env.NewDurationConfig(InvokeTimeoutConfigEnvName, defaultInvokeTimeout),
			executionLockStripes:  env.NewUint64Config(ExecutionLockStripesConfigEnvName, defaultExecutionLockStripes),
			distributedLockPrefix: env.NewStringConfig(DistributedLockPrefixConfigEnvName, defaultDistributedLockPrefix),
		}
	}
}

type testOverrides struct {
	invokeTimeout time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	invokeTimeout := defaultInvokeTimeout
	if overrides.invokeTimeout > 0 {
		invokeTimeout = overrides.invokeTimeout
	}

	return func() *conf {
		return &conf{
			invokeTimeout:         wrapper.NewDurationConfig(memory.NewConfig(invokeTimeout), invokeTimeout),
			executionLockStripes:  wrapper.NewUint64Config(memory.NewConfig(uint64(defaultExecutionLockStripes)), defaultExecutionLockStripes),
			distributedLockPrefix: wrapper.NewStringConfig(memory.NewConfig(defaultDistributedLockPrefix), defaultDistributedLockPrefix),
		}
	}
}
