package webhook

import (
	"time"

	"github.com/code-payments/code-timelock-server/pkg/config"
	"github.com/code-payments/code-timelock-server/pkg/config/env"
	"github.com/code-payments/code-timelock-server/pkg/config/memory"
	"github.com/code-payments/code-timelock-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "TIMELOCK_WEBHOOK_"

	RequestTimeoutConfigEnvName = envConfigPrefix + "REQUEST_TIMEOUT"
	defaultRequestTimeout       = 5 * time.Second

	TokenTTLConfigEnvName = envConfigPrefix + "TOKEN_TTL"
	defaultTokenTTL       = time.Minute

	DefaultEndpointConfigEnvName = envConfigPrefix + "DEFAULT_ENDPOINT"
	defaultDefaultEndpoint       = ""

	RequireSecureEndpointsConfigEnvName = envConfigPrefix + "REQUIRE_SECURE_ENDPOINTS"
	defaultRequireSecureEndpoints       = true
)

type conf struct {
	requestTimeout         config.Duration
	tokenTTL               config.Duration
	defaultEndpoint        config.String
	requireSecureEndpoints config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			requestTimeout:         env.NewDurationConfig(RequestTimeoutConfigEnvName, defaultRequestTimeout),
			tokenTTL:               env.NewDurationConfig(TokenTTLConfigEnvName, defaultTokenTTL),
			defaultEndpoint:        env.NewStringConfig(DefaultEndpointConfigEnvName, defaultDefaultEndpoint),
			requireSecureEndpoints: env.NewBoolConfig(RequireSecureEndpointsConfigEnvName, defaultRequireSecureEndpoints),
		}
	}
}

type testOverrides struct {
	defaultEndpoint string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			requestTimeout:         wrapper.NewDurationConfig(memory.NewConfig(defaultRequestTimeout), defaultRequestTimeout),
			tokenTTL:               wrapper.NewDurationConfig(memory.NewConfig(defaultTokenTTL), defaultTokenTTL),
			defaultEndpoint:        wrapper.NewStringConfig(memory.NewConfig(overrides.defaultEndpoint), overrides.defaultEndpoint),
			requireSecureEndpoints: wrapper.NewBoolConfig(memory.NewConfig(false), false),
		}
	}
}
