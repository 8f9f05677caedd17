package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-timelock-server/pkg/config"
)

func TestConfig(t *testing.T) {
	const name = "TIMELOCK_ENV_CONFIG_TEST_VAR"

	t.Setenv(name, "value")
	v, err := NewConfig(name).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), v)

	v, err = NewConfig("timelock_env_config_test_var").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), v)

	t.Setenv(name, "   ")
	_, err = NewConfig(name).Get(context.Background())
	assert.Equal(t, config.ErrNoValue, err)

	_, err = NewConfig("TIMELOCK_ENV_CONFIG_TEST_UNSET").Get(context.Background())
	assert.Equal(t, config.ErrNoValue, err)
}

func TestTypedConfigs(t *testing.T) {
	ctx := context.Background()

	t.Setenv("TIMELOCK_ENV_TEST_DURATION", "3s")
	t.Setenv("TIMELOCK_ENV_TEST_UINT", "64")

	assert.Equal(t, 3*time.Second, NewDurationConfig("TIMELOCK_ENV_TEST_DURATION", time.Second).Get(ctx))
	assert.EqualValues(t, 64, NewUint64Config("TIMELOCK_ENV_TEST_UINT", 1).Get(ctx))
	assert.Equal(t, "fallback", NewStringConfig("TIMELOCK_ENV_TEST_STRING", "fallback").Get(ctx))
	assert.True(t, NewBoolConfig("TIMELOCK_ENV_TEST_BOOL", true).Get(ctx))
	assert.Equal(t, 2.5, NewFloat64Config("TIMELOCK_ENV_TEST_FLOAT", 2.5).Get(ctx))
}
