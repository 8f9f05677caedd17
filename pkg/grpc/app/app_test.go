package app

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	_, err := loadConfig()
	assert.Error(t, err)

	viper.Set("app_name", "timelock")
	viper.Set("http_listen_address", ":9090")
	viper.Set("shutdown_grace_period", "5s")
	viper.Set("app", map[string]interface{}{"invoker": "local"})
	defer func() {
		viper.Set("app_name", "")
		viper.Set("http_listen_address", defaultConfig.HTTPListenAddress)
		viper.Set("shutdown_grace_period", defaultConfig.ShutdownGracePeriod.String())
		viper.Set("app", map[string]interface{}{})
	}()

	config, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "timelock", config.AppName)
	assert.Equal(t, ":9090", config.HTTPListenAddress)
	assert.Equal(t, 5*time.Second, config.ShutdownGracePeriod)
	assert.Equal(t, "local", config.AppConfig["invoker"])

	assert.Equal(t, defaultConfig.LogLevel, config.LogLevel)
	assert.Equal(t, defaultConfig.InsecureListenAddress, config.InsecureListenAddress)
	assert.Equal(t, defaultConfig.HTTPReadHeaderTimeout, config.HTTPReadHeaderTimeout)
}

func TestGetBallastSize(t *testing.T) {
	config := defaultConfig

	config.BallastCapacity = 0.25
	assert.EqualValues(t, 250, getBallastSize(config, 1000))

	config.BallastCapacity = 0.9
	assert.EqualValues(t, 500, getBallastSize(config, 1000))

	config.BallastCapacity = -1
	assert.EqualValues(t, 0, getBallastSize(config, 1000))
}
