package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the raw app section of the config, which App.Init decodes
type Config map[string]interface{}

// BaseConfig configures the process hosting the App
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	ListenAddress         string `mapstructure:"listen_address"`
	InsecureListenAddress string `mapstructure:"insecure_listen_address"`
	DebugListenAddress    string `mapstructure:"debug_listen_address"`

	// HTTPListenAddress is where the JSON API is served
	HTTPListenAddress     string        `mapstructure:"http_listen_address"`
	HTTPReadHeaderTimeout time.Duration `mapstructure:"http_read_header_timeout"`

	// TLSCertificate and TLSKey are optional URLs loaded with LoadFile. When
	// set, the gRPC server on ListenAddress uses TLS.
	TLSCertificate string `mapstructure:"tls_certificate"`
	TLSKey         string `mapstructure:"tls_private_key"`

	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`

	// Heap ballast sized as a fraction of total memory, capped at 0.5
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// Restarts the process on a cron schedule
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	// AppConfig is passed through to App.Init undecoded
	AppConfig Config `mapstructure:"app"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",

	ListenAddress:         ":8085",
	InsecureListenAddress: "localhost:8086",
	DebugListenAddress:    ":8123",

	HTTPListenAddress:     ":8080",
	HTTPReadHeaderTimeout: 10 * time.Second,

	ShutdownGracePeriod: 30 * time.Second,

	EnablePprof:  true,
	EnableExpvar: true,

	EnableBallast:   true,
	BallastCapacity: 0.333,

	EnableMemoryLeakCron:   false,
	MemoryLeakCronSchedule: "0 5 * * *",
}

// configKeys are the BaseConfig keys that can be set through the environment,
// using the upper cased key as the variable name
var configKeys = []string{
	"log_level",
	"app_name",

	"listen_address",
	"insecure_listen_address",
	"debug_listen_address",

	"http_listen_address",
	"http_read_header_timeout",

	"tls_certificate",
	"tls_private_key",

	"shutdown_grace_period",

	"enable_pprof",
	"enable_expvar",

	"enable_ballast",
	"ballast_capacity",

	"enable_memory_leak_cron",
	"memory_leak_cron_schedule",

	"new_relic_license_key",
}

func init() {
	for _, key := range configKeys {
		_ = viper.BindEnv(key, strings.ToUpper(key))
	}
}
