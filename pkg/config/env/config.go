package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/code-payments/code-timelock-server/pkg/config"
	"github.com/code-payments/code-timelock-server/pkg/config/wrapper"
)

// variable is a config.Config read once from the process environment. Blank
// variables count as unset.
type variable struct {
	name  string
	value string
}

// NewConfig returns a config backed by the environment variable key. The
// key is upper cased before lookup.
func NewConfig(key string) config.Config {
	name := strings.ToUpper(key)
	value, _ := os.LookupEnv(name)

	return &variable{
		name:  name,
		value: strings.TrimSpace(value),
	}
}

// Get implements config.Config.Get
func (v *variable) Get(_ context.Context) (interface{}, error) {
	if len(v.value) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(v.value), nil
}

// Shutdown implements config.Config.Shutdown
func (v *variable) Shutdown() {
}

func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}

func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}

func NewFloat64Config(key string, defaultValue float64) config.Float64 {
	return wrapper.NewFloat64Config(NewConfig(key), defaultValue)
}

func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}
