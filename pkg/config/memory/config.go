package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/code-payments/code-timelock-server/pkg/config"
)

var errDeveloperInduced = errors.New("in memory config: developer induced error")

// Config is a mutable in memory config.Config. It backs test overrides, where
// values are set directly in their native type.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	induced  error
	shutdown bool
}

// NewConfig returns a config holding value. A nil value means no value is set.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

// Get implements config.Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.induced != nil:
		return nil, c.induced
	case c.value == nil:
		return nil, config.ErrNoValue
	default:
		return c.value, nil
	}
}

// Shutdown implements config.Config.Shutdown
func (c *Config) Shutdown() {
	c.update(func() { c.shutdown = true })
}

func (c *Config) SetValue(value interface{}) {
	c.update(func() { c.value = value })
}

// ClearValue makes subsequent calls to Get return config.ErrNoValue
func (c *Config) ClearValue() {
	c.SetValue(nil)
}

// InduceErrors makes subsequent calls to Get fail until StopInducingErrors
func (c *Config) InduceErrors() {
	c.update(func() { c.induced = errDeveloperInduced })
}

func (c *Config) StopInducingErrors() {
	c.update(func() { c.induced = nil })
}

func (c *Config) update(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}
