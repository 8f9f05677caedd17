package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoValue indicates no value was set for the config
	ErrNoValue = errors.New("config: no value set")

	// ErrShutdown indicates the use of a Config after calling Shutdown
	ErrShutdown = errors.New("config: shutdown")
)

// Config is a source of raw, untyped configuration values. Sources backed by
// text, like environment variables, yield []byte.
type Config interface {
	// Get returns the latest config value
	Get(ctx context.Context) (interface{}, error)

	// Shutdown signals the config to stop all underlying resources
	Shutdown()
}

// Typed is a Config that yields values of a single type.
type Typed[T any] interface {
	// Get returns the latest value, or the last known value when the source
	// can't be read
	Get(ctx context.Context) T

	// GetSafe is Get with any source or conversion error propagated
	GetSafe(ctx context.Context) (T, error)

	Shutdown()
}

type (
	Bool     = Typed[bool]
	Duration = Typed[time.Duration]
	Float64  = Typed[float64]
	String   = Typed[string]
	Uint64   = Typed[uint64]
)
