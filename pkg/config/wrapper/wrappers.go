package wrapper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/code-timelock-server/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

// Value adapts an untyped config.Config into a config.Typed. Values already of
// type T are used as is. Anything else goes through the coerce function.
type Value[T any] struct {
	source       config.Config
	defaultValue T
	coerce       func(raw interface{}) (T, error)

	stateMu   sync.RWMutex
	lastValue T
}

func newValue[T any](source config.Config, defaultValue T, coerce func(interface{}) (T, error)) *Value[T] {
	return &Value[T]{
		source:       source,
		defaultValue: defaultValue,
		coerce:       coerce,
		lastValue:    defaultValue,
	}
}

// GetSafe implements config.Typed.GetSafe. The default value is returned when
// the source has no value. On any other failure, the last known value is
// returned alongside the error.
func (v *Value[T]) GetSafe(ctx context.Context) (T, error) {
	raw, err := v.source.Get(ctx)
	if errors.Is(err, config.ErrNoValue) {
		v.remember(v.defaultValue)
		return v.defaultValue, nil
	} else if err != nil {
		return v.last(), err
	}

	var value T
	switch typed := raw.(type) {
	case T:
		value = typed
	default:
		if v.coerce == nil {
			return v.last(), ErrUnsuportedConversion
		}

		value, err = v.coerce(raw)
		if err != nil {
			return v.last(), err
		}
	}

	v.remember(value)
	return value, nil
}

// Get implements config.Typed.Get
func (v *Value[T]) Get(ctx context.Context) T {
	value, _ := v.GetSafe(ctx)
	return value
}

// Shutdown implements config.Typed.Shutdown
func (v *Value[T]) Shutdown() {
	v.source.Shutdown()
}

func (v *Value[T]) last() T {
	v.stateMu.RLock()
	defer v.stateMu.RUnlock()
	return v.lastValue
}

func (v *Value[T]) remember(value T) {
	v.stateMu.Lock()
	v.lastValue = value
	v.stateMu.Unlock()
}

// fromText builds a coerce function for sources that yield []byte
func fromText[T any](parse func(string) (T, error)) func(interface{}) (T, error) {
	return func(raw interface{}) (T, error) {
		text, ok := raw.([]byte)
		if !ok {
			var zero T
			return zero, ErrUnsuportedConversion
		}
		return parse(string(text))
	}
}

// NewBoolConfig returns a new bool config utility wrapper
func NewBoolConfig(source config.Config, defaultValue bool) config.Bool {
	return newValue(source, defaultValue, fromText(strconv.ParseBool))
}

// NewDurationConfig returns a new duration config utility wrapper. Text values
// use time.ParseDuration syntax.
func NewDurationConfig(source config.Config, defaultValue time.Duration) config.Duration {
	return newValue(source, defaultValue, fromText(time.ParseDuration))
}

// NewFloat64Config returns a new float64 config utility wrapper
func NewFloat64Config(source config.Config, defaultValue float64) config.Float64 {
	return newValue(source, defaultValue, fromText(func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}))
}

// NewStringConfig returns a new string config utility wrapper
func NewStringConfig(source config.Config, defaultValue string) config.String {
	return newValue(source, defaultValue, fromText(func(s string) (string, error) {
		return s, nil
	}))
}

// NewUint64Config returns a new uint64 config utility wrapper. Besides text,
// native uint and non-negative int values are accepted.
func NewUint64Config(source config.Config, defaultValue uint64) config.Uint64 {
	parseText := fromText(func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	})

	return newValue(source, defaultValue, func(raw interface{}) (uint64, error) {
		switch typed := raw.(type) {
		case uint:
			return uint64(typed), nil
		case int:
			if typed < 0 {
				return 0, errors.Errorf("config: negative value %d for uint64", typed)
			}
			return uint64(typed), nil
		default:
			return parseText(raw)
		}
	})
}
