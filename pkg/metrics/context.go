package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicContextKey is the context key under which the New Relic application
// is made available to downstream code.
type NewRelicContextKey struct{}

// NewContext returns a context carrying the New Relic application. A nil
// application leaves the context unchanged.
func NewContext(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, NewRelicContextKey{}, app)
}

// StartTransaction starts a background transaction for the New Relic
// application in the context, if there is one. The returned end func must be
// called once the work completes.
func StartTransaction(ctx context.Context, name string) (context.Context, func(err error)) {
	nr, ok := fromContext(ctx)
	if !ok {
		return ctx, func(error) {}
	}

	txn := nr.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), func(err error) {
		if err != nil {
			txn.NoticeError(err)
		}
		txn.End()
	}
}
