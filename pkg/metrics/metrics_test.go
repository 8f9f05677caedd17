package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNoApplication(t *testing.T) {
	ctx := NewContext(context.Background(), nil)
	assert.Nil(t, ctx.Value(NewRelicContextKey{}))

	// None of these should panic without an application or transaction
	RecordCount(ctx, "count", 1)
	RecordDuration(ctx, "duration", time.Second)
	RecordEvent(ctx, "event", map[string]interface{}{"key": "value"})

	tracedCtx, end := StartTransaction(ctx, "txn")
	assert.Equal(t, ctx, tracedCtx)
	end(errors.New("failure"))

	tracer := TraceMethodCall(tracedCtx, "component", "Method")
	assert.Nil(t, tracer)
	tracer.AddAttribute("key", "value")
	tracer.AddAttributes(map[string]interface{}{"key": "value"})
	tracer.OnError(errors.New("failure"))
	tracer.End()
}

func TestForwardedMessage(t *testing.T) {
	entry := logrus.NewEntry(logrus.StandardLogger())
	entry.Message = "message"
	assert.Equal(t, "message", forwardedMessage(entry))

	entry = entry.WithFields(logrus.Fields{
		"type":  "component",
		"error": errors.New("failure"),
	})
	entry.Message = "message"
	assert.Equal(t, `message="message", error="failure", data={"type":"component"}`, forwardedMessage(entry))

	entry = logrus.NewEntry(logrus.StandardLogger()).WithField("count", 3)
	entry.Message = "message"
	assert.Equal(t, `message="message", error=<nil>, data={"count":3}`, forwardedMessage(entry))
}
