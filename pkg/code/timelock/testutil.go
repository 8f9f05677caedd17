package timelock

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// TestInvoker is an Invoker that records invocations for tests
type TestInvoker struct {
	mu          sync.Mutex
	invocations []*Invocation
	shouldError bool
	delay       time.Duration
}

func NewTestInvoker() *TestInvoker {
	return &TestInvoker{}
}

func (i *TestInvoker) Invoke(ctx context.Context, invocation *Invocation) error {
	i.mu.Lock()
	shouldError := i.shouldError
	delay := i.delay
	i.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}

	if shouldError {
		return errors.New("simulated invocation failure")
	}

	i.mu.Lock()
	i.invocations = append(i.invocations, invocation)
	i.mu.Unlock()
	return nil
}

// GetInvocations returns the successful invocations, in order
func (i *TestInvoker) GetInvocations() []*Invocation {
	i.mu.Lock()
	defer i.mu.Unlock()

	copied := make([]*Invocation, len(i.invocations))
	copy(copied, i.invocations)
	return copied
}

func (i *TestInvoker) SimulateErrors() {
	i.mu.Lock()
	i.shouldError = true
	i.mu.Unlock()
}

func (i *TestInvoker) SimulateDelay(delay time.Duration) {
	i.mu.Lock()
	i.delay = delay
	i.mu.Unlock()
}

func (i *TestInvoker) Reset() {
	i.mu.Lock()
	i.shouldError = false
	i.delay = 0
	i.invocations = nil
	i.mu.Unlock()
}
