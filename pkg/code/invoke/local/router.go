package local

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-timelock-server/pkg/code/timelock"
	"github.com/code-payments/code-timelock-server/pkg/metrics"
	"github.com/code-payments/code-timelock-server/pkg/solana"
)

const (
	metricsStructName = "invoke.local.router"
)

var (
	ErrProgramAlreadyRegistered = errors.New("program already registered")
)

// Program processes instructions routed to it. Signer flags on the
// instruction's accounts have already been verified by the Router.
type Program interface {
	Process(ctx context.Context, ixn solana.Instruction) error
}

// Router is an in-process timelock.Invoker that dispatches instructions to
// registered programs by program ID.
type Router struct {
	log *logrus.Entry

	mu       sync.RWMutex
	programs map[string]Program
}

func NewRouter() *Router {
	return &Router{
		log:      logrus.StandardLogger().WithField("type", "invoke/local/router"),
		programs: make(map[string]Program),
	}
}

// Register registers a program under the provided ID
func (r *Router) Register(programId ed25519.PublicKey, program Program) error {
	if len(programId) != ed25519.PublicKeySize {
		return errors.New("invalid program id")
	}

	key := base58.Encode(programId)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.programs[key]; ok {
		return ErrProgramAlreadyRegistered
	}
	r.programs[key] = program

	r.log.WithField("program", key).Debug("program registered")
	return nil
}

// Invoke implements timelock.Invoker.Invoke
func (r *Router) Invoke(ctx context.Context, invocation *timelock.Invocation) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Invoke")
	defer tracer.End()

	ixn := invocation.Instruction

	log := r.log.WithFields(logrus.Fields{
		"method":      "Invoke",
		"program":     base58.Encode(ixn.Program),
		"transaction": invocation.Transaction,
		"signer":      invocation.Signer.String(),
	})

	err := func() error {
		r.mu.RLock()
		program, ok := r.programs[base58.Encode(ixn.Program)]
		r.mu.RUnlock()
		if !ok {
			return solana.NewInstructionError(0, solana.InstructionErrorUnsupportedProgramID)
		}

		// The only signature a timelock can provide is its own derived signer
		if !invocation.Signer.VerifyInstruction(ixn) {
			return solana.NewInstructionError(0, solana.InstructionErrorMissingRequiredSignature)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		return program.Process(ctx, ixn.Clone())
	}()

	if err != nil {
		log.WithError(err).Info("instruction failed")
	}

	tracer.OnError(err)
	return err
}
