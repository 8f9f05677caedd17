package timelock

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-timelock-server/pkg/solana"
	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
)

// Invoker dispatches an instruction to its target program on behalf of a
// timelock signer.
type Invoker interface {
	Invoke(ctx context.Context, invocation *Invocation) error
}

// Invocation is a single execution of a queued transaction
type Invocation struct {
	// The address of the queued transaction being executed
	Transaction string

	// The instruction to execute, with the timelock signer already marked as a
	// read only signer
	Instruction solana.Instruction

	Signer SignerProof
}

// SignerProof carries the seeds that derive a timelock signer. Only an
// Executor mints proofs, so possession of a verifiable proof means the signer
// is authorizing the instruction it accompanies.
type SignerProof struct {
	timelock ed25519.PublicKey
	nonce    uint8
}

func newSignerProof(timelock ed25519.PublicKey, nonce uint8) SignerProof {
	return SignerProof{
		timelock: append(ed25519.PublicKey{}, timelock...),
		nonce:    nonce,
	}
}

// Timelock is the timelock account the signer is derived from
func (p SignerProof) Timelock() ed25519.PublicKey {
	return append(ed25519.PublicKey{}, p.timelock...)
}

func (p SignerProof) Nonce() uint8 {
	return p.nonce
}

// Address re-derives the signer address from the proof's seeds
func (p SignerProof) Address() (ed25519.PublicKey, error) {
	if len(p.timelock) != ed25519.PublicKeySize {
		return nil, ErrInvalidAddress
	}
	return timelock_program.GetSignerAddressWithNonce(p.timelock, p.nonce)
}

// Verify checks that the proof derives the provided authority
func (p SignerProof) Verify(authority ed25519.PublicKey) bool {
	if len(p.timelock) != ed25519.PublicKeySize {
		return false
	}
	return solana.VerifyProgramAddress(authority, timelock_program.PROGRAM_ID, p.nonce, p.timelock)
}

// VerifyInstruction checks that every signer the instruction requires is the
// proven timelock signer.
func (p SignerProof) VerifyInstruction(ixn solana.Instruction) bool {
	signer, err := p.Address()
	if err != nil {
		return false
	}

	for _, required := range ixn.Signers() {
		if !bytes.Equal(required, signer) {
			return false
		}
	}
	return true
}

func (p SignerProof) String() string {
	signer, err := p.Address()
	if err != nil {
		return "<invalid>"
	}
	return base58.Encode(signer)
}
