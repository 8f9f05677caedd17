package local

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-timelock-server/pkg/solana"
)

var (
	puppetAccountDiscriminator      = []byte{47, 166, 10, 31, 41, 58, 94, 167}
	setDataInstructionDiscriminator = []byte{223, 114, 91, 136, 197, 78, 153, 153}
)

const (
	PuppetAccountSize = (8 + // discriminator
		8) // data

	setDataInstructionSize = (8 + // discriminator
		8) // data
)

var (
	ErrPuppetNotFound = errors.New("puppet account not found")
	ErrPuppetExists   = errors.New("puppet account already exists")
)

// PuppetAccount is the state of a single puppet
type PuppetAccount struct {
	Data uint64
}

func (obj *PuppetAccount) Marshal() []byte {
	data := make([]byte, PuppetAccountSize)
	copy(data, puppetAccountDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], obj.Data)
	return data
}

func (obj *PuppetAccount) Unmarshal(data []byte) error {
	if len(data) < PuppetAccountSize {
		return solana.NewInstructionError(0, solana.InstructionErrorInvalidAccountData)
	}
	if !bytes.Equal(data[:8], puppetAccountDiscriminator) {
		return solana.NewInstructionError(0, solana.InstructionErrorInvalidAccountData)
	}

	obj.Data = binary.LittleEndian.Uint64(data[8:])
	return nil
}

// PuppetProgram is a minimal program with settable state. Setting data
// requires the authority account to sign, which is how a timelock signer's
// authority is observed.
type PuppetProgram struct {
	id ed25519.PublicKey

	mu       sync.RWMutex
	accounts map[string][]byte
}

func NewPuppetProgram(id ed25519.PublicKey) *PuppetProgram {
	return &PuppetProgram{
		id:       append(ed25519.PublicKey{}, id...),
		accounts: make(map[string][]byte),
	}
}

func (p *PuppetProgram) ID() ed25519.PublicKey {
	return append(ed25519.PublicKey{}, p.id...)
}

// Initialize creates a zeroed puppet account
func (p *PuppetProgram) Initialize(puppet ed25519.PublicKey) error {
	key := base58.Encode(puppet)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.accounts[key]; ok {
		return ErrPuppetExists
	}

	p.accounts[key] = (&PuppetAccount{}).Marshal()
	return nil
}

// GetAccount returns the current state of a puppet account
func (p *PuppetProgram) GetAccount(puppet ed25519.PublicKey) (*PuppetAccount, error) {
	p.mu.RLock()
	data, ok := p.accounts[base58.Encode(puppet)]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrPuppetNotFound
	}

	var account PuppetAccount
	if err := account.Unmarshal(data); err != nil {
		return nil, err
	}
	return &account, nil
}

// NewSetDataInstruction builds a set_data instruction. The authority is
// referenced as a read only signer.
func (p *PuppetProgram) NewSetDataInstruction(puppet, authority ed25519.PublicKey, value uint64) solana.Instruction {
	data := make([]byte, setDataInstructionSize)
	copy(data, setDataInstructionDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], value)

	return solana.NewInstruction(
		p.ID(),
		data,
		solana.NewAccountMeta(puppet, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

// Process implements Program.Process
func (p *PuppetProgram) Process(_ context.Context, ixn solana.Instruction) error {
	if !bytes.Equal(ixn.Program, p.id) {
		return solana.NewInstructionError(0, solana.InstructionErrorIncorrectProgramID)
	}

	if len(ixn.Data) != setDataInstructionSize || !bytes.Equal(ixn.Data[:8], setDataInstructionDiscriminator) {
		return solana.NewInstructionError(0, solana.InstructionErrorInvalidInstructionData)
	}
	value := binary.LittleEndian.Uint64(ixn.Data[8:])

	if len(ixn.Accounts) < 2 {
		return solana.NewInstructionError(0, solana.InstructionErrorNotEnoughAccountKeys)
	}

	puppet := ixn.Accounts[0]
	authority := ixn.Accounts[1]

	if !authority.IsSigner {
		return solana.NewInstructionError(0, solana.InstructionErrorMissingRequiredSignature)
	}

	if !puppet.IsWritable {
		return solana.NewInstructionError(0, solana.InstructionErrorReadonlyDataModified)
	}

	key := base58.Encode(puppet.PublicKey)

	p.mu.Lock()
	defer p.mu.Unlock()

	data, ok := p.accounts[key]
	if !ok {
		return solana.NewInstructionError(0, solana.InstructionErrorUninitializedAccount)
	}

	var account PuppetAccount
	if err := account.Unmarshal(data); err != nil {
		return err
	}

	account.Data = value
	p.accounts[key] = account.Marshal()
	return nil
}
