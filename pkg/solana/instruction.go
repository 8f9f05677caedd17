package solana

import (
	"bytes"
	"crypto/ed25519"
)

// AccountMeta represents the account information required
// for building transactions.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta creates a new AccountMeta representing a writable
// account.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta creates a new AccountMeta representing a readonly
// account.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

// Instruction represents a transaction instruction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// Clone returns a deep copy of the instruction
func (i Instruction) Clone() Instruction {
	accounts := make([]AccountMeta, len(i.Accounts))
	for idx, account := range i.Accounts {
		accounts[idx] = AccountMeta{
			PublicKey:  append(ed25519.PublicKey{}, account.PublicKey...),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return Instruction{
		Program:  append(ed25519.PublicKey{}, i.Program...),
		Accounts: accounts,
		Data:     append([]byte{}, i.Data...),
	}
}

// Signers returns the set of accounts marked as signers, in order
func (i Instruction) Signers() []ed25519.PublicKey {
	var res []ed25519.PublicKey
	for _, account := range i.Accounts {
		if account.IsSigner {
			res = append(res, account.PublicKey)
		}
	}
	return res
}

// HasAccount returns whether the account is referenced by the instruction
func (i Instruction) HasAccount(pub ed25519.PublicKey) bool {
	for _, account := range i.Accounts {
		if bytes.Equal(account.PublicKey, pub) {
			return true
		}
	}
	return false
}
