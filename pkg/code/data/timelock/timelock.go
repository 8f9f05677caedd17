package timelock

import (
	"bytes"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
)

var (
	ErrTimelockNotFound = errors.New("no records could be found")
	ErrTimelockExists   = errors.New("timelock record already exists")
)

// Record is a timelock registry entry. It mirrors the timelock program's
// Timelock account, along with the derived signer that executes queued
// transactions on its behalf.
type Record struct {
	Id uint64

	Address string

	// The derived authority. It's a pure function of Address and Nonce, and is
	// only stored for lookups.
	SignerAddress string
	Nonce         uint8

	Delay time.Duration

	CreatedAt time.Time
}

// GetSignerAddress derives the signer for a timelock address and nonce
func GetSignerAddress(address string, nonce uint8) (string, error) {
	decoded, err := decodeAddress(address)
	if err != nil {
		return "", err
	}

	signer, err := timelock_program.GetSignerAddressWithNonce(decoded, nonce)
	if err != nil {
		return "", err
	}
	return base58.Encode(signer), nil
}

func (r *Record) ToProgramAccount() *timelock_program.TimelockAccount {
	return &timelock_program.TimelockAccount{
		Delay: int64(r.Delay / time.Second),
		Nonce: r.Nonce,
	}
}

func (r *Record) Clone() *Record {
	return &Record{
		Id: r.Id,

		Address: r.Address,

		SignerAddress: r.SignerAddress,
		Nonce:         r.Nonce,

		Delay: r.Delay,

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Address = r.Address

	dst.SignerAddress = r.SignerAddress
	dst.Nonce = r.Nonce

	dst.Delay = r.Delay

	dst.CreatedAt = r.CreatedAt
}

func (r *Record) Validate() error {
	if r == nil {
		return errors.New("record is nil")
	}

	address, err := decodeAddress(r.Address)
	if err != nil {
		return errors.Wrap(err, "invalid address")
	}

	signer, err := decodeAddress(r.SignerAddress)
	if err != nil {
		return errors.Wrap(err, "invalid signer address")
	}

	if r.Delay < 0 {
		return errors.New("delay cannot be negative")
	}

	if r.Delay%time.Second != 0 {
		return errors.New("delay must be in whole seconds")
	}

	expected, err := timelock_program.GetSignerAddressWithNonce(address, r.Nonce)
	if err != nil {
		return errors.Wrap(err, "nonce does not derive a signer")
	}

	if !bytes.Equal(expected, signer) {
		return errors.New("signer address does not match derivation")
	}

	return nil
}

func decodeAddress(address string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, err
	}

	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid address length: %d", len(decoded))
	}

	return decoded, nil
}
