package timelock

import (
	"crypto/ed25519"

	"github.com/code-payments/code-timelock-server/pkg/solana"
)

// GetSignerAddress returns the canonical signer for a timelock along with
// the nonce that derives it.
func GetSignerAddress(timelock ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		timelock,
	)
}

// GetSignerAddressWithNonce derives the signer from an explicit nonce, which
// need not be canonical.
func GetSignerAddressWithNonce(timelock ed25519.PublicKey, nonce uint8) (ed25519.PublicKey, error) {
	return solana.CreateProgramAddress(
		PROGRAM_ID,
		timelock,
		[]byte{nonce},
	)
}
