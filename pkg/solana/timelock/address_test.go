package timelock

import (
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-timelock-server/pkg/solana"
)

func TestGetSignerAddress(t *testing.T) {
	for _, tc := range []struct {
		timelock string
		signer   string
		nonce    uint8
	}{
		{"BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z", "3x7oEM2pNg3FrQXzyqgQxxs5rZcbTnFzo6sfPtQdBkx2", 255},
		{"7Ema8Z4gAUWegampp2AuX4cvaTRy3VMwJUq8LMJshQTV", "FCbVv1qmJvZRSAgumcdQA3mzziaHZMvvuJY46cqSkLmM", 254},
		{"codeHy87wGD5oMRLG75qKqsSi1vWE3oxNyYmXo5F9YR", "APFiwYDv5sRwDiciZsVsM1UZJooYaF68UcXbLZmpKaU4", 255},
	} {
		address, nonce, err := GetSignerAddress(mustBase58Decode(tc.timelock))
		require.NoError(t, err)
		assert.Equal(t, tc.signer, base58.Encode(address))
		assert.Equal(t, tc.nonce, nonce)

		address, err = GetSignerAddressWithNonce(mustBase58Decode(tc.timelock), tc.nonce)
		require.NoError(t, err)
		assert.Equal(t, tc.signer, base58.Encode(address))
	}
}

func TestGetSignerAddressWithNonce_NonCanonical(t *testing.T) {
	timelock := mustBase58Decode("BuAprBZugjXG6QRbRQN8QKF8EzbW5SigkDuyR9KtqN5z")

	_, err := GetSignerAddressWithNonce(timelock, 254)
	assert.Equal(t, solana.ErrInvalidPublicKey, err)

	address, err := GetSignerAddressWithNonce(timelock, 253)
	require.NoError(t, err)
	assert.Equal(t, "72N1rsvTeYQKTdzLyhtvTVYULbQ5JncBbjoqTMt4oWi1", base58.Encode(address))
	assert.True(t, solana.VerifyProgramAddress(address, PROGRAM_ID, 253, timelock))
}
