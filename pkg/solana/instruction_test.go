package solana

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestKey(b byte) ed25519.PublicKey {
	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestInstruction_Clone(t *testing.T) {
	original := NewInstruction(
		newTestKey(1),
		[]byte{1, 2, 3},
		NewAccountMeta(newTestKey(2), true),
		NewReadonlyAccountMeta(newTestKey(3), false),
	)

	cloned := original.Clone()
	assert.Equal(t, original, cloned)

	cloned.Program[0] = 0xff
	cloned.Data[0] = 0xff
	cloned.Accounts[0].PublicKey[0] = 0xff
	cloned.Accounts[1].IsWritable = true

	assert.Equal(t, newTestKey(1), original.Program)
	assert.Equal(t, []byte{1, 2, 3}, original.Data)
	assert.Equal(t, newTestKey(2), original.Accounts[0].PublicKey)
	assert.False(t, original.Accounts[1].IsWritable)
}

func TestInstruction_Signers(t *testing.T) {
	ixn := NewInstruction(
		newTestKey(1),
		nil,
		NewAccountMeta(newTestKey(2), true),
		NewReadonlyAccountMeta(newTestKey(3), false),
		NewReadonlyAccountMeta(newTestKey(4), true),
	)

	assert.Equal(t, []ed25519.PublicKey{newTestKey(2), newTestKey(4)}, ixn.Signers())
	assert.True(t, ixn.HasAccount(newTestKey(3)))
	assert.False(t, ixn.HasAccount(newTestKey(1)))

	assert.Empty(t, NewInstruction(newTestKey(1), nil).Signers())
}
