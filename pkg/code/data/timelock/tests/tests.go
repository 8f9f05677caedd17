package tests

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelock"
	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
)

func RunTests(t *testing.T, s timelock.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s timelock.Store){
		testHappyPath,
		testInvalidRecords,
		testGetCount,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s timelock.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		start := time.Now()

		ctx := context.Background()

		expected := newRandomRecord(t, 5*time.Second)
		cloned := expected.Clone()

		// Validate the record initially doesn't exist

		_, err := s.GetByAddress(ctx, expected.Address)
		assert.Equal(t, timelock.ErrTimelockNotFound, err)

		_, err = s.GetBySigner(ctx, expected.SignerAddress)
		assert.Equal(t, timelock.ErrTimelockNotFound, err)

		// Save the record

		require.NoError(t, s.Save(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.False(t, expected.CreatedAt.Before(start.Truncate(time.Second)))

		// Ensure we can fetch the same record by all supported indices

		actual, err := s.GetByAddress(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)
		assert.Equal(t, expected.Id, actual.Id)

		actual, err = s.GetBySigner(ctx, expected.SignerAddress)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)

		// Records are immutable once created

		updated := expected.Clone()
		updated.Delay = time.Hour
		assert.Equal(t, timelock.ErrTimelockExists, s.Save(ctx, updated))

		actual, err = s.GetByAddress(ctx, expected.Address)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, actual.Delay)
	})
}

func testInvalidRecords(t *testing.T, s timelock.Store) {
	t.Run("testInvalidRecords", func(t *testing.T) {
		ctx := context.Background()

		negative := newRandomRecord(t, time.Second)
		negative.Delay = -time.Second
		assert.Error(t, s.Save(ctx, negative))

		fractional := newRandomRecord(t, time.Second)
		fractional.Delay = 1500 * time.Millisecond
		assert.Error(t, s.Save(ctx, fractional))

		mismatched := newRandomRecord(t, time.Second)
		mismatched.SignerAddress = newRandomRecord(t, time.Second).SignerAddress
		assert.Error(t, s.Save(ctx, mismatched))

		badAddress := newRandomRecord(t, time.Second)
		badAddress.Address = "not-base58-0OIl"
		assert.Error(t, s.Save(ctx, badAddress))

		count, err := s.GetCount(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		// Zero delay is allowed

		zero := newRandomRecord(t, 0)
		require.NoError(t, s.Save(ctx, zero))

		actual, err := s.GetByAddress(ctx, zero.Address)
		require.NoError(t, err)
		assert.EqualValues(t, 0, actual.Delay)
	})
}

func testGetCount(t *testing.T, s timelock.Store) {
	t.Run("testGetCount", func(t *testing.T) {
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			count, err := s.GetCount(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, i, count)

			require.NoError(t, s.Save(ctx, newRandomRecord(t, time.Duration(i)*time.Second)))
		}

		count, err := s.GetCount(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 5, count)
	})
}

func newRandomRecord(t *testing.T, delay time.Duration) *timelock.Record {
	address, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, nonce, err := timelock_program.GetSignerAddress(address)
	require.NoError(t, err)

	return &timelock.Record{
		Address:       base58.Encode(address),
		SignerAddress: base58.Encode(signer),
		Nonce:         nonce,
		Delay:         delay,
	}
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *timelock.Record) {
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.SignerAddress, obj2.SignerAddress)
	assert.Equal(t, obj1.Nonce, obj2.Nonce)
	assert.Equal(t, obj1.Delay, obj2.Delay)
}
