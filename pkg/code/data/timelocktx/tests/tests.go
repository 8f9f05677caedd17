package tests

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	"github.com/code-payments/code-timelock-server/pkg/database/query"
)

func RunTests(t *testing.T, s timelocktx.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s timelocktx.Store){
		testHappyPath,
		testEmptyInstruction,
		testInvalidRecords,
		testGetAllByTimelock,
		testGetAllExecutable,
		testGetCountByState,
		testConcurrentMarkExecuted,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s timelocktx.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()

		executableAt := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
		expected := newRandomRecord(t, newRandomAddress(t), executableAt)
		cloned := expected.Clone()

		_, err := s.GetByAddress(ctx, expected.Address)
		assert.Equal(t, timelocktx.ErrTransactionNotFound, err)

		assert.Equal(t, timelocktx.ErrTransactionNotFound, s.MarkExecuted(ctx, expected.Address, time.Now()))

		require.NoError(t, s.Save(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.False(t, expected.CreatedAt.IsZero())

		actual, err := s.GetByAddress(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)
		assert.Equal(t, timelocktx.StateQueued, actual.State())
		assert.Nil(t, actual.ExecutedAt)

		// Address slots can only be used once

		duplicate := newRandomRecord(t, expected.Timelock, executableAt)
		duplicate.Address = expected.Address
		assert.Equal(t, timelocktx.ErrTransactionExists, s.Save(ctx, duplicate))

		// Execution state transitions exactly once

		executedAt := time.Now().Truncate(time.Second).UTC()
		require.NoError(t, s.MarkExecuted(ctx, expected.Address, executedAt))
		assert.Equal(t, timelocktx.ErrAlreadyExecuted, s.MarkExecuted(ctx, expected.Address, executedAt.Add(time.Second)))

		actual, err = s.GetByAddress(ctx, expected.Address)
		require.NoError(t, err)
		assert.True(t, actual.IsExecuted)
		require.NotNil(t, actual.ExecutedAt)
		assert.Equal(t, executedAt.Unix(), actual.ExecutedAt.Unix())
		assert.Equal(t, timelocktx.StateExecuted, actual.State())

		// Everything else is untouched
		actual.IsExecuted = false
		actual.ExecutedAt = nil
		assertEquivalentRecords(t, cloned, actual)
	})
}

func testEmptyInstruction(t *testing.T, s timelocktx.Store) {
	t.Run("testEmptyInstruction", func(t *testing.T) {
		ctx := context.Background()

		expected := newRandomRecord(t, newRandomAddress(t), time.Now())
		expected.Accounts = nil
		expected.Data = nil

		require.NoError(t, s.Save(ctx, expected))

		actual, err := s.GetByAddress(ctx, expected.Address)
		require.NoError(t, err)
		assert.Empty(t, actual.Accounts)
		assert.Empty(t, actual.Data)

		ixn, err := actual.ToInstruction()
		require.NoError(t, err)
		assert.Empty(t, ixn.Accounts)
		assert.Empty(t, ixn.Data)
	})
}

func testInvalidRecords(t *testing.T, s timelocktx.Store) {
	t.Run("testInvalidRecords", func(t *testing.T) {
		ctx := context.Background()

		badProgram := newRandomRecord(t, newRandomAddress(t), time.Now())
		badProgram.Program = "invalid"
		assert.Error(t, s.Save(ctx, badProgram))

		badAccount := newRandomRecord(t, newRandomAddress(t), time.Now())
		badAccount.Accounts[1].PublicKey = base58.Encode([]byte{1, 2, 3})
		assert.Error(t, s.Save(ctx, badAccount))

		noExecutableAt := newRandomRecord(t, newRandomAddress(t), time.Time{})
		assert.Error(t, s.Save(ctx, noExecutableAt))

		for _, state := range []timelocktx.State{timelocktx.StateQueued, timelocktx.StateExecuted} {
			count, err := s.GetCountByState(ctx, state)
			require.NoError(t, err)
			assert.EqualValues(t, 0, count)
		}
	})
}

func testGetAllByTimelock(t *testing.T, s timelocktx.Store) {
	t.Run("testGetAllByTimelock", func(t *testing.T) {
		ctx := context.Background()

		timelock := newRandomAddress(t)
		other := newRandomAddress(t)

		var expected []*timelocktx.Record
		for i := 0; i < 5; i++ {
			record := newRandomRecord(t, timelock, time.Now())
			require.NoError(t, s.Save(ctx, record))
			expected = append(expected, record)

			require.NoError(t, s.Save(ctx, newRandomRecord(t, other, time.Now())))
		}

		_, err := s.GetAllByTimelock(ctx, newRandomAddress(t), query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, timelocktx.ErrTransactionNotFound, err)

		actual, err := s.GetAllByTimelock(ctx, timelock, query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i := range actual {
			assertEquivalentRecords(t, expected[i], actual[i])
		}

		actual, err = s.GetAllByTimelock(ctx, timelock, query.EmptyCursor, 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i := range actual {
			assertEquivalentRecords(t, expected[4-i], actual[i])
		}

		actual, err = s.GetAllByTimelock(ctx, timelock, query.EmptyCursor, 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, expected[0], actual[0])
		assertEquivalentRecords(t, expected[1], actual[1])

		actual, err = s.GetAllByTimelock(ctx, timelock, query.ToCursor(actual[1].Id), 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, expected[2], actual[0])
		assertEquivalentRecords(t, expected[3], actual[1])

		actual, err = s.GetAllByTimelock(ctx, timelock, query.ToCursor(expected[2].Id), 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, expected[1], actual[0])
		assertEquivalentRecords(t, expected[0], actual[1])

		_, err = s.GetAllByTimelock(ctx, timelock, query.ToCursor(expected[4].Id), 10, query.Ascending)
		assert.Equal(t, timelocktx.ErrTransactionNotFound, err)
	})
}

func testGetAllExecutable(t *testing.T, s timelocktx.Store) {
	t.Run("testGetAllExecutable", func(t *testing.T) {
		ctx := context.Background()

		now := time.Now().Truncate(time.Second).UTC()
		timelock := newRandomAddress(t)

		_, err := s.GetAllExecutable(ctx, now, timelocktx.ExecutableCursor{}, 10)
		assert.Equal(t, timelocktx.ErrTransactionNotFound, err)

		// Saved out of order
		late := newRandomRecord(t, timelock, now.Add(-time.Second))
		early := newRandomRecord(t, timelock, now.Add(-time.Minute))
		exact := newRandomRecord(t, timelock, now)
		future := newRandomRecord(t, timelock, now.Add(time.Second))
		executed := newRandomRecord(t, timelock, now.Add(-time.Hour))
		for _, record := range []*timelocktx.Record{late, early, exact, future, executed} {
			require.NoError(t, s.Save(ctx, record))
		}
		require.NoError(t, s.MarkExecuted(ctx, executed.Address, now))

		actual, err := s.GetAllExecutable(ctx, now, timelocktx.ExecutableCursor{}, 10)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assertEquivalentRecords(t, early, actual[0])
		assertEquivalentRecords(t, late, actual[1])
		assertEquivalentRecords(t, exact, actual[2])

		actual, err = s.GetAllExecutable(ctx, now, timelocktx.ExecutableCursor{}, 1)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assertEquivalentRecords(t, early, actual[0])

		actual, err = s.GetAllExecutable(ctx, now.Add(time.Second), timelocktx.ExecutableCursor{}, 10)
		require.NoError(t, err)
		require.Len(t, actual, 4)
		assertEquivalentRecords(t, future, actual[3])

		_, err = s.GetAllExecutable(ctx, now.Add(-2*time.Minute), timelocktx.ExecutableCursor{}, 10)
		assert.Equal(t, timelocktx.ErrTransactionNotFound, err)

		// Paging resumes after the cursor
		actual, err = s.GetAllExecutable(ctx, now, early.ToExecutableCursor(), 1)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assertEquivalentRecords(t, late, actual[0])

		actual, err = s.GetAllExecutable(ctx, now, actual[0].ToExecutableCursor(), 10)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assertEquivalentRecords(t, exact, actual[0])

		_, err = s.GetAllExecutable(ctx, now, exact.ToExecutableCursor(), 10)
		assert.Equal(t, timelocktx.ErrTransactionNotFound, err)
	})
}

func testGetCountByState(t *testing.T, s timelocktx.Store) {
	t.Run("testGetCountByState", func(t *testing.T) {
		ctx := context.Background()

		timelock := newRandomAddress(t)

		var records []*timelocktx.Record
		for i := 0; i < 5; i++ {
			record := newRandomRecord(t, timelock, time.Now())
			require.NoError(t, s.Save(ctx, record))
			records = append(records, record)
		}

		for i := 0; i < 2; i++ {
			require.NoError(t, s.MarkExecuted(ctx, records[i].Address, time.Now()))
		}

		count, err := s.GetCountByState(ctx, timelocktx.StateQueued)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)

		count, err = s.GetCountByState(ctx, timelocktx.StateExecuted)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		count, err = s.GetCountByState(ctx, timelocktx.StateUnknown)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func testConcurrentMarkExecuted(t *testing.T, s timelocktx.Store) {
	t.Run("testConcurrentMarkExecuted", func(t *testing.T) {
		ctx := context.Background()

		record := newRandomRecord(t, newRandomAddress(t), time.Now())
		require.NoError(t, s.Save(ctx, record))

		var wg sync.WaitGroup
		var successes, conflicts int32
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				err := s.MarkExecuted(ctx, record.Address, time.Now())
				switch err {
				case nil:
					atomic.AddInt32(&successes, 1)
				case timelocktx.ErrAlreadyExecuted:
					atomic.AddInt32(&conflicts, 1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, successes)
		assert.EqualValues(t, 15, conflicts)
	})
}

func newRandomAddress(t *testing.T) string {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(pub)
}

func newRandomRecord(t *testing.T, timelock string, executableAt time.Time) *timelocktx.Record {
	data := make([]byte, 16)
	_, err := rand.Read(data)
	require.NoError(t, err)

	return &timelocktx.Record{
		Address:  newRandomAddress(t),
		Timelock: timelock,

		Program: newRandomAddress(t),
		Accounts: []timelocktx.AccountMeta{
			{PublicKey: timelock, IsSigner: false, IsWritable: false},
			{PublicKey: newRandomAddress(t), IsSigner: true, IsWritable: false},
			{PublicKey: newRandomAddress(t), IsSigner: false, IsWritable: true},
			{PublicKey: newRandomAddress(t), IsSigner: true, IsWritable: true},
		},
		Data: data,

		ExecutableAt: executableAt,
	}
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *timelocktx.Record) {
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.Timelock, obj2.Timelock)
	assert.Equal(t, obj1.Program, obj2.Program)
	assert.Equal(t, obj1.Accounts, obj2.Accounts)
	assert.True(t, bytes.Equal(obj1.Data, obj2.Data))
	assert.Equal(t, obj1.ExecutableAt.Unix(), obj2.ExecutableAt.Unix())
	assert.Equal(t, obj1.IsExecuted, obj2.IsExecuted)
}
