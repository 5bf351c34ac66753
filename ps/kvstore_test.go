package ps

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends opens a fresh store of every kind.
func backends(t *testing.T) map[string]func(t *testing.T) KVStore {
	t.Helper()
	return map[string]func(t *testing.T) KVStore{
		"git-memory": func(t *testing.T) KVStore {
			p, err := NewMemoryPersistence()
			require.NoError(t, err)
			return p
		},
		"git-file": func(t *testing.T) KVStore {
			p, err := NewFilePersistence(t.TempDir(), nil)
			require.NoError(t, err)
			return p
		},
		"pebble-memory": func(t *testing.T) KVStore {
			s, err := NewPebbleMemoryStore()
			require.NoError(t, err)
			return s
		},
		"pebble-file": func(t *testing.T) KVStore {
			s, err := NewPebbleStore(filepath.Join(t.TempDir(), "pebble"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) KVStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestKVStore(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store KVStore)
	}{
		{name: "commit_and_get", fn: testCommitAndGet},
		{name: "rollback_discards", fn: testRollbackDiscards},
		{name: "read_your_writes", fn: testReadYourWrites},
		{name: "ordered_iteration", fn: testOrderedIteration},
		{name: "reverse_iteration", fn: testReverseIteration},
		{name: "delete_range", fn: testDeleteRange},
		{name: "read_only_rejects_writes", fn: testReadOnlyRejectsWrites},
		{name: "finished_tx", fn: testFinishedTx},
		{name: "empty_commit", fn: testEmptyCommit},
	}

	for name, open := range backends(t) {
		for _, tc := range tests {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				store := open(t)
				defer store.Close() //nolint:errcheck

				tc.fn(t, store)
			})
		}
	}
}

func write(t *testing.T, store KVStore, pairs ...string) Transaction {
	t.Helper()
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	for i := 0; i+1 < len(pairs); i += 2 {
		require.NoError(t, tx.Set([]byte(pairs[i]), []byte(pairs[i+1])))
	}
	txn, err := tx.Commit()
	require.NoError(t, err)
	return txn
}

func collect(t *testing.T, tx Tx, start, end []byte, reverse bool) []string {
	t.Helper()
	it, err := tx.NewIterator(start, end, reverse)
	require.NoError(t, err)
	defer it.Close() //nolint:errcheck

	var out []string
	for it.Next() {
		v, err := it.Value()
		require.NoError(t, err)
		out = append(out, fmt.Sprintf("%s=%s", it.Key(), v))
	}
	return out
}

func testCommitAndGet(t *testing.T, store KVStore) {
	txn := write(t, store, "a", "1", "b", "2")
	assert.NotEmpty(t, txn.Id)

	tx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()

	v, err := tx.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	_, err = tx.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func testRollbackDiscards(t *testing.T, store KVStore) {
	write(t, store, "a", "1")

	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Set([]byte("a"), []byte("changed")))
	require.NoError(t, tx.Set([]byte("b"), []byte("2")))
	tx.Rollback()

	rtx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	defer rtx.Rollback()
	assert.Equal(t, []string{"a=1"}, collect(t, rtx, []byte("a"), nil, false))
}

func testReadYourWrites(t *testing.T, store KVStore) {
	write(t, store, "a", "1", "b", "2")

	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.Set([]byte("c"), []byte("3")))
	require.NoError(t, tx.Delete([]byte("a")))

	_, err = tx.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrNotFound)
	v, err := tx.Get([]byte("c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)

	assert.Equal(t, []string{"b=2", "c=3"}, collect(t, tx, []byte("a"), nil, false))
}

func testOrderedIteration(t *testing.T, store KVStore) {
	write(t, store, "k\x02", "2", "k\x00", "0", "j", "x", "k\x01", "1", "l", "y")

	tx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()

	assert.Equal(t,
		[]string{"k\x00=0", "k\x01=1", "k\x02=2"},
		collect(t, tx, []byte("k"), []byte("l"), false))
}

func testReverseIteration(t *testing.T, store KVStore) {
	write(t, store, "a", "1", "b", "2", "c", "3", "d", "4")

	tx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()

	assert.Equal(t, []string{"c=3", "b=2"}, collect(t, tx, []byte("b"), []byte("d"), true))
	assert.Equal(t, []string{"d=4", "c=3", "b=2", "a=1"}, collect(t, tx, []byte("a"), nil, true))
}

func testDeleteRange(t *testing.T, store KVStore) {
	write(t, store, "a", "1", "b", "2", "c", "3", "d", "4")

	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Set([]byte("bb"), []byte("new")))
	require.NoError(t, tx.DeleteRange([]byte("b"), []byte("d")))
	_, err = tx.Commit()
	require.NoError(t, err)

	rtx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	defer rtx.Rollback()
	assert.Equal(t, []string{"a=1", "d=4"}, collect(t, rtx, []byte("a"), nil, false))
}

func testReadOnlyRejectsWrites(t *testing.T, store KVStore) {
	tx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()

	assert.False(t, tx.Writable())
	assert.ErrorIs(t, tx.Set([]byte("a"), []byte("1")), ErrReadOnlyTx)
	assert.ErrorIs(t, tx.Delete([]byte("a")), ErrReadOnlyTx)
	assert.ErrorIs(t, tx.DeleteRange([]byte("a"), nil), ErrReadOnlyTx)
}

func testFinishedTx(t *testing.T, store KVStore) {
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Set([]byte("a"), []byte("1")))
	_, err = tx.Commit()
	require.NoError(t, err)

	_, err = tx.Commit()
	assert.ErrorIs(t, err, ErrTxDone)
	assert.ErrorIs(t, tx.Set([]byte("b"), []byte("2")), ErrTxDone)
	tx.Rollback()

	// The writer slot was released.
	next, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	next.Rollback()
}

func testEmptyCommit(t *testing.T, store KVStore) {
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	txn, err := tx.Commit()
	require.NoError(t, err)
	assert.True(t, txn.IsZero())
}

func TestBeginWaitsForWriter(t *testing.T) {
	store, err := NewPebbleMemoryStore()
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck

	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	defer tx.Rollback()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Begin(ctx, true)
	assert.ErrorIs(t, err, context.Canceled)

	// Readers are not blocked by the writer.
	rtx, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	rtx.Rollback()
}

func TestClosedStore(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			require.NoError(t, store.Close())

			_, err := store.Begin(context.Background(), false)
			assert.Error(t, err)
		})
	}
}

func TestPebbleStoreReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pebble")
	ctx := context.Background()

	s, err := NewPebbleStore(dir)
	require.NoError(t, err)
	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Set([]byte("k"), []byte("v")))
	_, err = tx.Commit()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewPebbleStore(dir)
	require.NoError(t, err)
	defer s.Close()
	tx, err = s.Begin(ctx, false)
	require.NoError(t, err)
	defer tx.Rollback()
	v, err := tx.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
