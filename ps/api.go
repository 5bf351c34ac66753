package ps

import (
	"context"
	"time"
)

// KVStore is an ordered byte-keyed store with serializable transactions.
// Keys are compared bytewise.
type KVStore interface {
	// Begin starts a transaction. At most one writable transaction is active
	// per store; Begin blocks until it can start one or ctx is done.
	Begin(ctx context.Context, writable bool) (Tx, error)
	Close() error
}

// Tx is a transaction over a KVStore. A read-only transaction sees a
// consistent snapshot; a writable one also sees its own uncommitted writes.
type Tx interface {
	// Get returns ErrNotFound when key is absent.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// DeleteRange removes every key in [start, end). A nil end is unbounded.
	DeleteRange(start, end []byte) error
	// NewIterator walks [start, end) in ascending order, or descending when
	// reverse is set. A nil end is unbounded.
	NewIterator(start, end []byte, reverse bool) (Iterator, error)
	Writable() bool
	// Commit makes the writes durable. The returned Transaction is zero for
	// read-only transactions and for writable ones that wrote nothing.
	Commit() (Transaction, error)
	// Rollback discards the transaction. It is a no-op after Commit.
	Rollback()
}

// Iterator provides sequential access over a range of key-value pairs.
// Iterators must be closed after use.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	Close() error
}

// History is implemented by backends that keep every committed transaction.
type History interface {
	LatestTransaction() Transaction
	TransactionsSince(asof time.Time) []Transaction
	Restore(asof Transaction) error
}
