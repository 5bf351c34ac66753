package ps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
	"github.com/valleykid/growup/log"
)

// PebbleStore is a KVStore on a pebble database. Writable transactions are
// indexed batches, read-only ones are snapshots.
type PebbleStore struct {
	db       *pebble.DB
	writeSem chan struct{}
	closed   bool
	mu       sync.RWMutex
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 * 1024 * 1024), // 64MB
		MemTableSize: 32 * 1024 * 1024,                  // 32MB
		// Writes stall once queued memtables reach 128MB.
		MemTableStopWritesThreshold: 4,
	}
	defer opts.Cache.Unref()
	return openPebble(path, opts)
}

// NewPebbleMemoryStore returns a store on an in-memory filesystem.
func NewPebbleMemoryStore() (*PebbleStore, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(path string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store: %w", err)
	}
	log.Storage.Debug().Str("path", path).Msg("opened pebble store")
	return &PebbleStore{db: db, writeSem: make(chan struct{}, 1)}, nil
}

func (p *PebbleStore) Begin(ctx context.Context, writable bool) (Tx, error) {
	if writable {
		select {
		case p.writeSem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		if writable {
			<-p.writeSem
		}
		return nil, ErrClosed
	}

	tx := &pebbleTx{store: p, writable: writable}
	if writable {
		tx.batch = p.db.NewIndexedBatch()
		tx.reader = tx.batch
	} else {
		tx.snap = p.db.NewSnapshot()
		tx.reader = tx.snap
	}
	return tx, nil
}

func (p *PebbleStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

// pebbleReader is what batches and snapshots have in common.
type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

type pebbleTx struct {
	store    *PebbleStore
	batch    *pebble.Batch
	snap     *pebble.Snapshot
	reader   pebbleReader
	writable bool

	mu   sync.Mutex
	done bool
}

func (tx *pebbleTx) Writable() bool {
	return tx.writable
}

func (tx *pebbleTx) check(write bool) error {
	if tx.done {
		return ErrTxDone
	}
	if write && !tx.writable {
		return ErrReadOnlyTx
	}
	return nil
}

func (tx *pebbleTx) Get(key []byte) ([]byte, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(false); err != nil {
		return nil, err
	}

	value, closer, err := tx.reader.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (tx *pebbleTx) Set(key, value []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(true); err != nil {
		return err
	}
	return tx.batch.Set(key, value, nil)
}

func (tx *pebbleTx) Delete(key []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(true); err != nil {
		return err
	}
	return tx.batch.Delete(key, nil)
}

func (tx *pebbleTx) DeleteRange(start, end []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(true); err != nil {
		return err
	}
	if end != nil {
		return tx.batch.DeleteRange(start, end, nil)
	}

	iter, err := tx.batch.NewIter(&pebble.IterOptions{LowerBound: start})
	if err != nil {
		return err
	}
	var keys [][]byte
	for valid := iter.First(); valid; valid = iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	if err := iter.Close(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := tx.batch.Delete(k, nil); err != nil {
			return err
		}
	}
	return nil
}

func (tx *pebbleTx) NewIterator(start, end []byte, reverse bool) (Iterator, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(false); err != nil {
		return nil, err
	}

	iter, err := tx.reader.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	return &pebbleIterator{iter: iter, reverse: reverse}, nil
}

func (tx *pebbleTx) Commit() (Transaction, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return Transaction{}, ErrTxDone
	}
	tx.done = true

	if !tx.writable {
		return Transaction{}, tx.snap.Close()
	}
	defer func() { <-tx.store.writeSem }()
	defer tx.batch.Close()

	if tx.batch.Empty() {
		return Transaction{}, nil
	}
	count := tx.batch.Count()
	if err := tx.batch.Commit(pebble.Sync); err != nil {
		return Transaction{}, fmt.Errorf("failed to commit batch: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Transaction{}, err
	}
	txn := Transaction{Id: id.String(), When: time.Now()}
	log.Storage.Debug().Str("id", txn.Id).Uint32("ops", count).Msg("pebble commit")
	return txn, nil
}

func (tx *pebbleTx) Rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return
	}
	tx.done = true

	if !tx.writable {
		_ = tx.snap.Close()
		return
	}
	_ = tx.batch.Close()
	<-tx.store.writeSem
}

type pebbleIterator struct {
	iter      *pebble.Iterator
	reverse   bool
	started   bool
	exhausted bool
}

func (it *pebbleIterator) Next() bool {
	if it.exhausted {
		return false
	}
	var valid bool
	switch {
	case !it.started:
		// Position the iterator at the first key in walk order
		it.started = true
		if it.reverse {
			valid = it.iter.Last()
		} else {
			valid = it.iter.First()
		}
	case it.reverse:
		valid = it.iter.Prev()
	default:
		valid = it.iter.Next()
	}
	it.exhausted = !valid
	return valid
}

func (it *pebbleIterator) Key() []byte {
	key := it.iter.Key()
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *pebbleIterator) Value() ([]byte, error) {
	if !it.iter.Valid() {
		return nil, ErrIteratorInvalid
	}

	val, err := it.iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf("failed to read iterator value: %w", err)
	}

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *pebbleIterator) Valid() bool {
	return it.iter.Valid()
}

func (it *pebbleIterator) Close() error {
	return it.iter.Close()
}
