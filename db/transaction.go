package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/log"
	"github.com/valleykid/growup/op"
	"github.com/valleykid/growup/ps"
)

// Transaction is a unit of work over a set of stores. Requests on one
// transaction run one at a time. A failed write aborts the whole
// transaction; nothing it wrote becomes visible.
type Transaction struct {
	conn  *Connection
	ctx   context.Context
	tx    ps.Tx
	db    *op.DatabaseOp
	mode  core.Mode
	scope map[string]struct{}

	mu      sync.Mutex
	done    bool
	failure error
	cursors map[*Cursor]struct{}
}

func newTransaction(ctx context.Context, conn *Connection, tx ps.Tx, dbOp *op.DatabaseOp, mode core.Mode, scope map[string]struct{}) *Transaction {
	return &Transaction{
		conn:    conn,
		ctx:     ctx,
		tx:      tx,
		db:      dbOp,
		mode:    mode,
		scope:   scope,
		cursors: make(map[*Cursor]struct{}),
	}
}

func (t *Transaction) Mode() core.Mode {
	return t.mode
}

// StoreNames returns the sorted names of the stores in scope.
func (t *Transaction) StoreNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scope == nil {
		return t.db.StoreNames()
	}
	names := make([]string, 0, len(t.scope))
	for name := range t.scope {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ObjectStore returns a store in the transaction's scope.
func (t *Transaction) ObjectStore(name string) (*ObjectStore, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.active(false); err != nil {
		return nil, err
	}
	return t.objectStore(name)
}

func (t *Transaction) objectStore(name string) (*ObjectStore, error) {
	if t.scope != nil {
		if _, ok := t.scope[name]; !ok {
			return nil, fmt.Errorf("%w: store %s is not in the transaction scope", ErrNotFound, name)
		}
	}
	s, ok := t.db.Store(name)
	if !ok {
		return nil, fmt.Errorf("%w: store %s", ErrNotFound, name)
	}
	return &ObjectStore{t: t, op: s}, nil
}

// active reports why a request may not run. Callers hold t.mu.
func (t *Transaction) active(write bool) error {
	if t.done {
		if t.failure != nil {
			return fmt.Errorf("%w: aborted after %v", ErrInactive, t.failure)
		}
		return ErrInactive
	}
	if err := t.ctx.Err(); err != nil {
		t.abort(err)
		return err
	}
	if write && !t.mode.Writable() {
		return ErrReadOnly
	}
	return nil
}

// do runs one request under the transaction lock. A failed write aborts the
// transaction.
func (t *Transaction) do(write bool, fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.active(write); err != nil {
		return err
	}
	err := fn()
	if err != nil && write {
		t.abort(err)
	}
	return err
}

// Commit makes every write of the transaction durable at once.
func (t *Transaction) Commit() (ps.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.active(false); err != nil {
		return ps.Transaction{}, err
	}
	t.finish()

	txn, err := t.tx.Commit()
	if err != nil {
		t.failure = err
		log.Engine.Warn().Err(err).Str("db", t.db.Meta.Name).Msg("commit failed")
		return ps.Transaction{}, err
	}
	if !txn.IsZero() {
		log.Engine.Debug().Str("db", t.db.Meta.Name).Str("mode", t.mode.String()).Str("tx", txn.Id).Msg("transaction committed")
	}
	return txn, nil
}

// Abort discards the transaction. Aborting a finished transaction does
// nothing.
func (t *Transaction) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.finish()
	t.tx.Rollback()
}

// abort rolls back after a failed request. Callers hold t.mu.
func (t *Transaction) abort(cause error) {
	if t.done {
		return
	}
	t.finish()
	t.failure = cause
	t.tx.Rollback()
	log.Engine.Warn().Err(cause).Str("db", t.db.Meta.Name).Str("mode", t.mode.String()).Msg("transaction aborted")
}

// finish marks the transaction done and closes its cursors, whose iterators
// must not outlive the persistence transaction. Callers hold t.mu.
func (t *Transaction) finish() {
	t.done = true
	for c := range t.cursors {
		c.release()
	}
	t.cursors = nil
}

// UpgradeTx is the version change transaction handed to an UpgradeFunc. It
// alone may create and delete stores and indexes.
type UpgradeTx struct {
	*Transaction
	oldVersion uint64
	newVersion uint64
}

func (u *UpgradeTx) OldVersion() uint64 {
	return u.oldVersion
}

func (u *UpgradeTx) NewVersion() uint64 {
	return u.newVersion
}

func (u *UpgradeTx) HasStore(name string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.db.Meta.HasStore(name)
}

// CreateObjectStore adds an empty store. keyPath selects in-line keys;
// autoIncrement attaches a key generator starting at 1.
func (u *UpgradeTx) CreateObjectStore(name, keyPath string, autoIncrement bool) (*ObjectStore, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: store name is empty", ErrInvalidState)
	}
	var store *ObjectStore
	err := u.do(true, func() error {
		s, err := u.db.CreateStore(name, keyPath, autoIncrement)
		if err != nil {
			return err
		}
		store = &ObjectStore{t: u.Transaction, op: s}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Engine.Debug().Str("db", u.db.Meta.Name).Str("store", name).Msg("store created")
	return store, nil
}

// DeleteObjectStore drops a store with all its records and indexes.
func (u *UpgradeTx) DeleteObjectStore(name string) error {
	u.mu.Lock()
	missing := !u.db.Meta.HasStore(name)
	u.mu.Unlock()
	if missing {
		return fmt.Errorf("%w: store %s", ErrNotFound, name)
	}

	err := u.do(true, func() error {
		return u.db.DropStore(name)
	})
	if err != nil {
		return err
	}
	log.Engine.Debug().Str("db", u.db.Meta.Name).Str("store", name).Msg("store deleted")
	return nil
}
