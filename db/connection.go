package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/log"
	"github.com/valleykid/growup/op"
	"github.com/valleykid/growup/ps"
)

// Connection is an open handle to one database at a fixed version. The schema
// it reports is the one the database had when the connection was opened.
type Connection struct {
	factory *Factory
	name    string

	mu              sync.RWMutex
	meta            *core.DatabaseMeta
	closed          bool
	onVersionChange func(oldVersion, newVersion uint64)
}

func (c *Connection) Name() string {
	return c.name
}

func (c *Connection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.Version
}

// StoreNames returns the sorted names of the database's stores.
func (c *Connection) StoreNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.StoreNames()
}

func (c *Connection) HasStore(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta.HasStore(name)
}

// StoreMeta returns a copy of a store's schema.
func (c *Connection) StoreMeta(name string) (*core.StoreMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.meta.Stores[name]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// OnVersionChange registers fn to be called when another Open or
// DeleteDatabase needs this connection gone. fn should close the connection;
// a connection left open makes that call fail with ErrBlocked. newVersion is
// 0 for a deletion. fn must not call back into the Factory.
func (c *Connection) OnVersionChange(fn func(oldVersion, newVersion uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onVersionChange = fn
}

func (c *Connection) versionChange(oldVersion, newVersion uint64) {
	c.mu.RLock()
	fn := c.onVersionChange
	c.mu.RUnlock()
	if fn != nil {
		fn(oldVersion, newVersion)
	}
}

// Transaction starts a transaction over the given stores. Only ReadOnly and
// ReadWrite are accepted here; version change transactions come from Open.
func (c *Connection) Transaction(ctx context.Context, stores []string, mode core.Mode) (*Transaction, error) {
	if mode == core.VersionChange {
		return nil, fmt.Errorf("%w: version change transactions are only started by Open", ErrInvalidState)
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("%w: a transaction needs at least one store", ErrInvalidState)
	}

	tx, dbOp, scope, err := c.begin(ctx, stores, mode)
	if errors.Is(err, errStale) {
		// The stored schema moved under the connection, for example after
		// the history was restored. Retire it so the holder reopens.
		_ = c.Close()
		log.Engine.Debug().Str("db", c.name).Msg("stale connection retired")
		return nil, fmt.Errorf("%w: %s changed since the connection was opened", ErrClosed, c.name)
	}
	if err != nil {
		return nil, err
	}
	return newTransaction(ctx, c, tx, dbOp, mode, scope), nil
}

var errStale = errors.New("stale schema")

func (c *Connection) begin(ctx context.Context, stores []string, mode core.Mode) (ps.Tx, *op.DatabaseOp, map[string]struct{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, nil, nil, ErrClosed
	}

	scope := make(map[string]struct{}, len(stores))
	for _, name := range stores {
		if !c.meta.HasStore(name) {
			return nil, nil, nil, fmt.Errorf("%w: store %s in %s", ErrNotFound, name, c.name)
		}
		scope[name] = struct{}{}
	}

	tx, err := c.factory.kv.Begin(ctx, mode.Writable())
	if err != nil {
		return nil, nil, nil, err
	}
	dbOp, found, err := op.GetDatabase(tx, c.name)
	if err != nil {
		tx.Rollback()
		return nil, nil, nil, err
	}
	if !found || !sameSchema(dbOp.Meta, c.meta) {
		tx.Rollback()
		return nil, nil, nil, errStale
	}
	return tx, dbOp, scope, nil
}

// sameSchema reports whether stored still describes the schema the
// connection was opened with. Key generators may differ.
func sameSchema(stored, held *core.DatabaseMeta) bool {
	if stored.Version != held.Version || len(stored.Stores) != len(held.Stores) {
		return false
	}
	for name, s := range held.Stores {
		t, ok := stored.Stores[name]
		if !ok || t.ID != s.ID || len(t.Indexes) != len(s.Indexes) {
			return false
		}
		for idxName, idx := range s.Indexes {
			if other, ok := t.Indexes[idxName]; !ok || other.ID != idx.ID {
				return false
			}
		}
	}
	return true
}

// Close releases the connection. Transactions already started keep running.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.factory.unregister(c)
	log.Engine.Debug().Str("db", c.name).Msg("connection closed")
	return nil
}

func (c *Connection) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
