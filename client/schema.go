package client

import (
	"context"
	"sort"

	"github.com/valleykid/growup/db"
	"github.com/valleykid/growup/log"
)

type storeOptions struct {
	replace bool
	keyPath string
}

type StoreOption func(*storeOptions)

// WithReplace drops and recreates a store that already exists.
func WithReplace() StoreOption {
	return func(o *storeOptions) {
		o.replace = true
	}
}

// WithKeyPath gives the store in-line keys read from path. Without it the
// store uses out-of-line keys with a generator starting at 1.
func WithKeyPath(path string) StoreOption {
	return func(o *storeOptions) {
		o.keyPath = path
	}
}

// HasStore reports whether the database has the named store.
func (c *Client) HasStore(ctx context.Context, name string) (bool, error) {
	conn, release, err := c.borrow(ctx, "hasStore", "")
	if err != nil {
		return false, err
	}
	defer release()
	return conn.HasStore(name), nil
}

// StoreNames lists the stores of the database in sorted order.
func (c *Client) StoreNames(ctx context.Context) ([]string, error) {
	conn, release, err := c.borrow(ctx, "storeNames", "")
	if err != nil {
		return nil, err
	}
	defer release()
	return conn.StoreNames(), nil
}

// AddStore creates a store with one index per entry of indexes, named after
// and keyed by the field of the same name; the flag marks the index unique.
// Adding a store that exists is a no-op unless WithReplace is given.
func (c *Client) AddStore(ctx context.Context, name string, indexes map[string]bool, opts ...StoreOption) error {
	if name == "" {
		return invalidArgument("addStore", name, "store name is empty")
	}
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !o.replace && c.holdsStore(name) {
		return nil
	}

	_, err := c.reopen(ctx, "addStore", name, true, func(tx *db.UpgradeTx) error {
		if tx.HasStore(name) {
			if !o.replace {
				return nil
			}
			if err := tx.DeleteObjectStore(name); err != nil {
				return err
			}
		}
		s, err := tx.CreateObjectStore(name, o.keyPath, o.keyPath == "")
		if err != nil {
			return err
		}
		for _, field := range sortedKeys(indexes) {
			if _, err := s.CreateIndex(field, field, indexes[field]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Client.Debug().Str("db", c.name).Str("store", name).Bool("replace", o.replace).Msg("store added")
	return nil
}

// DelStore drops a store with all its records. Dropping a missing store is a
// no-op.
func (c *Client) DelStore(ctx context.Context, name string) error {
	if name == "" {
		return invalidArgument("delStore", name, "store name is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() && !c.conn.HasStore(name) && !c.opts.versionBumpOnOpen {
		return nil
	}

	_, err := c.reopen(ctx, "delStore", name, false, func(tx *db.UpgradeTx) error {
		if !tx.HasStore(name) {
			return nil
		}
		return tx.DeleteObjectStore(name)
	})
	if err != nil {
		return err
	}
	log.Client.Debug().Str("db", c.name).Str("store", name).Msg("store deleted")
	return nil
}

// holdsStore reports whether the live held connection already shows the
// store, in which case no upgrade is needed. Callers hold c.mu.
func (c *Client) holdsStore(name string) bool {
	if c.opts.versionBumpOnOpen || c.conn == nil || c.conn.IsClosed() {
		return false
	}
	return c.conn.HasStore(name)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
