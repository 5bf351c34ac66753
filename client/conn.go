package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/valleykid/growup/db"
	"github.com/valleykid/growup/log"
)

// maxOpenAttempts bounds the retries when another client moves the stored
// version between reading it and opening.
const maxOpenAttempts = 3

// Open closes the held connection and reopens the database at a version
// above every version observed so far, which runs an upgrade step. When store
// is not empty and the database has no such store, Open fails with
// ErrStoreNotFound and no connection is held.
func (c *Client) Open(ctx context.Context, store string) (*db.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reopen(ctx, "open", store, store != "", nil)
}

// Close releases the held connection once in-flight operations finish.
// Closing a client without a connection does nothing.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}

// reopen is Open with an optional schema change run in the upgrade step.
// When mustHave is set the store has to exist afterwards. Callers hold c.mu
// exclusively.
func (c *Client) reopen(ctx context.Context, op, store string, mustHave bool, upgrade func(tx *db.UpgradeTx) error) (*db.Connection, error) {
	c.closeLocked()

	conn, err := c.openNext(ctx, upgrade)
	if err != nil {
		return nil, wrap(op, store, ErrConnection, err)
	}
	if mustHave && !conn.HasStore(store) {
		_ = conn.Close()
		return nil, &Error{Op: op, Store: store, Kind: ErrStoreNotFound}
	}
	c.adopt(conn)
	return conn, nil
}

// openNext opens the database one version above the highest one seen, so
// the upgrade step always runs.
func (c *Client) openNext(ctx context.Context, upgrade func(tx *db.UpgradeTx) error) (*db.Connection, error) {
	var lastErr error
	for attempt := 0; attempt < maxOpenAttempts; attempt++ {
		stored, err := c.factory.Version(ctx, c.name)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		target := max(stored, c.version) + 1

		upgraded := false
		conn, err := c.factory.Open(ctx, c.name, target, func(tx *db.UpgradeTx, _ uint64) error {
			upgraded = true
			log.Client.Debug().
				Str("db", c.name).
				Uint64("from", tx.OldVersion()).
				Uint64("to", tx.NewVersion()).
				Msg("running upgrade step")
			if upgrade == nil {
				return nil
			}
			return upgrade(tx)
		})
		switch {
		case errors.Is(err, db.ErrVersion):
			lastErr = err
			continue
		case err != nil:
			return nil, err
		case !upgraded:
			// Someone else reached target first; try again above it.
			c.version = conn.Version()
			_ = conn.Close()
			lastErr = fmt.Errorf("%w: version %d was taken", db.ErrVersion, target)
			continue
		}
		log.Client.Debug().Str("db", c.name).Uint64("version", target).Msg("database reopened")
		return conn, nil
	}
	return nil, lastErr
}

// adopt makes conn the held connection. Another client's version change
// closes it, and the next borrow opens a fresh one.
func (c *Client) adopt(conn *db.Connection) {
	c.conn = conn
	c.version = conn.Version()
	conn.OnVersionChange(func(oldVersion, newVersion uint64) {
		log.Client.Debug().
			Str("db", c.name).
			Uint64("from", oldVersion).
			Uint64("to", newVersion).
			Msg("connection retired by version change")
		_ = conn.Close()
	})
}

// borrow returns the held connection, opening it when there is none, and a
// release func the caller must call when done. When store is not empty it
// must exist.
func (c *Client) borrow(ctx context.Context, op, store string) (*db.Connection, func(), error) {
	if c.opts.versionBumpOnOpen {
		c.mu.Lock()
		conn, err := c.reopen(ctx, op, store, store != "", nil)
		if err != nil {
			c.mu.Unlock()
			return nil, nil, err
		}
		return conn, c.mu.Unlock, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, wrap(op, store, ErrConnection, err)
		}

		c.mu.RLock()
		if conn := c.conn; conn != nil && !conn.IsClosed() {
			if store != "" && !conn.HasStore(store) {
				c.mu.RUnlock()
				return nil, nil, &Error{Op: op, Store: store, Kind: ErrStoreNotFound}
			}
			return conn, c.mu.RUnlock, nil
		}
		c.mu.RUnlock()

		if err := c.warm(ctx, op, store); err != nil {
			return nil, nil, err
		}
	}
}

// warm opens the database at its current version when no live connection is
// held.
func (c *Client) warm(ctx context.Context, op, store string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}
	c.closeLocked()

	conn, err := c.factory.Open(ctx, c.name, 0, nil)
	if err != nil {
		return wrap(op, store, ErrConnection, err)
	}
	c.adopt(conn)
	return nil
}

// DeleteDatabase closes the held connection and deletes the database. It
// fails with ErrConnection when other connections to it stay open.
func (c *Client) DeleteDatabase(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	if err := c.factory.DeleteDatabase(ctx, c.name); err != nil {
		return wrap("deleteDatabase", "", ErrConnection, err)
	}
	log.Client.Debug().Str("db", c.name).Msg("database deleted")
	return nil
}
