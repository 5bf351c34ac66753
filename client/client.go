package client

import (
	"context"
	"errors"
	"sync"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/db"
)

// Client is the storage client for one database. It holds at most one
// connection, which operations borrow for their duration. A Client is safe
// for concurrent use.
type Client struct {
	factory *db.Factory
	name    string
	opts    options

	// mu is the borrow lock: operations hold it shared, while opening,
	// upgrading and closing hold it exclusively.
	mu      sync.RWMutex
	conn    *db.Connection
	version uint64
}

type options struct {
	versionBumpOnOpen bool
}

type Option func(*options)

// WithVersionBumpOnOpen makes every operation reopen the database at a new
// version, running an empty upgrade step each time, instead of reusing the
// held connection. Operations then run one at a time.
func WithVersionBumpOnOpen(enabled bool) Option {
	return func(o *options) {
		o.versionBumpOnOpen = enabled
	}
}

// New returns a client for the database name. Nothing is opened until the
// first operation.
func New(factory *db.Factory, name string, opts ...Option) *Client {
	c := &Client{factory: factory, name: name}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c
}

func (c *Client) Name() string {
	return c.name
}

// Version is the database version last observed by the client.
func (c *Client) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// run executes fn on store in a transaction of the given mode on a borrowed
// connection. Read-write transactions commit when fn succeeds; any failure
// aborts and is reported with the given kind.
func (c *Client) run(ctx context.Context, op, store string, mode core.Mode, kind error, fn func(s *db.ObjectStore) error) error {
	if store == "" {
		return invalidArgument(op, store, "store name is empty")
	}
	for attempt := 0; ; attempt++ {
		conn, release, err := c.borrow(ctx, op, store)
		if err != nil {
			return err
		}
		err = runTx(ctx, conn, store, mode, fn)
		release()

		// The connection was retired by another client's version change
		// between the borrow and the transaction.
		if errors.Is(err, db.ErrClosed) && attempt < maxOpenAttempts-1 {
			continue
		}
		return wrap(op, store, kind, err)
	}
}

func runTx(ctx context.Context, conn *db.Connection, store string, mode core.Mode, fn func(s *db.ObjectStore) error) error {
	tx, err := conn.Transaction(ctx, []string{store}, mode)
	if err != nil {
		return err
	}
	s, err := tx.ObjectStore(store)
	if err == nil {
		err = fn(s)
	}
	if err != nil {
		tx.Abort()
		return err
	}
	_, err = tx.Commit()
	return err
}
