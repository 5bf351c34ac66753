package db

import (
	"github.com/valleykid/growup/op"
)

// Cursor walks a store or index in key order. Steps go through the owning
// transaction, so they never overlap with its other requests. A cursor is
// closed when its transaction finishes.
type Cursor struct {
	t   *Transaction
	c   *op.Cursor
	err error
}

func (t *Transaction) openCursor(open func() (*op.Cursor, error)) (*Cursor, error) {
	var cursor *Cursor
	err := t.do(false, func() error {
		c, err := open()
		if err != nil {
			return err
		}
		cursor = &Cursor{t: t, c: c}
		t.cursors[cursor] = struct{}{}
		return nil
	})
	return cursor, err
}

// Next advances the cursor and reports whether it is positioned on an entry.
// After false, Err tells exhaustion from failure.
func (c *Cursor) Next() bool {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if err := c.t.active(false); err != nil {
		c.err = err
		return false
	}
	if c.c == nil {
		return false
	}
	return c.c.Next()
}

// Key is the current store key, or the index key for index cursors.
func (c *Cursor) Key() any {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if c.c == nil {
		return nil
	}
	return c.c.Key()
}

func (c *Cursor) PrimaryKey() any {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if c.c == nil {
		return nil
	}
	return c.c.PrimaryKey()
}

// Value loads the record at the current position.
func (c *Cursor) Value() (any, error) {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if err := c.t.active(false); err != nil {
		return nil, err
	}
	if c.c == nil {
		return nil, ErrInactive
	}
	return c.c.Value()
}

func (c *Cursor) Err() error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.c == nil {
		return nil
	}
	return c.c.Err()
}

// Close releases the cursor. It is safe to call more than once.
func (c *Cursor) Close() {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	c.release()
	if c.t.cursors != nil {
		delete(c.t.cursors, c)
	}
}

// release closes the underlying iterator. Callers hold t.mu.
func (c *Cursor) release() {
	if c.c == nil {
		return
	}
	if err := c.c.Close(); err != nil && c.err == nil {
		c.err = err
	}
	c.c = nil
}
