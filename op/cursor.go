package op

import (
	"bytes"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/ps"
)

// Cursor walks the records of a store, or the entries of an index, inside a
// key range.
type Cursor struct {
	store  *StoreOp
	it     ps.Iterator
	prefix []byte
	index  bool
	dir    core.Direction
	done   bool
	err    error

	key    any
	pk     any
	cur    *indexEntry
	peek   *indexEntry
	raw    []byte
	value  any
	loaded bool
}

// OpenCursor opens a cursor over the store's records in r. The unique
// directions behave like their plain counterparts since primary keys are
// unique.
func (s *StoreOp) OpenCursor(r *core.KeyRange, dir core.Direction) (*Cursor, error) {
	return s.openCursor(s.prefix(), false, r, dir)
}

// OpenIndexCursor opens a cursor over the entries of idx whose index key is
// in r. Entries with equal index keys are ordered by primary key.
func (s *StoreOp) OpenIndexCursor(idx *core.IndexMeta, r *core.KeyRange, dir core.Direction) (*Cursor, error) {
	return s.openCursor(indexPrefix(s.Database, s.Meta.ID, idx.ID), true, r, dir)
}

func (s *StoreOp) openCursor(prefix []byte, index bool, r *core.KeyRange, dir core.Direction) (*Cursor, error) {
	c := &Cursor{store: s, prefix: prefix, index: index, dir: dir}
	start, end, ok := r.Bounds(prefix)
	if !ok {
		c.done = true
		return c, nil
	}
	it, err := s.Tx.NewIterator(start, end, dir.Reverse())
	if err != nil {
		return nil, err
	}
	c.it = it
	return c, nil
}

// Next advances the cursor. It returns false at the end of the range or on
// error; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	c.loaded, c.value, c.raw = false, nil, nil

	var ok bool
	switch {
	case !c.index:
		ok = c.nextRecord()
	case c.dir == core.NextUnique:
		ok = c.nextUniqueAscending()
	case c.dir == core.PrevUnique:
		ok = c.nextUniqueDescending()
	default:
		ok = c.nextEntry()
	}
	if !ok {
		c.key, c.pk = nil, nil
		_ = c.Close()
	}
	return ok
}

func (c *Cursor) nextRecord() bool {
	if !c.it.Next() {
		return false
	}
	pk, err := decodeRecordKey(c.it.Key(), c.prefix)
	if err != nil {
		c.err = err
		return false
	}
	raw, err := c.it.Value()
	if err != nil {
		c.err = err
		return false
	}
	c.key, c.pk, c.raw = pk, pk, raw
	return true
}

func (c *Cursor) readEntry() (*indexEntry, bool) {
	if !c.it.Next() {
		return nil, false
	}
	e, err := decodeIndexEntry(c.it.Key(), c.prefix)
	if err != nil {
		c.err = err
		return nil, false
	}
	return &e, true
}

func (c *Cursor) setEntry(e *indexEntry) {
	c.cur = e
	c.key, c.pk = e.indexKey, e.pk
}

func (c *Cursor) nextEntry() bool {
	e, ok := c.readEntry()
	if !ok {
		return false
	}
	c.setEntry(e)
	return true
}

// nextUniqueAscending skips entries whose index key equals the current one,
// so each index key yields its lowest primary key.
func (c *Cursor) nextUniqueAscending() bool {
	for {
		e, ok := c.readEntry()
		if !ok {
			return false
		}
		if c.cur != nil && bytes.Equal(e.indexEnc, c.cur.indexEnc) {
			continue
		}
		c.setEntry(e)
		return true
	}
}

// nextUniqueDescending walks to the last entry of each group of equal index
// keys, which in reverse order is the one with the lowest primary key.
func (c *Cursor) nextUniqueDescending() bool {
	cur := c.peek
	c.peek = nil
	if cur == nil {
		var ok bool
		if cur, ok = c.readEntry(); !ok {
			return false
		}
	}
	for {
		e, ok := c.readEntry()
		if !ok {
			if c.err != nil {
				return false
			}
			break
		}
		if !bytes.Equal(e.indexEnc, cur.indexEnc) {
			c.peek = e
			break
		}
		cur = e
	}
	c.setEntry(cur)
	return true
}

// Key is the current store key, or the index key for index cursors.
func (c *Cursor) Key() any {
	return c.key
}

// PrimaryKey is the primary key of the current record.
func (c *Cursor) PrimaryKey() any {
	return c.pk
}

// Value loads the current record.
func (c *Cursor) Value() (any, error) {
	if c.pk == nil {
		return nil, nil
	}
	if c.loaded {
		return c.value, nil
	}

	if c.index {
		v, found, err := c.store.getRecord(c.pk)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		c.value = v
	} else {
		v, err := core.DecodeValue(c.raw)
		if err != nil {
			return nil, err
		}
		c.value = v
	}
	c.loaded = true
	return c.value, nil
}

func (c *Cursor) Err() error {
	return c.err
}

// Close releases the iterator. A failure it reports is kept for Err.
func (c *Cursor) Close() error {
	c.done = true
	if c.it == nil {
		return c.err
	}
	it := c.it
	c.it = nil
	if err := it.Close(); err != nil && c.err == nil {
		c.err = err
	}
	return c.err
}
