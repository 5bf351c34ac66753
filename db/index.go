package db

import (
	"fmt"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/op"
)

// Index is a secondary ordering of a store's records by the value at a key
// path. Records without a valid key at that path are not indexed.
type Index struct {
	store *ObjectStore
	meta  *core.IndexMeta
}

func (i *Index) Name() string {
	return i.meta.Name
}

func (i *Index) KeyPath() string {
	return i.meta.KeyPath
}

func (i *Index) Unique() bool {
	return i.meta.Unique
}

func (i *Index) ObjectStore() *ObjectStore {
	return i.store
}

// Count returns the number of index entries whose key is in r.
func (i *Index) Count(r *core.KeyRange) (int, error) {
	nr, err := normalizeRange(r)
	if err != nil {
		return 0, err
	}
	var n int
	err = i.store.t.do(false, func() (err error) {
		n, err = i.store.op.CountIndex(i.meta, nr)
		return err
	})
	return n, err
}

// Get returns the record with the lowest primary key among those whose index
// key equals key.
func (i *Index) Get(key any) (value any, found bool, err error) {
	r, err := core.Only(key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrData, err)
	}
	c, err := i.OpenCursor(r, core.Next)
	if err != nil {
		return nil, false, err
	}
	defer c.Close()

	if !c.Next() {
		return nil, false, c.Err()
	}
	value, err = c.Value()
	return value, err == nil, err
}

// OpenCursor opens a cursor over the index entries whose key is in r.
func (i *Index) OpenCursor(r *core.KeyRange, dir core.Direction) (*Cursor, error) {
	nr, err := normalizeRange(r)
	if err != nil {
		return nil, err
	}
	return i.store.t.openCursor(func() (*op.Cursor, error) {
		return i.store.op.OpenIndexCursor(i.meta, nr, dir)
	})
}
