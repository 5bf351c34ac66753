package db

import (
	"errors"
	"fmt"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/log"
	"github.com/valleykid/growup/op"
)

// ObjectStore is a store as seen from one transaction.
type ObjectStore struct {
	t  *Transaction
	op *op.StoreOp
}

func (s *ObjectStore) Name() string {
	return s.op.Meta.Name
}

// KeyPath is the in-line key path, empty for stores with out-of-line keys.
func (s *ObjectStore) KeyPath() string {
	return s.op.Meta.KeyPath
}

func (s *ObjectStore) AutoIncrement() bool {
	return s.op.Meta.AutoIncrement
}

func (s *ObjectStore) IndexNames() []string {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	return s.op.Meta.IndexNames()
}

// Get returns the record stored under key. found is false when there is none.
func (s *ObjectStore) Get(key any) (value any, found bool, err error) {
	err = s.t.do(false, func() error {
		value, found, err = s.op.Get(key)
		return err
	})
	return value, found, err
}

// Put stores value and returns its key. key must be nil for stores with a
// key path and may be nil for stores with a key generator.
func (s *ObjectStore) Put(value, key any) (any, error) {
	var pk any
	err := s.t.do(true, func() (err error) {
		pk, err = s.op.Put(value, key)
		return err
	})
	return pk, err
}

// Delete removes every record whose key is in r.
func (s *ObjectStore) Delete(r *core.KeyRange) error {
	if r == nil {
		return fmt.Errorf("%w: delete needs a key or key range", ErrData)
	}
	nr, err := normalizeRange(r)
	if err != nil {
		return err
	}
	return s.t.do(true, func() error {
		return s.op.Delete(nr)
	})
}

// Clear removes every record of the store. The key generator is kept.
func (s *ObjectStore) Clear() error {
	return s.t.do(true, s.op.Clear)
}

// Count returns the number of records whose key is in r; nil counts all.
func (s *ObjectStore) Count(r *core.KeyRange) (int, error) {
	nr, err := normalizeRange(r)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.t.do(false, func() (err error) {
		n, err = s.op.Count(nr)
		return err
	})
	return n, err
}

// OpenCursor opens a cursor over the records whose key is in r.
func (s *ObjectStore) OpenCursor(r *core.KeyRange, dir core.Direction) (*Cursor, error) {
	nr, err := normalizeRange(r)
	if err != nil {
		return nil, err
	}
	return s.t.openCursor(func() (*op.Cursor, error) {
		return s.op.OpenCursor(nr, dir)
	})
}

// Index returns the named index of the store.
func (s *ObjectStore) Index(name string) (*Index, error) {
	var idx *Index
	err := s.t.do(false, func() error {
		meta, err := s.op.Index(name)
		if err != nil {
			return mapIndexError(err)
		}
		idx = &Index{store: s, meta: meta}
		return nil
	})
	return idx, err
}

// CreateIndex adds an index over keyPath and fills it from the records
// already in the store. Only allowed in a version change transaction.
func (s *ObjectStore) CreateIndex(name, keyPath string, unique bool) (*Index, error) {
	if s.t.mode != core.VersionChange {
		return nil, fmt.Errorf("%w: indexes are created in a version change transaction", ErrInvalidState)
	}
	if name == "" || keyPath == "" {
		return nil, fmt.Errorf("%w: index name and key path are required", ErrInvalidState)
	}
	var idx *Index
	err := s.t.do(true, func() error {
		meta, err := s.op.CreateIndex(name, keyPath, unique)
		if err != nil {
			return mapIndexError(err)
		}
		idx = &Index{store: s, meta: meta}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Engine.Debug().Str("store", s.Name()).Str("index", name).Bool("unique", unique).Msg("index created")
	return idx, nil
}

// DeleteIndex drops an index. Only allowed in a version change transaction.
func (s *ObjectStore) DeleteIndex(name string) error {
	if s.t.mode != core.VersionChange {
		return fmt.Errorf("%w: indexes are deleted in a version change transaction", ErrInvalidState)
	}
	return s.t.do(true, func() error {
		return mapIndexError(s.op.DeleteIndex(name))
	})
}

func mapIndexError(err error) error {
	switch {
	case errors.Is(err, op.ErrNoIndex):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, op.ErrIndexExists):
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	default:
		return err
	}
}

func normalizeRange(r *core.KeyRange) (*core.KeyRange, error) {
	nr, err := r.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}
	return nr, nil
}
