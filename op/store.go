package op

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/ps"
)

// StoreOp runs record and index operations on one object store inside a
// persistence transaction.
type StoreOp struct {
	Database string
	Meta     *core.StoreMeta
	Tx       ps.Tx
	// OnMetaChange persists the schema after the key generator or the index
	// set changed.
	OnMetaChange func() error
}

func (s *StoreOp) prefix() []byte {
	return recordPrefix(s.Database, s.Meta.ID)
}

func (s *StoreOp) metaChanged() error {
	if s.OnMetaChange == nil {
		return nil
	}
	return s.OnMetaChange()
}

// Get returns the record stored under key.
func (s *StoreOp) Get(key any) (value any, found bool, err error) {
	pk, err := core.NormalizeKey(key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrData, err)
	}
	return s.getRecord(pk)
}

func (s *StoreOp) getRecord(pk any) (any, bool, error) {
	data, err := s.Tx.Get(RecordKey(s.Database, s.Meta.ID, pk))
	if errors.Is(err, ps.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := core.DecodeValue(data)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// resolveKey applies the store's key discipline to a normalized value and an
// optional out-of-line key. It may inject a generated key into value.
func (s *StoreOp) resolveKey(value, key any) (any, error) {
	if s.Meta.KeyPath != "" {
		if key != nil {
			return nil, fmt.Errorf("%w: store %s uses in-line keys, an explicit key is not allowed", ErrData, s.Meta.Name)
		}
		raw, found := core.ExtractKey(value, s.Meta.KeyPath)
		if found {
			pk, err := core.NormalizeKey(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: key path %s: %v", ErrData, s.Meta.KeyPath, err)
			}
			return pk, nil
		}
		if !s.Meta.AutoIncrement {
			return nil, fmt.Errorf("%w: record has no value at key path %s", ErrData, s.Meta.KeyPath)
		}
		pk, err := s.generate()
		if err != nil {
			return nil, err
		}
		if err := core.InjectKey(value, s.Meta.KeyPath, pk); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrData, err)
		}
		return pk, nil
	}

	if key == nil {
		if !s.Meta.AutoIncrement {
			return nil, fmt.Errorf("%w: store %s needs an explicit key", ErrData, s.Meta.Name)
		}
		return s.generate()
	}
	pk, err := core.NormalizeKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}
	return pk, nil
}

func (s *StoreOp) generate() (any, error) {
	k, err := s.Meta.NextKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	if err := s.metaChanged(); err != nil {
		return nil, err
	}
	return k, nil
}

// Put writes value, replacing any record with the same key, and returns the
// key it was stored under. key must be nil for stores with a key path.
func (s *StoreOp) Put(value, key any) (any, error) {
	v, err := core.NormalizeValue(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrData, err)
	}

	pk, err := s.resolveKey(v, key)
	if err != nil {
		return nil, err
	}
	if s.Meta.ObserveKey(pk) {
		if err := s.metaChanged(); err != nil {
			return nil, err
		}
	}

	old, exists, err := s.getRecord(pk)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := s.removeIndexEntries(old, pk); err != nil {
			return nil, err
		}
	}

	for _, name := range s.Meta.IndexNames() {
		if err := s.addIndexEntry(s.Meta.Indexes[name], v, pk); err != nil {
			return nil, err
		}
	}

	data, err := core.EncodeValue(v)
	if err != nil {
		return nil, err
	}
	if err := s.Tx.Set(RecordKey(s.Database, s.Meta.ID, pk), data); err != nil {
		return nil, err
	}
	return pk, nil
}

// indexKeyOf returns the index key of a record, or false when the record is
// not indexed.
func indexKeyOf(idx *core.IndexMeta, value any) (any, bool) {
	raw, found := core.ExtractKey(value, idx.KeyPath)
	if !found {
		return nil, false
	}
	k, err := core.NormalizeKey(raw)
	if err != nil {
		return nil, false
	}
	return k, true
}

func (s *StoreOp) addIndexEntry(idx *core.IndexMeta, value, pk any) error {
	ik, ok := indexKeyOf(idx, value)
	if !ok {
		return nil
	}

	if idx.Unique {
		prefix := core.AppendKey(indexPrefix(s.Database, s.Meta.ID, idx.ID), ik)
		it, err := s.Tx.NewIterator(prefix, core.PrefixEnd(prefix), false)
		if err != nil {
			return err
		}
		pkEnc := core.AppendKey(nil, pk)
		for it.Next() {
			if !bytes.Equal(it.Key()[len(prefix):], pkEnc) {
				it.Close()
				return fmt.Errorf("%w: index %s already has key %v", ErrConstraint, idx.Name, ik)
			}
		}
		if err := it.Close(); err != nil {
			return err
		}
	}

	entry := IndexEntryKey(s.Database, s.Meta.ID, idx.ID, ik, pk)
	return s.Tx.Set(entry, core.AppendKey(nil, pk))
}

func (s *StoreOp) removeIndexEntries(value, pk any) error {
	for _, idx := range s.Meta.Indexes {
		ik, ok := indexKeyOf(idx, value)
		if !ok {
			continue
		}
		if err := s.Tx.Delete(IndexEntryKey(s.Database, s.Meta.ID, idx.ID, ik, pk)); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes every record whose key is in r.
func (s *StoreOp) Delete(r *core.KeyRange) error {
	if r.IsOnly() {
		old, exists, err := s.getRecord(r.Lower)
		if err != nil || !exists {
			return err
		}
		if err := s.removeIndexEntries(old, r.Lower); err != nil {
			return err
		}
		return s.Tx.Delete(RecordKey(s.Database, s.Meta.ID, r.Lower))
	}

	start, end, ok := r.Bounds(s.prefix())
	if !ok {
		return nil
	}

	if len(s.Meta.Indexes) > 0 {
		it, err := s.Tx.NewIterator(start, end, false)
		if err != nil {
			return err
		}
		type victim struct{ pk, value any }
		var victims []victim
		for it.Next() {
			pk, err := decodeRecordKey(it.Key(), s.prefix())
			if err == nil {
				var data []byte
				data, err = it.Value()
				if err == nil {
					var v any
					v, err = core.DecodeValue(data)
					victims = append(victims, victim{pk, v})
				}
			}
			if err != nil {
				it.Close()
				return err
			}
		}
		if err := it.Close(); err != nil {
			return err
		}
		for _, v := range victims {
			if err := s.removeIndexEntries(v.value, v.pk); err != nil {
				return err
			}
		}
	}

	return s.Tx.DeleteRange(start, end)
}

// Clear removes every record and index entry of the store.
func (s *StoreOp) Clear() error {
	for _, prefix := range [][]byte{s.prefix(), storeIndexesPrefix(s.Database, s.Meta.ID)} {
		if err := s.Tx.DeleteRange(prefix, core.PrefixEnd(prefix)); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreOp) drop() error {
	return s.Clear()
}

// Count returns the number of records whose key is in r.
func (s *StoreOp) Count(r *core.KeyRange) (int, error) {
	return countRange(s.Tx, r, s.prefix())
}

// CountIndex returns the number of entries of idx whose index key is in r.
func (s *StoreOp) CountIndex(idx *core.IndexMeta, r *core.KeyRange) (int, error) {
	return countRange(s.Tx, r, indexPrefix(s.Database, s.Meta.ID, idx.ID))
}

func countRange(tx ps.Tx, r *core.KeyRange, prefix []byte) (int, error) {
	start, end, ok := r.Bounds(prefix)
	if !ok {
		return 0, nil
	}
	it, err := tx.NewIterator(start, end, false)
	if err != nil {
		return 0, err
	}

	n := 0
	for it.Next() {
		n++
	}
	// Some backends only report read failures when the iterator closes.
	if err := it.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

// Index returns the metadata of the named index.
func (s *StoreOp) Index(name string) (*core.IndexMeta, error) {
	idx, ok := s.Meta.Indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on store %s", ErrNoIndex, name, s.Meta.Name)
	}
	return idx, nil
}

// CreateIndex adds an index and populates it from the existing records.
func (s *StoreOp) CreateIndex(name, keyPath string, unique bool) (*core.IndexMeta, error) {
	if _, exists := s.Meta.Indexes[name]; exists {
		return nil, fmt.Errorf("%w: %s on store %s", ErrIndexExists, name, s.Meta.Name)
	}
	idx := s.Meta.AddIndex(name, keyPath, unique)

	start := s.prefix()
	it, err := s.Tx.NewIterator(start, core.PrefixEnd(start), false)
	if err != nil {
		return nil, err
	}
	type record struct{ pk, value any }
	var records []record
	for it.Next() {
		pk, err := decodeRecordKey(it.Key(), start)
		if err != nil {
			it.Close()
			return nil, err
		}
		data, err := it.Value()
		if err != nil {
			it.Close()
			return nil, err
		}
		v, err := core.DecodeValue(data)
		if err != nil {
			it.Close()
			return nil, err
		}
		records = append(records, record{pk, v})
	}
	if err := it.Close(); err != nil {
		return nil, err
	}

	for _, r := range records {
		if err := s.addIndexEntry(idx, r.value, r.pk); err != nil {
			return nil, err
		}
	}
	if err := s.metaChanged(); err != nil {
		return nil, err
	}
	return idx, nil
}

// DeleteIndex removes an index and all its entries.
func (s *StoreOp) DeleteIndex(name string) error {
	idx, err := s.Index(name)
	if err != nil {
		return err
	}
	prefix := indexPrefix(s.Database, s.Meta.ID, idx.ID)
	if err := s.Tx.DeleteRange(prefix, core.PrefixEnd(prefix)); err != nil {
		return err
	}
	delete(s.Meta.Indexes, name)
	return s.metaChanged()
}
