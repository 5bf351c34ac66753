package op

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/ps"
)

// DatabaseOp reads and writes one database's schema metadata inside a
// persistence transaction.
type DatabaseOp struct {
	Meta *core.DatabaseMeta
	Tx   ps.Tx
}

// GetDatabase loads the metadata of database. found is false when the
// database has never been created.
func GetDatabase(tx ps.Tx, name string) (op *DatabaseOp, found bool, err error) {
	data, err := tx.Get(MetaKey(name))
	if errors.Is(err, ps.ErrNotFound) {
		return &DatabaseOp{Meta: core.NewDatabaseMeta(name), Tx: tx}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read database %s: %w", name, err)
	}

	meta := core.NewDatabaseMeta(name)
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, false, fmt.Errorf("corrupt metadata for database %s: %w", name, err)
	}
	return &DatabaseOp{Meta: meta, Tx: tx}, true, nil
}

// Save persists the metadata.
func (op *DatabaseOp) Save() error {
	data, err := json.Marshal(op.Meta)
	if err != nil {
		return err
	}
	return op.Tx.Set(MetaKey(op.Meta.Name), data)
}

func (op *DatabaseOp) StoreNames() []string {
	return op.Meta.StoreNames()
}

// Store returns the operations of a store, or false when it does not exist.
func (op *DatabaseOp) Store(name string) (*StoreOp, bool) {
	meta, ok := op.Meta.Stores[name]
	if !ok {
		return nil, false
	}
	return &StoreOp{Database: op.Meta.Name, Meta: meta, Tx: op.Tx, OnMetaChange: op.Save}, true
}

// CreateStore adds an empty store to the metadata.
func (op *DatabaseOp) CreateStore(name, keyPath string, autoIncrement bool) (*StoreOp, error) {
	if op.Meta.HasStore(name) {
		return nil, fmt.Errorf("%w: store %s already exists", ErrConstraint, name)
	}
	op.Meta.AddStore(name, keyPath, autoIncrement)
	if err := op.Save(); err != nil {
		return nil, err
	}
	s, _ := op.Store(name)
	return s, nil
}

// DropStore deletes a store with all its records and indexes.
func (op *DatabaseOp) DropStore(name string) error {
	s, ok := op.Store(name)
	if !ok {
		return fmt.Errorf("store %s not found", name)
	}
	if err := s.drop(); err != nil {
		return err
	}
	delete(op.Meta.Stores, name)
	return op.Save()
}

// DropDatabase deletes the metadata and every record and index entry of the
// database.
func (op *DatabaseOp) DropDatabase() error {
	name := op.Meta.Name
	for _, prefix := range [][]byte{databaseRecordsPrefix(name), databaseIndexesPrefix(name)} {
		if err := op.Tx.DeleteRange(prefix, core.PrefixEnd(prefix)); err != nil {
			return fmt.Errorf("failed to drop database %s: %w", name, err)
		}
	}
	return op.Tx.Delete(MetaKey(name))
}

// ListDatabases returns the names of every database in the store, sorted.
func ListDatabases(tx ps.Tx) ([]string, error) {
	prefix := metaPrefix()
	it, err := tx.NewIterator(prefix, core.PrefixEnd(prefix), false)
	if err != nil {
		return nil, err
	}

	var names []string
	for it.Next() {
		key, _, err := core.DecodeKey(it.Key()[len(prefix):])
		if err != nil {
			it.Close()
			return nil, err
		}
		name, ok := key.(string)
		if !ok {
			it.Close()
			return nil, fmt.Errorf("%w: database name", core.ErrCorruptKey)
		}
		names = append(names, name)
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return names, nil
}
