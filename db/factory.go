package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/log"
	"github.com/valleykid/growup/op"
	"github.com/valleykid/growup/ps"
)

// UpgradeFunc runs inside the version change transaction of Open. Returning
// an error aborts the upgrade and leaves the stored schema untouched.
type UpgradeFunc func(tx *UpgradeTx, oldVersion uint64) error

// DatabaseInfo names a database and its stored version.
type DatabaseInfo struct {
	Name    string `json:"name"`
	Version uint64 `json:"version"`
}

// Factory opens and deletes the databases kept in one KVStore.
type Factory struct {
	kv ps.KVStore

	// openMu serializes Open and DeleteDatabase so version changes never
	// interleave.
	openMu sync.Mutex

	mu    sync.Mutex
	conns map[string]map[*Connection]struct{}
}

func NewFactory(kv ps.KVStore) *Factory {
	return &Factory{
		kv:    kv,
		conns: make(map[string]map[*Connection]struct{}),
	}
}

// Store returns the KVStore the factory works on.
func (f *Factory) Store() ps.KVStore {
	return f.kv
}

// Open returns a connection to the named database. A version of 0 opens the
// stored version, creating the database at version 1 when it does not exist.
// A version above the stored one runs onUpgrade in a version change
// transaction; every other open connection to the database is sent a version
// change notice first and Open fails with ErrBlocked if any stays open.
func (f *Factory) Open(ctx context.Context, name string, version uint64, onUpgrade UpgradeFunc) (*Connection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: database name is empty", ErrInvalidState)
	}

	f.openMu.Lock()
	defer f.openMu.Unlock()

	meta, found, err := f.readMeta(ctx, name)
	if err != nil {
		return nil, err
	}

	target := version
	if target == 0 {
		target = meta.Version
		if !found || target == 0 {
			target = 1
		}
	}
	if found && target < meta.Version {
		return nil, fmt.Errorf("%w: %s is at version %d, requested %d", ErrVersion, name, meta.Version, target)
	}
	if found && target == meta.Version {
		return f.register(name, meta), nil
	}

	oldVersion := uint64(0)
	if found {
		oldVersion = meta.Version
	}
	if err := f.notifyVersionChange(name, oldVersion, target); err != nil {
		return nil, err
	}

	meta, err = f.upgrade(ctx, name, oldVersion, target, onUpgrade)
	if err != nil {
		return nil, err
	}
	return f.register(name, meta), nil
}

func (f *Factory) readMeta(ctx context.Context, name string) (*core.DatabaseMeta, bool, error) {
	tx, err := f.kv.Begin(ctx, false)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	dbOp, found, err := op.GetDatabase(tx, name)
	if err != nil {
		return nil, false, err
	}
	return dbOp.Meta, found, nil
}

func (f *Factory) upgrade(ctx context.Context, name string, oldVersion, newVersion uint64, onUpgrade UpgradeFunc) (*core.DatabaseMeta, error) {
	tx, err := f.kv.Begin(ctx, true)
	if err != nil {
		return nil, err
	}

	dbOp, _, err := op.GetDatabase(tx, name)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	dbOp.Meta.Version = newVersion

	utx := &UpgradeTx{
		Transaction: newTransaction(ctx, nil, tx, dbOp, core.VersionChange, nil),
		oldVersion:  oldVersion,
		newVersion:  newVersion,
	}

	if onUpgrade != nil {
		if err := onUpgrade(utx, oldVersion); err != nil {
			utx.Abort()
			log.Engine.Warn().Err(err).Str("db", name).Uint64("version", newVersion).Msg("upgrade aborted")
			return nil, err
		}
	}
	if err := utx.do(true, dbOp.Save); err != nil {
		return nil, err
	}
	txn, err := utx.Commit()
	if err != nil {
		return nil, err
	}

	log.Engine.Debug().
		Str("db", name).
		Uint64("from", oldVersion).
		Uint64("to", newVersion).
		Str("tx", txn.Id).
		Msg("database upgraded")
	return dbOp.Meta.Clone(), nil
}

// notifyVersionChange sends a version change notice to every open connection
// of the database and reports ErrBlocked when some of them stay open.
func (f *Factory) notifyVersionChange(name string, oldVersion, newVersion uint64) error {
	for _, c := range f.connections(name) {
		c.versionChange(oldVersion, newVersion)
	}
	if open := len(f.connections(name)); open > 0 {
		log.Engine.Debug().Str("db", name).Int("open", open).Msg("version change blocked")
		return fmt.Errorf("%w: %d connection(s) to %s", ErrBlocked, open, name)
	}
	return nil
}

func (f *Factory) connections(name string) []*Connection {
	f.mu.Lock()
	defer f.mu.Unlock()

	conns := make([]*Connection, 0, len(f.conns[name]))
	for c := range f.conns[name] {
		conns = append(conns, c)
	}
	return conns
}

func (f *Factory) register(name string, meta *core.DatabaseMeta) *Connection {
	c := &Connection{factory: f, name: name, meta: meta}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conns[name] == nil {
		f.conns[name] = make(map[*Connection]struct{})
	}
	f.conns[name][c] = struct{}{}

	log.Engine.Debug().Str("db", name).Uint64("version", meta.Version).Msg("connection opened")
	return c
}

func (f *Factory) unregister(c *Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns[c.name], c)
	if len(f.conns[c.name]) == 0 {
		delete(f.conns, c.name)
	}
}

// DeleteDatabase removes a database with all its stores. Deleting a database
// that does not exist is not an error.
func (f *Factory) DeleteDatabase(ctx context.Context, name string) error {
	f.openMu.Lock()
	defer f.openMu.Unlock()

	meta, found, err := f.readMeta(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := f.notifyVersionChange(name, meta.Version, 0); err != nil {
		return err
	}

	tx, err := f.kv.Begin(ctx, true)
	if err != nil {
		return err
	}
	dbOp, found, err := op.GetDatabase(tx, name)
	if err == nil && found {
		err = dbOp.DropDatabase()
	}
	if err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Commit(); err != nil {
		return err
	}
	log.Engine.Debug().Str("db", name).Msg("database deleted")
	return nil
}

// Databases lists every database in the store with its version.
func (f *Factory) Databases(ctx context.Context) ([]DatabaseInfo, error) {
	tx, err := f.kv.Begin(ctx, false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	names, err := op.ListDatabases(tx)
	if err != nil {
		return nil, err
	}
	infos := make([]DatabaseInfo, 0, len(names))
	for _, name := range names {
		dbOp, _, err := op.GetDatabase(tx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, DatabaseInfo{Name: name, Version: dbOp.Meta.Version})
	}
	return infos, nil
}

// Version returns the stored version of a database, or ErrNotFound.
func (f *Factory) Version(ctx context.Context, name string) (uint64, error) {
	meta, found, err := f.readMeta(ctx, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: database %s", ErrNotFound, name)
	}
	return meta.Version, nil
}
