// Package ps provides the persistence layer for growup.
//
// Every backend implements KVStore: an ordered byte-keyed store with
// transactions. At most one writable transaction runs per store; readers see
// a snapshot.
//
// # Git Persistence
//
// The default backend is a Git repository accessed through go-git plumbing.
// Each key is a blob in the root tree and every committed transaction is a
// commit, so the full history can be listed and restored:
//
//	persistence, err := ps.NewMemoryPersistence()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	persistence, err := ps.NewFilePersistence("/path/to/data", nil)
//
//	txs := persistence.TransactionsSince(time.Now().Add(-time.Hour))
//	err = persistence.Restore(txs[len(txs)-1])
//
// # Pebble and SQLite
//
//	store, err := ps.NewPebbleStore("/path/to/pebble")
//	store, err := ps.NewPebbleMemoryStore()
//	store, err := ps.NewSQLiteStore("/path/to/data.db")
//
// # Transactions
//
//	tx, _ := store.Begin(ctx, true)
//	tx.Set([]byte("k1"), data1)
//	tx.Set([]byte("k2"), data2)
//	result, _ := tx.Commit()
package ps
