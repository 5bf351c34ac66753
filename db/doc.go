// Package db is the transactional, versioned, indexed storage engine that
// growup clients run against.
//
// A Factory opens named databases kept in a ps.KVStore. Opening at a higher
// version than the stored one runs an upgrade callback inside a version
// change transaction, the only place where stores and indexes are created or
// dropped.
//
// # Usage
//
//	factory := db.NewFactory(store)
//	conn, err := factory.Open(ctx, "app", 1, func(tx *db.UpgradeTx, old uint64) error {
//	    users, err := tx.CreateObjectStore("users", "", true)
//	    if err != nil {
//	        return err
//	    }
//	    _, err = users.CreateIndex("name", "name", false)
//	    return err
//	})
//	tx, err := conn.Transaction(ctx, []string{"users"}, core.ReadWrite)
//	users, err := tx.ObjectStore("users")
//	key, err := users.Put(map[string]any{"name": "a"}, nil)
//	_, err = tx.Commit()
//
// # Transactions
//
// Read-only transactions see a snapshot of the store. Read-write transactions
// are exclusive per KVStore and commit atomically. A write that fails aborts
// its transaction, so nothing it wrote is ever visible.
package db
