// Package op provides the record and index operations of one database
// inside a persistence transaction.
//
// The op package sits between the engine (db/) and the persistence layer
// (ps/). It owns the persisted key layout:
//
//	m enc(db)                                  -> database metadata (JSON)
//	r enc(db) storeID enc(pk)                  -> record (JSON)
//	i enc(db) storeID indexID enc(ik) enc(pk)  -> enc(pk)
//
// where enc is the order-preserving key encoding of package core and the ids
// are 8-byte big-endian integers.
//
// # DatabaseOp
//
//	dbOp, found, err := op.GetDatabase(tx, "app")
//	users, err := dbOp.CreateStore("users", "id", true)
//	dbOp.DropStore("sessions")
//
// # StoreOp
//
//	key, err := users.Put(map[string]any{"name": "alice"}, nil)
//	value, found, err := users.Get(key)
//	n, err := users.Count(nil)
//
//	idx, err := users.CreateIndex("name", "name", false)
//	c, err := users.OpenIndexCursor(idx, nil, core.NextUnique)
//	for c.Next() {
//	    v, _ := c.Value()
//	}
//
// # Architecture
//
// The layering is:
//
//	Client (client/)
//	     ↓
//	Engine (db/)
//	     ↓
//	Operations (op/)     ← This package
//	     ↓
//	Persistence (ps/)
//	     ↓
//	Git, Pebble or SQLite
package op
