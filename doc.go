// Package growup is a storage client over a transactional, versioned,
// indexed key-value engine.
//
// Databases hold named object stores of records. Each store keys its
// records either out of line, with an optional key generator, or in line
// through a key path, and may carry secondary indexes. Every client call
// runs in its own transaction, and schema changes upgrade the database to a
// new version.
//
// # Quick Start
//
// Open an in-memory instance and a client for one database:
//
//	instance, _ := growup.OpenBackend("memory", "", core.Identity{Name: "App", Email: "app@example.com"})
//	defer instance.Close()
//
//	c := instance.Client("app")
//	defer c.Close()
//
//	c.AddStore(ctx, "users", map[string]bool{"name": false})
//	c.Set(ctx, "users", []any{
//	    map[string]any{"name": "Alice"},
//	    map[string]any{"name": "Bob"},
//	}, nil)
//
//	page, _ := c.FindPage(ctx, client.PageQuery{Store: "users", Index: "name", Page: 1, Num: 10})
//
// # Backends
//
// The engine runs on any of these persistence backends:
//   - git: every committed transaction is a Git commit, with history,
//     restore and remote sync (memory or on disk)
//   - pebble: an LSM key-value store (on disk or in memory)
//   - sqlite: a single table in a SQLite database file
//
// # Packages
//
//   - client: the storage client applications use
//   - db: the engine with factories, connections, transactions and cursors
//   - op: record and index operations within one transaction
//   - core: keys, key ranges and schema metadata
//   - ps: persistence backends
package growup
