// Package client is the storage client applications use: it owns a
// database connection, administers stores, builds key ranges, and runs
// queries and mutations, each in its own transaction.
//
//	c := client.New(factory, "app")
//	defer c.Close()
//
//	_ = c.AddStore(ctx, "users", map[string]bool{"name": false})
//	keys, _ := c.Set(ctx, "users", []any{
//	    map[string]any{"name": "a"},
//	    map[string]any{"name": "b"},
//	}, nil)
//	page, _ := c.FindPage(ctx, client.PageQuery{Store: "users", Index: "name", Page: 1, Num: 10})
//
// Operations borrow the held connection, so routine reads and writes do not
// reopen the database. Schema changes reopen it at a higher version and wait
// for borrowed operations to finish first.
package client
