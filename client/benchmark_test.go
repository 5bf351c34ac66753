package client

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/db"
	"github.com/valleykid/growup/ps"
)

// benchBackends opens each persistence backend for a benchmark, so the
// backends can be compared on the same workload.
var benchBackends = []struct {
	name string
	open func(b *testing.B) ps.KVStore
}{
	{"Git", func(b *testing.B) ps.KVStore {
		p, err := ps.NewMemoryPersistence()
		if err != nil {
			b.Fatalf("Failed to initialize persistence: %v", err)
		}
		return p
	}},
	{"Pebble", func(b *testing.B) ps.KVStore {
		s, err := ps.NewPebbleMemoryStore()
		if err != nil {
			b.Fatalf("Failed to initialize persistence: %v", err)
		}
		return s
	}},
	{"SQLite", func(b *testing.B) ps.KVStore {
		s, err := ps.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
		if err != nil {
			b.Fatalf("Failed to initialize persistence: %v", err)
		}
		return s
	}},
}

// setupBenchmarkClient creates a users store with an index on city and
// 1000 records.
func setupBenchmarkClient(b *testing.B, kv ps.KVStore) *Client {
	ctx := context.Background()
	c := New(db.NewFactory(kv), "bench")
	if err := c.AddStore(ctx, "users", map[string]bool{"city": false}); err != nil {
		b.Fatalf("Failed to add store: %v", err)
	}

	users := make([]any, 1000)
	for i := range users {
		users[i] = map[string]any{
			"name": fmt.Sprintf("User%d", i+1),
			"age":  20 + i%50,
			"city": fmt.Sprintf("City%d", i%10),
		}
	}
	if _, err := c.Set(ctx, "users", users, nil); err != nil {
		b.Fatalf("Failed to insert: %v", err)
	}
	return c
}

func runBenchmark(b *testing.B, fn func(b *testing.B, c *Client)) {
	for _, backend := range benchBackends {
		b.Run(backend.name, func(b *testing.B) {
			kv := backend.open(b)
			defer kv.Close()
			c := setupBenchmarkClient(b, kv)
			defer c.Close()

			b.ResetTimer()
			fn(b, c)
		})
	}
}

func BenchmarkGet(b *testing.B) {
	runBenchmark(b, func(b *testing.B, c *Client) {
		ctx := context.Background()
		for i := 0; i < b.N; i++ {
			if _, _, err := c.Get(ctx, "users", i%1000+1); err != nil {
				b.Fatalf("Get error: %v", err)
			}
		}
	})
}

func BenchmarkFindIndex(b *testing.B) {
	runBenchmark(b, func(b *testing.B, c *Client) {
		ctx := context.Background()
		for i := 0; i < b.N; i++ {
			if _, err := c.Find(ctx, "users", "city", "City5", "City5", core.Next); err != nil {
				b.Fatalf("Find error: %v", err)
			}
		}
	})
}

func BenchmarkFindPage(b *testing.B) {
	runBenchmark(b, func(b *testing.B, c *Client) {
		ctx := context.Background()
		for i := 0; i < b.N; i++ {
			q := PageQuery{Store: "users", Page: i%10 + 1, Num: 20}
			if _, err := c.FindPage(ctx, q); err != nil {
				b.Fatalf("FindPage error: %v", err)
			}
		}
	})
}

func BenchmarkCount(b *testing.B) {
	runBenchmark(b, func(b *testing.B, c *Client) {
		ctx := context.Background()
		for i := 0; i < b.N; i++ {
			if _, err := c.Count(ctx, "users", 100, 900); err != nil {
				b.Fatalf("Count error: %v", err)
			}
		}
	})
}

func BenchmarkSet(b *testing.B) {
	runBenchmark(b, func(b *testing.B, c *Client) {
		ctx := context.Background()
		for i := 0; i < b.N; i++ {
			record := map[string]any{"name": "Bench", "age": i % 80, "city": "City0"}
			if _, err := c.Set(ctx, "users", record, nil); err != nil {
				b.Fatalf("Set error: %v", err)
			}
		}
	})
}

func BenchmarkBulkSet(b *testing.B) {
	runBenchmark(b, func(b *testing.B, c *Client) {
		ctx := context.Background()
		batch := make([]any, 100)
		for i := range batch {
			batch[i] = map[string]any{"name": "Bulk", "city": "City1"}
		}
		for i := 0; i < b.N; i++ {
			if _, err := c.Set(ctx, "users", batch, nil); err != nil {
				b.Fatalf("Set error: %v", err)
			}
		}
	})
}
