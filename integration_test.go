package growup

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/valleykid/growup/client"
	"github.com/valleykid/growup/config"
	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/db"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

// TestFunc is the signature for test functions that work with any backend
type TestFunc func(t *testing.T, instance *Instance)

// runWithEachBackend runs a test function with every persistence backend
func runWithEachBackend(t *testing.T, testFunc TestFunc) {
	for _, kind := range []string{config.BackendMemory, config.BackendGit, config.BackendPebble, config.BackendSQLite} {
		t.Run(kind, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data")
			if kind == config.BackendSQLite {
				path += ".db"
			}
			instance, err := OpenBackend(kind, path, testIdentity)
			if err != nil {
				t.Fatalf("Failed to open %s backend: %v", kind, err)
			}
			defer instance.Close()
			testFunc(t, instance)
		})
	}
}

// TestIntegrationWorkflow tests a complete client workflow
func TestIntegrationWorkflow(t *testing.T) {
	runWithEachBackend(t, func(t *testing.T, instance *Instance) {
		ctx := context.Background()
		c := instance.Client("company")
		defer c.Close()

		if err := c.AddStore(ctx, "employees", map[string]bool{"department": false, "email": true}); err != nil {
			t.Fatalf("Failed to add store: %v", err)
		}
		if err := c.AddStore(ctx, "departments", nil, client.WithKeyPath("code")); err != nil {
			t.Fatalf("Failed to add store: %v", err)
		}

		employees := []any{
			map[string]any{"name": "Alice", "department": "eng", "email": "alice@x", "salary": 80000},
			map[string]any{"name": "Bob", "department": "eng", "email": "bob@x", "salary": 75000},
			map[string]any{"name": "Charlie", "department": "sales", "email": "charlie@x", "salary": 60000},
			map[string]any{"name": "Diana", "department": "marketing", "email": "diana@x", "salary": 65000},
			map[string]any{"name": "Eve", "department": "eng", "email": "eve@x", "salary": 90000},
		}
		keys, err := c.Set(ctx, "employees", employees, nil)
		if err != nil {
			t.Fatalf("Failed to insert employees: %v", err)
		}
		if !reflect.DeepEqual(keys, []any{1.0, 2.0, 3.0, 4.0, 5.0}) {
			t.Errorf("Expected generated keys 1..5, got %v", keys)
		}

		_, err = c.Set(ctx, "departments", []any{
			map[string]any{"code": "eng", "name": "Engineering"},
			map[string]any{"code": "sales", "name": "Sales"},
		}, nil)
		if err != nil {
			t.Fatalf("Failed to insert departments: %v", err)
		}

		eng, err := c.FindPage(ctx, client.PageQuery{Store: "employees", Index: "department", Start: "eng", End: "eng", Page: 1, Num: 2})
		if err != nil {
			t.Fatalf("Failed to page employees: %v", err)
		}
		if eng.Total != 3 || len(eng.List) != 2 {
			t.Errorf("Expected 2 of 3 engineers, got %d of %d", len(eng.List), eng.Total)
		}

		// Duplicate email aborts the batch
		_, err = c.Set(ctx, "employees", []any{
			map[string]any{"name": "Frank", "department": "eng", "email": "frank@x"},
			map[string]any{"name": "Alice2", "department": "eng", "email": "alice@x"},
		}, nil)
		if !errors.Is(err, db.ErrConstraint) {
			t.Errorf("Expected constraint error, got %v", err)
		}
		count, err := c.Count(ctx, "employees", nil, nil)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 5 {
			t.Errorf("Expected 5 employees after failed batch, got %d", count)
		}

		dept, found, err := c.Get(ctx, "departments", "sales")
		if err != nil || !found {
			t.Fatalf("Failed to get department: %v", err)
		}
		if dept.(map[string]any)["name"] != "Sales" {
			t.Errorf("Expected Sales, got %v", dept)
		}

		if err := c.Del(ctx, "employees", 2, 4); err != nil {
			t.Fatalf("Failed to delete range: %v", err)
		}
		names, err := c.Find(ctx, "employees", "", nil, nil, core.Prev)
		if err != nil {
			t.Fatalf("Failed to find: %v", err)
		}
		if len(names) != 2 || names[0].(map[string]any)["name"] != "Eve" {
			t.Errorf("Expected Eve then Alice, got %v", names)
		}

		if err := c.DelStore(ctx, "departments"); err != nil {
			t.Fatalf("Failed to drop store: %v", err)
		}
		stores, err := c.StoreNames(ctx)
		if err != nil {
			t.Fatalf("Failed to list stores: %v", err)
		}
		if !reflect.DeepEqual(stores, []string{"employees"}) {
			t.Errorf("Expected only employees, got %v", stores)
		}

		dbs, err := instance.Factory().Databases(ctx)
		if err != nil {
			t.Fatalf("Failed to list databases: %v", err)
		}
		if len(dbs) != 1 || dbs[0].Name != "company" {
			t.Errorf("Expected database company, got %v", dbs)
		}
	})
}

// TestConcurrentClients runs writers on separate clients while another
// client keeps changing the schema
func TestConcurrentClients(t *testing.T) {
	runWithEachBackend(t, func(t *testing.T, instance *Instance) {
		ctx := context.Background()
		setup := instance.Client("shared")
		defer setup.Close()
		if err := setup.AddStore(ctx, "events", nil); err != nil {
			t.Fatalf("Failed to add store: %v", err)
		}

		const writers, perWriter = 4, 10
		var wg sync.WaitGroup
		errs := make(chan error, writers*perWriter+writers)

		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				c := instance.Client("shared")
				defer c.Close()
				for i := 0; i < perWriter; i++ {
					if _, err := c.Set(ctx, "events", map[string]any{"writer": w, "i": i}, nil); err != nil {
						errs <- err
					}
				}
			}(w)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2; i++ {
				if err := setup.AddStore(ctx, "extra", nil, client.WithReplace()); err != nil {
					errs <- err
				}
			}
		}()

		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("Concurrent operation failed: %v", err)
		}

		count, err := setup.Count(ctx, "events", nil, nil)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != writers*perWriter {
			t.Errorf("Expected %d events, got %d", writers*perWriter, count)
		}
	})
}

// TestGitHistoryRestore restores the store to an earlier transaction
func TestGitHistoryRestore(t *testing.T) {
	instance, err := OpenBackend(config.BackendMemory, "", testIdentity)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	defer instance.Close()

	git, ok := instance.Git()
	if !ok {
		t.Fatal("Expected git backend")
	}

	ctx := context.Background()
	c := instance.Client("app")
	if err := c.AddStore(ctx, "notes", nil); err != nil {
		t.Fatalf("Failed to add store: %v", err)
	}
	if _, err := c.Set(ctx, "notes", "first", nil); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	checkpoint := git.LatestTransaction()
	if checkpoint.IsZero() {
		t.Fatal("Expected a committed transaction")
	}
	if checkpoint.Author != "test <test@test.com>" {
		t.Errorf("Expected commit author from identity, got %q", checkpoint.Author)
	}

	if _, err := c.Set(ctx, "notes", "second", nil); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if len(git.TransactionsFrom(git.LatestTransaction().Id)) < 3 {
		t.Error("Expected upgrade and both writes in history")
	}
	c.Close()

	if err := git.Restore(checkpoint); err != nil {
		t.Fatalf("Failed to restore: %v", err)
	}

	c = instance.Client("app")
	defer c.Close()
	notes, err := c.Find(ctx, "notes", "", nil, nil, core.Next)
	if err != nil {
		t.Fatalf("Failed to find: %v", err)
	}
	if !reflect.DeepEqual(notes, []any{"first"}) {
		t.Errorf("Expected only the first note after restore, got %v", notes)
	}
}

func TestOpenBackendUnknown(t *testing.T) {
	if _, err := OpenBackend("redis", "", testIdentity); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
