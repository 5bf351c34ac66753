package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/db"
	"github.com/valleykid/growup/ps"
)

// runWithEachBackend runs fn with a factory on every persistence backend.
func runWithEachBackend(t *testing.T, fn func(t *testing.T, f *db.Factory)) {
	backends := []struct {
		name string
		open func(t *testing.T) ps.KVStore
	}{
		{"Git", func(t *testing.T) ps.KVStore {
			p, err := ps.NewMemoryPersistence()
			require.NoError(t, err)
			return p
		}},
		{"Pebble", func(t *testing.T) ps.KVStore {
			s, err := ps.NewPebbleMemoryStore()
			require.NoError(t, err)
			return s
		}},
		{"SQLite", func(t *testing.T) ps.KVStore {
			s, err := ps.NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			return s
		}},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			kv := b.open(t)
			t.Cleanup(func() { _ = kv.Close() })
			fn(t, db.NewFactory(kv))
		})
	}
}

func newClient(t *testing.T, f *db.Factory, opts ...Option) *Client {
	t.Helper()
	c := New(f, "app", opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func seedUsers(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.AddStore(ctx, "users", map[string]bool{"name": false}))
	keys, err := c.Set(ctx, "users", []any{
		map[string]any{"name": "a"},
		map[string]any{"name": "b"},
		map[string]any{"name": "c"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []any{1.0, 2.0, 3.0}, keys)
}

func TestUsersScenario(t *testing.T) {
	runWithEachBackend(t, func(t *testing.T, f *db.Factory) {
		ctx := context.Background()
		c := newClient(t, f)
		seedUsers(t, c)

		page, err := c.FindPage(ctx, PageQuery{Store: "users", Index: "name", Page: 1, Num: 2})
		require.NoError(t, err)
		assert.Equal(t, Page{Total: 3, List: []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b"},
		}}, page)

		page, err = c.FindPage(ctx, PageQuery{Store: "users", Index: "name", Page: 2, Num: 2})
		require.NoError(t, err)
		assert.Equal(t, Page{Total: 3, List: []any{map[string]any{"name": "c"}}}, page)

		page, err = c.FindPage(ctx, PageQuery{Store: "users", Index: "name", Page: 3, Num: 2})
		require.NoError(t, err)
		assert.Equal(t, Page{Total: 3, List: []any{}}, page)

		require.NoError(t, c.Del(ctx, "users", 1, nil))
		v, found, err := c.Get(ctx, "users", 1)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, v)

		// Adding the store again leaves it and its records alone.
		require.NoError(t, c.AddStore(ctx, "users", map[string]bool{}))
		n, err := c.Count(ctx, "users", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		names, err := c.Find(ctx, "users", "name", nil, nil, core.Next)
		require.NoError(t, err)
		assert.Equal(t, []any{map[string]any{"name": "b"}, map[string]any{"name": "c"}}, names)
	})
}

func TestSetAndGet(t *testing.T) {
	runWithEachBackend(t, func(t *testing.T, f *db.Factory) {
		ctx := context.Background()
		c := newClient(t, f)
		require.NoError(t, c.AddStore(ctx, "kv", nil))

		key, err := c.Set(ctx, "kv", map[string]any{"id": "x1", "n": 1}, "id")
		require.NoError(t, err)
		assert.Equal(t, "x1", key, "key names a property of the record")

		key, err = c.Set(ctx, "kv", "plain value", "literal")
		require.NoError(t, err)
		assert.Equal(t, "literal", key)

		key, err = c.Set(ctx, "kv", []any{1, 2}, 42, WithoutSpread())
		require.NoError(t, err)
		assert.Equal(t, 42.0, key)

		v, found, err := c.Get(ctx, "kv", "x1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, map[string]any{"id": "x1", "n": 1.0}, v)

		v, _, err = c.Get(ctx, "kv", 42)
		require.NoError(t, err)
		assert.Equal(t, []any{1.0, 2.0}, v)

		// A generated key continues above the largest numeric key seen.
		key, err = c.Set(ctx, "kv", "next", nil)
		require.NoError(t, err)
		assert.Equal(t, 43.0, key)

		_, _, err = c.Get(ctx, "kv", true)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, _, err = c.Get(ctx, "missing", 1)
		assert.ErrorIs(t, err, ErrStoreNotFound)
		_, err = c.Set(ctx, "", 1, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestInlineKeys(t *testing.T) {
	runWithEachBackend(t, func(t *testing.T, f *db.Factory) {
		ctx := context.Background()
		c := newClient(t, f)
		require.NoError(t, c.AddStore(ctx, "accounts", map[string]bool{"email": true}, WithKeyPath("id")))

		keys, err := c.Set(ctx, "accounts", []map[string]any{
			{"id": "a", "email": "a@x"},
			{"id": "b", "email": "b@x"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, keys)

		_, err = c.Set(ctx, "accounts", map[string]any{"id": "c", "email": "c@x"}, "c")
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = c.Set(ctx, "accounts", map[string]any{"email": "d@x"}, nil)
		assert.ErrorIs(t, err, ErrMutation, "no key at the key path and no generator")

		// A unique violation anywhere in the batch stores nothing.
		_, err = c.Set(ctx, "accounts", []any{
			map[string]any{"id": "e", "email": "e@x"},
			map[string]any{"id": "f", "email": "a@x"},
		}, nil)
		assert.ErrorIs(t, err, ErrMutation)
		assert.ErrorIs(t, err, db.ErrConstraint)

		n, err := c.Count(ctx, "accounts", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestDelRangeAndClear(t *testing.T) {
	runWithEachBackend(t, func(t *testing.T, f *db.Factory) {
		ctx := context.Background()
		c := newClient(t, f)
		require.NoError(t, c.AddStore(ctx, "nums", nil))
		for i := 1; i <= 6; i++ {
			_, err := c.Set(ctx, "nums", i*10, i)
			require.NoError(t, err)
		}

		require.NoError(t, c.Del(ctx, "nums", 2, 4))
		all, err := c.Find(ctx, "nums", "", nil, nil, core.Next)
		require.NoError(t, err)
		assert.Equal(t, []any{10.0, 50.0, 60.0}, all)

		require.NoError(t, c.Del(ctx, "nums", 5, false))
		n, err := c.Count(ctx, "nums", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		// Deleting a missing key is not an error.
		require.NoError(t, c.Del(ctx, "nums", 99, nil))
		assert.ErrorIs(t, c.Del(ctx, "nums", nil, nil), ErrInvalidArgument)

		require.NoError(t, c.Clear(ctx, "nums"))
		n, err = c.Count(ctx, "nums", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestFindPagesReassembleFind(t *testing.T) {
	runWithEachBackend(t, func(t *testing.T, f *db.Factory) {
		ctx := context.Background()
		c := newClient(t, f)
		require.NoError(t, c.AddStore(ctx, "items", map[string]bool{"group": false}))
		for i := 0; i < 7; i++ {
			_, err := c.Set(ctx, "items", map[string]any{"group": i % 3, "i": i}, nil)
			require.NoError(t, err)
		}

		for _, dir := range []core.Direction{core.Next, core.Prev, "sideways"} {
			for _, index := range []string{"", "group"} {
				want, err := c.Find(ctx, "items", index, 0, 2, dir)
				require.NoError(t, err)

				var got []any
				num := 3
				for page := 1; page <= 4; page++ {
					p, err := c.FindPage(ctx, PageQuery{Store: "items", Index: index, Start: 0, End: 2, Page: page, Num: num, Direction: dir})
					require.NoError(t, err)
					assert.Equal(t, len(want), p.Total)
					assert.Len(t, p.List, min(num, max(0, len(want)-num*(page-1))))
					got = append(got, p.List...)
				}
				assert.Equal(t, want, got, "direction %s index %q", dir, index)
			}
		}

		n, err := c.Count(ctx, "items", 1, 4)
		require.NoError(t, err)
		found, err := c.Find(ctx, "items", "", 1, 4, core.Next)
		require.NoError(t, err)
		assert.Equal(t, len(found), n)
	})
}

func TestFindPageArguments(t *testing.T) {
	runWithEachBackend(t, func(t *testing.T, f *db.Factory) {
		ctx := context.Background()
		c := newClient(t, f)
		seedUsers(t, c)

		for _, q := range []PageQuery{
			{Store: "users", Page: -1, Num: 10},
			{Store: "users", Page: 1, Num: -5},
			{Store: "users", Page: 0, Num: 10},
			{Store: "users", Page: 1, Num: 0},
			{Store: "users"},
		} {
			_, err := c.FindPage(ctx, q)
			assert.ErrorIs(t, err, ErrInvalidArgument, "page %d num %d", q.Page, q.Num)
		}

		p, err := c.FindPage(ctx, NewPageQuery("users"))
		require.NoError(t, err)
		assert.Equal(t, 3, p.Total)
		assert.Len(t, p.List, 3)

		q := NewPageQuery("users")
		q.Index = "nope"
		_, err = c.FindPage(ctx, q)
		assert.ErrorIs(t, err, ErrQuery)
		assert.ErrorIs(t, err, db.ErrNotFound)

		_, err = c.FindPage(ctx, NewPageQuery("ghosts"))
		assert.ErrorIs(t, err, ErrStoreNotFound)

		p, err = c.FindPage(ctx, PageQuery{Store: "users", Index: "name", Start: "b", End: "b", Page: 1, Num: 10})
		require.NoError(t, err)
		assert.Equal(t, Page{Total: 1, List: []any{map[string]any{"name": "b"}}}, p)
	})
}
