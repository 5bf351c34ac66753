package client

import (
	"context"
	"reflect"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/db"
)

type setOptions struct {
	noSpread bool
}

type SetOption func(*setOptions)

// WithoutSpread stores a slice value as one record instead of one record per
// element.
func WithoutSpread() SetOption {
	return func(o *setOptions) {
		o.noSpread = true
	}
}

// Set upserts value into store in one read-write transaction and returns the
// key it was stored under. A slice value is stored element by element and
// Set returns the keys in the same order, unless WithoutSpread is given.
//
// For stores with out-of-line keys, key is the name of a property of value
// holding the key when value has that property, else the key itself; nil
// lets the key generator pick one. Stores with a key path read the key from
// the record and reject a non-nil key.
func (c *Client) Set(ctx context.Context, store string, value, key any, opts ...SetOption) (any, error) {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	values, spread := spreadValues(value, !o.noSpread)

	var keys []any
	err := c.run(ctx, "set", store, core.ReadWrite, ErrMutation, func(s *db.ObjectStore) error {
		entries := make([]entry, 0, len(values))
		for _, v := range values {
			e, err := resolveEntry(s.KeyPath(), v, key)
			if err != nil {
				return invalidArgument("set", store, "%v", err)
			}
			entries = append(entries, e)
		}

		keys = make([]any, 0, len(entries))
		for _, e := range entries {
			k, err := e.put(s)
			if err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if spread {
		return keys, nil
	}
	return keys[0], nil
}

// spreadValues splits a slice into its elements. []byte is a single value.
func spreadValues(value any, enabled bool) ([]any, bool) {
	if !enabled || value == nil {
		return []any{value}, false
	}
	if _, ok := value.([]byte); ok {
		return []any{value}, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{value}, false
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}

// Del deletes the record under start when end is nil, else every record in
// BuildRange(start, end).
func (c *Client) Del(ctx context.Context, store string, start, end any) error {
	var (
		r   *core.KeyRange
		err error
	)
	if end == nil {
		r, err = core.Only(start)
	} else {
		r, err = buildRange(start, end)
	}
	if err != nil {
		return invalidArgument("del", store, "%v", err)
	}

	return c.run(ctx, "del", store, core.ReadWrite, ErrMutation, func(s *db.ObjectStore) error {
		return s.Delete(r)
	})
}

// Clear removes every record of store.
func (c *Client) Clear(ctx context.Context, store string) error {
	return c.run(ctx, "clear", store, core.ReadWrite, ErrMutation, func(s *db.ObjectStore) error {
		return s.Clear()
	})
}
