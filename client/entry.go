package client

import (
	"fmt"

	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/db"
)

// entry is one record ready to be written, with its key discipline already
// decided.
type entry interface {
	put(s *db.ObjectStore) (any, error)
}

// keyedEntry is written to a store with out-of-line keys. A nil key lets the
// store's generator pick one.
type keyedEntry struct {
	value any
	key   any
}

func (e keyedEntry) put(s *db.ObjectStore) (any, error) {
	return s.Put(e.value, e.key)
}

// selfDescribingEntry carries its key at the store's key path.
type selfDescribingEntry struct {
	value any
}

func (e selfDescribingEntry) put(s *db.ObjectStore) (any, error) {
	return s.Put(e.value, nil)
}

// resolveEntry decides how value is keyed in a store with the given key
// path. For out-of-line keys, key names a property of value when value is an
// object holding it; otherwise key is the key itself.
func resolveEntry(keyPath string, value, key any) (entry, error) {
	if keyPath != "" {
		if key != nil {
			return nil, fmt.Errorf("store uses in-line keys and an explicit key was also provided")
		}
		return selfDescribingEntry{value: value}, nil
	}

	if name, ok := key.(string); ok {
		normalized, err := core.NormalizeValue(value)
		if err != nil {
			return nil, err
		}
		if obj, ok := normalized.(map[string]any); ok {
			if v, has := obj[name]; has {
				return keyedEntry{value: normalized, key: v}, nil
			}
		}
		return keyedEntry{value: normalized, key: key}, nil
	}
	if key != nil && !core.IsValidKey(key) {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidKey, key)
	}
	return keyedEntry{value: value, key: key}, nil
}
