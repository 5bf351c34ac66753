package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrKeyPath = errors.New("key path not resolvable")

// NormalizeValue converts v into the plain JSON data model stored by the
// engine: map[string]any, []any, float64, string, bool and nil.
func NormalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not serializable: %w", err)
	}
	return DecodeValue(data)
}

// EncodeValue serializes a normalized value for storage.
func EncodeValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeValue parses a stored value.
func DecodeValue(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("corrupt value: %w", err)
	}
	return out, nil
}

// ExtractKey resolves a dotted key path against a normalized value. found is
// false when a path segment is missing; the result is then not a key.
func ExtractKey(value any, keyPath string) (key any, found bool) {
	cur := value
	for _, seg := range strings.Split(keyPath, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// InjectKey writes key into value at keyPath, creating intermediate objects.
func InjectKey(value any, keyPath string, key any) error {
	obj, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %q on %T", ErrKeyPath, keyPath, value)
	}
	segs := strings.Split(keyPath, ".")
	for _, seg := range segs[:len(segs)-1] {
		next, exists := obj[seg]
		if !exists {
			child := make(map[string]any)
			obj[seg] = child
			obj = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q crosses %T", ErrKeyPath, keyPath, next)
		}
		obj = child
	}
	obj[segs[len(segs)-1]] = key
	return nil
}
