package core

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"
)

// Type tags. Their byte order defines the order between key types.
const (
	tagArrayEnd byte = 0x00
	tagNumber   byte = 0x10
	tagDate     byte = 0x20
	tagString   byte = 0x30
	tagBinary   byte = 0x40
	tagArray    byte = 0x50
)

const (
	escByte  byte = 0x00
	escZero  byte = 0xFF
	escEnd   byte = 0x01
	maxDepth      = 32
)

var (
	ErrInvalidKey = errors.New("invalid key")
	ErrCorruptKey = errors.New("corrupt key encoding")
)

type KeyType int

const (
	InvalidKeyType KeyType = iota
	NumberKey
	DateKey
	StringKey
	BinaryKey
	ArrayKey
)

func (t KeyType) String() string {
	switch t {
	case NumberKey:
		return "number"
	case DateKey:
		return "date"
	case StringKey:
		return "string"
	case BinaryKey:
		return "binary"
	case ArrayKey:
		return "array"
	default:
		return "invalid"
	}
}

// NormalizeKey converts v into its canonical key form: float64, time.Time
// (UTC, millisecond precision), string, []byte or []any.
func NormalizeKey(v any) (any, error) {
	return normalizeKey(v, 0)
}

func normalizeKey(v any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: array nesting too deep", ErrInvalidKey)
	}

	switch k := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrInvalidKey)
	case float64:
		return normalizeNumber(k)
	case float32:
		return normalizeNumber(float64(k))
	case int:
		return float64(k), nil
	case int8:
		return float64(k), nil
	case int16:
		return float64(k), nil
	case int32:
		return float64(k), nil
	case int64:
		return float64(k), nil
	case uint:
		return float64(k), nil
	case uint8:
		return float64(k), nil
	case uint16:
		return float64(k), nil
	case uint32:
		return float64(k), nil
	case uint64:
		return float64(k), nil
	case json.Number:
		f, err := k.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return normalizeNumber(f)
	case string:
		return k, nil
	case time.Time:
		return k.UTC().Truncate(time.Millisecond), nil
	case []byte:
		out := make([]byte, len(k))
		copy(out, k)
		return out, nil
	case []any:
		out := make([]any, len(k))
		for i, elem := range k {
			n, err := normalizeKey(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			n, err := normalizeKey(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidKey, v)
}

func normalizeNumber(f float64) (any, error) {
	if math.IsNaN(f) {
		return nil, fmt.Errorf("%w: NaN", ErrInvalidKey)
	}
	if f == 0 {
		// -0 and +0 are the same key
		return float64(0), nil
	}
	return f, nil
}

// TypeOf reports the key type of a normalized key.
func TypeOf(key any) KeyType {
	switch key.(type) {
	case float64:
		return NumberKey
	case time.Time:
		return DateKey
	case string:
		return StringKey
	case []byte:
		return BinaryKey
	case []any:
		return ArrayKey
	default:
		return InvalidKeyType
	}
}

// IsValidKey reports whether v can be used as a key.
func IsValidKey(v any) bool {
	_, err := NormalizeKey(v)
	return err == nil
}

// EncodeKey normalizes v and returns its order-preserving encoding.
func EncodeKey(v any) ([]byte, error) {
	key, err := NormalizeKey(v)
	if err != nil {
		return nil, err
	}
	return AppendKey(nil, key), nil
}

// AppendKey appends the encoding of a normalized key to dst.
func AppendKey(dst []byte, key any) []byte {
	switch k := key.(type) {
	case float64:
		dst = append(dst, tagNumber)
		return appendFloat(dst, k)
	case time.Time:
		dst = append(dst, tagDate)
		return appendFloat(dst, float64(k.UnixMilli()))
	case string:
		dst = append(dst, tagString)
		return appendEscaped(dst, []byte(k))
	case []byte:
		dst = append(dst, tagBinary)
		return appendEscaped(dst, k)
	case []any:
		dst = append(dst, tagArray)
		for _, elem := range k {
			dst = AppendKey(dst, elem)
		}
		return append(dst, tagArrayEnd)
	default:
		panic(fmt.Sprintf("core: AppendKey called with non-normalized key %T", key))
	}
}

func appendFloat(dst []byte, f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return binary.BigEndian.AppendUint64(dst, bits)
}

func decodeFloat(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

func appendEscaped(dst []byte, b []byte) []byte {
	for _, c := range b {
		if c == escByte {
			dst = append(dst, escByte, escZero)
			continue
		}
		dst = append(dst, c)
	}
	return append(dst, escByte, escEnd)
}

func decodeEscaped(b []byte) ([]byte, []byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != escByte {
			out = append(out, b[i])
			continue
		}
		if i+1 >= len(b) {
			return nil, nil, ErrCorruptKey
		}
		switch b[i+1] {
		case escZero:
			out = append(out, escByte)
			i++
		case escEnd:
			return out, b[i+2:], nil
		default:
			return nil, nil, ErrCorruptKey
		}
	}
	return nil, nil, ErrCorruptKey
}

// DecodeKey decodes one key from the front of b and returns the remainder.
func DecodeKey(b []byte) (key any, rest []byte, err error) {
	return decodeKey(b, 0)
}

func decodeKey(b []byte, depth int) (any, []byte, error) {
	if len(b) == 0 || depth > maxDepth {
		return nil, nil, ErrCorruptKey
	}

	switch b[0] {
	case tagNumber:
		if len(b) < 9 {
			return nil, nil, ErrCorruptKey
		}
		return decodeFloat(b[1:9]), b[9:], nil
	case tagDate:
		if len(b) < 9 {
			return nil, nil, ErrCorruptKey
		}
		ms := decodeFloat(b[1:9])
		return time.UnixMilli(int64(ms)).UTC(), b[9:], nil
	case tagString:
		s, rest, err := decodeEscaped(b[1:])
		if err != nil {
			return nil, nil, err
		}
		return string(s), rest, nil
	case tagBinary:
		return decodeEscaped(b[1:])
	case tagArray:
		rest := b[1:]
		arr := []any{}
		for {
			if len(rest) == 0 {
				return nil, nil, ErrCorruptKey
			}
			if rest[0] == tagArrayEnd {
				return arr, rest[1:], nil
			}
			elem, r, err := decodeKey(rest, depth+1)
			if err != nil {
				return nil, nil, err
			}
			arr = append(arr, elem)
			rest = r
		}
	default:
		return nil, nil, ErrCorruptKey
	}
}

// CompareKeys compares two keys by the key order. Both are normalized first.
func CompareKeys(a, b any) (int, error) {
	ea, err := EncodeKey(a)
	if err != nil {
		return 0, err
	}
	eb, err := EncodeKey(b)
	if err != nil {
		return 0, err
	}
	return bytes.Compare(ea, eb), nil
}

// PrefixEnd returns the smallest byte string greater than every string that
// has prefix p. It returns nil when no such string exists.
func PrefixEnd(p []byte) []byte {
	end := make([]byte, len(p))
	copy(end, p)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
