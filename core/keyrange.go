package core

import (
	"bytes"
	"fmt"
)

// KeyRange is an interval over the key space. A nil Lower or Upper leaves that
// side unbounded; a nil *KeyRange is unbounded on both sides.
type KeyRange struct {
	Lower     any  `json:"lower,omitempty"`
	Upper     any  `json:"upper,omitempty"`
	LowerOpen bool `json:"lowerOpen,omitempty"`
	UpperOpen bool `json:"upperOpen,omitempty"`
}

// Only returns a range matching exactly one key.
func Only(key any) (*KeyRange, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	return &KeyRange{Lower: k, Upper: k}, nil
}

// LowerBound returns a range of keys >= key (> key when open).
func LowerBound(key any, open bool) (*KeyRange, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	return &KeyRange{Lower: k, LowerOpen: open}, nil
}

// UpperBound returns a range of keys <= key (< key when open).
func UpperBound(key any, open bool) (*KeyRange, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	return &KeyRange{Upper: k, UpperOpen: open}, nil
}

// Bound returns a range between lower and upper. An inverted range is not an
// error; it matches nothing.
func Bound(lower, upper any, lowerOpen, upperOpen bool) (*KeyRange, error) {
	lo, err := NormalizeKey(lower)
	if err != nil {
		return nil, fmt.Errorf("lower bound: %w", err)
	}
	hi, err := NormalizeKey(upper)
	if err != nil {
		return nil, fmt.Errorf("upper bound: %w", err)
	}
	return &KeyRange{Lower: lo, Upper: hi, LowerOpen: lowerOpen, UpperOpen: upperOpen}, nil
}

// Normalize returns a copy of r with both bounds in canonical key form. A
// range built by hand may hold any valid key type.
func (r *KeyRange) Normalize() (*KeyRange, error) {
	if r == nil {
		return nil, nil
	}
	out := *r
	var err error
	if r.Lower != nil {
		if out.Lower, err = NormalizeKey(r.Lower); err != nil {
			return nil, fmt.Errorf("lower bound: %w", err)
		}
	}
	if r.Upper != nil {
		if out.Upper, err = NormalizeKey(r.Upper); err != nil {
			return nil, fmt.Errorf("upper bound: %w", err)
		}
	}
	return &out, nil
}

// IsOnly reports whether the range matches a single key.
func (r *KeyRange) IsOnly() bool {
	if r == nil || r.Lower == nil || r.Upper == nil || r.LowerOpen || r.UpperOpen {
		return false
	}
	c, err := CompareKeys(r.Lower, r.Upper)
	return err == nil && c == 0
}

// Includes reports whether key lies inside the range.
func (r *KeyRange) Includes(key any) bool {
	enc, err := EncodeKey(key)
	if err != nil {
		return false
	}
	if r == nil {
		return true
	}
	r, err = r.Normalize()
	if err != nil {
		return false
	}
	if r.Lower != nil {
		lo := AppendKey(nil, r.Lower)
		c := bytes.Compare(enc, lo)
		if c < 0 || (c == 0 && r.LowerOpen) {
			return false
		}
	}
	if r.Upper != nil {
		hi := AppendKey(nil, r.Upper)
		c := bytes.Compare(enc, hi)
		if c > 0 || (c == 0 && r.UpperOpen) {
			return false
		}
	}
	return true
}

// Bounds converts a normalized range into a half-open byte interval
// [start, end) over keys of the form prefix + EncodeKey(k) + suffix. ok is
// false when the interval is empty.
func (r *KeyRange) Bounds(prefix []byte) (start, end []byte, ok bool) {
	start = append([]byte(nil), prefix...)
	end = PrefixEnd(prefix)

	if r != nil && r.Lower != nil {
		lo := AppendKey(append([]byte(nil), prefix...), r.Lower)
		if r.LowerOpen {
			lo = PrefixEnd(lo)
		}
		start = lo
	}
	if r != nil && r.Upper != nil {
		hi := AppendKey(append([]byte(nil), prefix...), r.Upper)
		if !r.UpperOpen {
			hi = PrefixEnd(hi)
		}
		end = hi
	}

	if start == nil || (end != nil && bytes.Compare(start, end) >= 0) {
		return nil, nil, false
	}
	return start, end, true
}

func (r *KeyRange) String() string {
	if r == nil {
		return "(-inf, +inf)"
	}
	left, right := "[", "]"
	if r.LowerOpen {
		left = "("
	}
	if r.UpperOpen {
		right = ")"
	}
	lo, hi := any("-inf"), any("+inf")
	if r.Lower != nil {
		lo = r.Lower
	}
	if r.Upper != nil {
		hi = r.Upper
	}
	return fmt.Sprintf("%s%v, %v%s", left, lo, hi, right)
}
