package core

import (
	"bytes"
	"testing"
)

func mustRange(r *KeyRange, err error) *KeyRange {
	if err != nil {
		panic(err)
	}
	return r
}

func TestKeyRangeIncludes(t *testing.T) {
	tests := []struct {
		name string
		r    *KeyRange
		in   []any
		out  []any
	}{
		{"unbounded", nil, []any{1, "a", []any{}}, nil},
		{"only", mustRange(Only("b")), []any{"b"}, []any{"a", "ba", 1}},
		{"lower closed", mustRange(LowerBound(5, false)), []any{5, 6, "a"}, []any{4.99}},
		{"lower open", mustRange(LowerBound(5, true)), []any{5.01, "x"}, []any{5}},
		{"upper closed", mustRange(UpperBound("m", false)), []any{"m", "a", 100}, []any{"ma", []byte{}}},
		{"upper open", mustRange(UpperBound("m", true)), []any{"l"}, []any{"m"}},
		{"bound", mustRange(Bound(1, 3, true, false)), []any{2, 3}, []any{1, 4}},
		{"inverted", mustRange(Bound(3, 1, false, false)), nil, []any{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range tt.in {
				if !tt.r.Includes(k) {
					t.Errorf("%v should include %v", tt.r, k)
				}
			}
			for _, k := range tt.out {
				if tt.r.Includes(k) {
					t.Errorf("%v should not include %v", tt.r, k)
				}
			}
		})
	}
}

func TestKeyRangeBoundsAgreeWithIncludes(t *testing.T) {
	prefix := []byte("r\x01")
	keys := []any{0, 1, 2, 3, "a", "a\x00", "ab", "b", []any{1}}
	ranges := []*KeyRange{
		nil,
		mustRange(Only("a")),
		mustRange(LowerBound("a", true)),
		mustRange(UpperBound(2, true)),
		mustRange(Bound(1, "ab", false, true)),
		mustRange(Bound(2, 1, false, false)),
	}

	for _, r := range ranges {
		start, end, ok := r.Bounds(prefix)
		for _, k := range keys {
			full := AppendKey(append([]byte(nil), prefix...), mustNormalize(t, k))
			// A trailing primary key must not move an entry across a bound.
			full = append(full, AppendKey(nil, "pk")...)
			inBytes := ok && bytes.Compare(full, start) >= 0 && (end == nil || bytes.Compare(full, end) < 0)
			if inBytes != r.Includes(k) {
				t.Errorf("range %v key %v: bounds say %v, Includes says %v", r, k, inBytes, r.Includes(k))
			}
		}
	}
}

func TestKeyRangeIsOnly(t *testing.T) {
	if !mustRange(Only(1)).IsOnly() {
		t.Error("Only(1) should be a single-key range")
	}
	if mustRange(Bound(1, 1, false, true)).IsOnly() {
		t.Error("half-open range should not be a single-key range")
	}
	var r *KeyRange
	if r.IsOnly() {
		t.Error("nil range should not be a single-key range")
	}
}

func mustNormalize(t *testing.T, v any) any {
	t.Helper()
	k, err := NormalizeKey(v)
	if err != nil {
		t.Fatalf("NormalizeKey(%v) failed: %v", v, err)
	}
	return k
}
