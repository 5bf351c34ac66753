package core

import (
	"bytes"
	"errors"
	"math"
	"sort"
	"testing"
	"time"
)

func TestNormalizeKey(t *testing.T) {
	date := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.FixedZone("x", 3600))

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int", 42, float64(42)},
		{"uint8", uint8(7), float64(7)},
		{"negative zero", math.Copysign(0, -1), float64(0)},
		{"string", "abc", "abc"},
		{"date truncated", date, date.UTC().Truncate(time.Millisecond)},
		{"typed slice", []int{1, 2}, []any{float64(1), float64(2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeKey(tt.in)
			if err != nil {
				t.Fatalf("NormalizeKey(%v) failed: %v", tt.in, err)
			}
			c, err := CompareKeys(got, tt.want)
			if err != nil || c != 0 {
				t.Errorf("NormalizeKey(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInvalidKeys(t *testing.T) {
	for _, v := range []any{nil, true, math.NaN(), map[string]any{}, []any{1, nil}} {
		if IsValidKey(v) {
			t.Errorf("expected %v (%T) to be an invalid key", v, v)
		}
		if _, err := EncodeKey(v); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("EncodeKey(%v): expected ErrInvalidKey, got %v", v, err)
		}
	}
}

func TestKeyOrder(t *testing.T) {
	// Listed in ascending key order.
	ordered := []any{
		math.Inf(-1),
		-100.5,
		-1,
		0,
		0.5,
		1,
		1e9,
		math.Inf(1),
		time.UnixMilli(-1000),
		time.UnixMilli(0),
		time.UnixMilli(1700000000000),
		"",
		"\x00",
		"\x00\x00",
		"\x01",
		"A",
		"a",
		"a\x00",
		"ab",
		"b",
		[]byte{},
		[]byte{0},
		[]byte{0, 0},
		[]byte{1},
		[]byte{0xFF},
		[]any{},
		[]any{1},
		[]any{1, "a"},
		[]any{2},
		[]any{"a"},
		[]any{[]any{}},
	}

	encoded := make([][]byte, len(ordered))
	for i, k := range ordered {
		enc, err := EncodeKey(k)
		if err != nil {
			t.Fatalf("EncodeKey(%v) failed: %v", k, err)
		}
		encoded[i] = enc
	}

	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Errorf("expected %v < %v", ordered[i-1], ordered[i])
		}
	}

	shuffled := append([][]byte(nil), encoded...)
	sort.Slice(shuffled, func(i, j int) bool { return bytes.Compare(shuffled[i], shuffled[j]) > 0 })
	sort.Slice(shuffled, func(i, j int) bool { return bytes.Compare(shuffled[i], shuffled[j]) < 0 })
	for i := range shuffled {
		if !bytes.Equal(shuffled[i], encoded[i]) {
			t.Fatalf("sorted encoding mismatch at %d", i)
		}
	}
}

func TestDecodeKeyRoundTrip(t *testing.T) {
	keys := []any{
		float64(-3.25),
		time.UnixMilli(1700000000123).UTC(),
		"hello\x00world",
		[]byte{0, 1, 0xFF, 0},
		[]any{float64(1), "x", []any{[]byte{0}}},
	}

	for _, k := range keys {
		enc, err := EncodeKey(k)
		if err != nil {
			t.Fatalf("EncodeKey(%v) failed: %v", k, err)
		}
		suffix := []byte("tail")
		got, rest, err := DecodeKey(append(enc, suffix...))
		if err != nil {
			t.Fatalf("DecodeKey(%v) failed: %v", k, err)
		}
		if !bytes.Equal(rest, suffix) {
			t.Errorf("DecodeKey(%v) left %q, want %q", k, rest, suffix)
		}
		if c, _ := CompareKeys(got, k); c != 0 {
			t.Errorf("DecodeKey round trip: got %v, want %v", got, k)
		}
	}
}

func TestDecodeKeyCorrupt(t *testing.T) {
	for _, b := range [][]byte{nil, {0x99}, {tagNumber, 1, 2}, {tagString, 'a'}, {tagString, 0, 7}, {tagArray}} {
		if _, _, err := DecodeKey(b); !errors.Is(err, ErrCorruptKey) {
			t.Errorf("DecodeKey(%v): expected ErrCorruptKey, got %v", b, err)
		}
	}
}

func TestPrefixEnd(t *testing.T) {
	if got := PrefixEnd([]byte{1, 2}); !bytes.Equal(got, []byte{1, 3}) {
		t.Errorf("PrefixEnd([1 2]) = %v", got)
	}
	if got := PrefixEnd([]byte{1, 0xFF}); !bytes.Equal(got, []byte{2}) {
		t.Errorf("PrefixEnd([1 255]) = %v", got)
	}
	if got := PrefixEnd([]byte{0xFF, 0xFF}); got != nil {
		t.Errorf("PrefixEnd([255 255]) = %v, want nil", got)
	}
}
