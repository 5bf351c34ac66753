package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEntry(t *testing.T) {
	record := map[string]any{"id": "u1", "name": "a"}

	tests := []struct {
		name    string
		keyPath string
		value   any
		key     any
		want    entry
	}{
		{
			name:  "property named by key",
			value: record,
			key:   "id",
			want:  keyedEntry{value: record, key: "u1"},
		},
		{
			name:  "literal string key",
			value: record,
			key:   "other",
			want:  keyedEntry{value: record, key: "other"},
		},
		{
			name:  "literal numeric key",
			value: "plain",
			key:   7,
			want:  keyedEntry{value: "plain", key: 7},
		},
		{
			name:  "generated key",
			value: record,
			want:  keyedEntry{value: record},
		},
		{
			name:    "key path",
			keyPath: "id",
			value:   record,
			want:    selfDescribingEntry{value: record},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := resolveEntry(tt.keyPath, tt.value, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e)
		})
	}
}

func TestResolveEntryRejects(t *testing.T) {
	_, err := resolveEntry("id", map[string]any{"id": 1}, "id")
	assert.Error(t, err, "explicit key on an in-line store")

	_, err = resolveEntry("", "v", true)
	assert.Error(t, err, "bool is not a key")
}
