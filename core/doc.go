// Package core provides core types used throughout growup.
//
// The package defines the key model (valid key types, their total order and
// an order-preserving byte encoding), key ranges, cursor directions,
// transaction modes and the schema metadata persisted for every database.
//
// # Keys
//
// A key is one of: a number (any Go integer or float kind, normalized to
// float64), a time.Time, a string, a []byte, or an array ([]any) of keys.
// Keys of different types order as
//
//	number < date < string < binary < array
//
// EncodeKey produces a byte string whose lexicographic order matches that
// order, so persistence backends can range-scan records by key:
//
//	enc, _ := core.EncodeKey("alice")
//	key, rest, _ := core.DecodeKey(enc)
//
// # Key Ranges
//
// Ranges are built with the four primitives:
//
//	core.Only("alice")                 // == "alice"
//	core.LowerBound(10, false)         // >= 10
//	core.UpperBound(10, true)          // < 10
//	core.Bound("a", "m", false, false) // "a" <= k <= "m"
//
// A nil *KeyRange means unbounded.
//
// # Schema
//
// DatabaseMeta, StoreMeta and IndexMeta describe a versioned database:
//
//	meta := core.DatabaseMeta{Name: "app", Version: 3}
//	users := meta.AddStore("users", "", true)
//	users.AddIndex("name", "name", false)
package core
