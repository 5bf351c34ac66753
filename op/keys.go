package op

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/valleykid/growup/core"
)

// Every persisted key starts with a one-byte tag.
const (
	tagMeta   byte = 'm'
	tagRecord byte = 'r'
	tagIndex  byte = 'i'
)

func appendName(dst []byte, name string) []byte {
	return core.AppendKey(dst, name)
}

// MetaKey is the key of a database's schema metadata.
func MetaKey(database string) []byte {
	return appendName([]byte{tagMeta}, database)
}

func metaPrefix() []byte {
	return []byte{tagMeta}
}

func databaseRecordsPrefix(database string) []byte {
	return appendName([]byte{tagRecord}, database)
}

func databaseIndexesPrefix(database string) []byte {
	return appendName([]byte{tagIndex}, database)
}

func recordPrefix(database string, storeID uint64) []byte {
	return binary.BigEndian.AppendUint64(databaseRecordsPrefix(database), storeID)
}

// RecordKey is the key of one record.
func RecordKey(database string, storeID uint64, pk any) []byte {
	return core.AppendKey(recordPrefix(database, storeID), pk)
}

func storeIndexesPrefix(database string, storeID uint64) []byte {
	return binary.BigEndian.AppendUint64(databaseIndexesPrefix(database), storeID)
}

func indexPrefix(database string, storeID, indexID uint64) []byte {
	return binary.BigEndian.AppendUint64(storeIndexesPrefix(database, storeID), indexID)
}

// IndexEntryKey is the key of one index entry. Entries sort by index key,
// then by primary key.
func IndexEntryKey(database string, storeID, indexID uint64, indexKey, pk any) []byte {
	return core.AppendKey(core.AppendKey(indexPrefix(database, storeID, indexID), indexKey), pk)
}

// decodeRecordKey returns the primary key of a record key under prefix.
func decodeRecordKey(key, prefix []byte) (any, error) {
	if !bytes.HasPrefix(key, prefix) {
		return nil, fmt.Errorf("%w: record key outside store", core.ErrCorruptKey)
	}
	pk, rest, err := core.DecodeKey(key[len(prefix):])
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes in record key", core.ErrCorruptKey)
	}
	return pk, nil
}

// indexEntry is a decoded index entry key.
type indexEntry struct {
	indexEnc []byte
	indexKey any
	pk       any
}

func decodeIndexEntry(key, prefix []byte) (indexEntry, error) {
	if !bytes.HasPrefix(key, prefix) {
		return indexEntry{}, fmt.Errorf("%w: index entry outside index", core.ErrCorruptKey)
	}
	body := key[len(prefix):]
	indexKey, rest, err := core.DecodeKey(body)
	if err != nil {
		return indexEntry{}, err
	}
	pk, tail, err := core.DecodeKey(rest)
	if err != nil {
		return indexEntry{}, err
	}
	if len(tail) != 0 {
		return indexEntry{}, fmt.Errorf("%w: trailing bytes in index entry", core.ErrCorruptKey)
	}
	return indexEntry{
		indexEnc: body[:len(body)-len(rest)],
		indexKey: indexKey,
		pk:       pk,
	}, nil
}
