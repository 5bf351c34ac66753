package core

import (
	"errors"
	"math"
	"sort"
)

// MaxGeneratedKey is the largest key a key generator hands out.
const MaxGeneratedKey = 1 << 53

var ErrGeneratorExhausted = errors.New("key generator exhausted")

// DatabaseMeta is the persisted description of a versioned database.
type DatabaseMeta struct {
	Name        string                `json:"name"`
	Version     uint64                `json:"version"`
	Stores      map[string]*StoreMeta `json:"stores"`
	NextStoreID uint64                `json:"nextStoreId"`
}

// StoreMeta describes an object store. KeyPath and AutoIncrement are fixed at
// creation.
type StoreMeta struct {
	ID            uint64                `json:"id"`
	Name          string                `json:"name"`
	KeyPath       string                `json:"keyPath,omitempty"`
	AutoIncrement bool                  `json:"autoIncrement"`
	KeyGenerator  int64                 `json:"keyGenerator,omitempty"`
	Indexes       map[string]*IndexMeta `json:"indexes"`
	NextIndexID   uint64                `json:"nextIndexId"`
}

// IndexMeta describes a secondary index over a store.
type IndexMeta struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	KeyPath string `json:"keyPath"`
	Unique  bool   `json:"unique"`
}

func NewDatabaseMeta(name string) *DatabaseMeta {
	return &DatabaseMeta{
		Name:        name,
		Stores:      make(map[string]*StoreMeta),
		NextStoreID: 1,
	}
}

// StoreNames returns the store names in sorted order.
func (m *DatabaseMeta) StoreNames() []string {
	names := make([]string, 0, len(m.Stores))
	for name := range m.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *DatabaseMeta) HasStore(name string) bool {
	_, ok := m.Stores[name]
	return ok
}

// AddStore registers a new store with a fresh id. Store ids are never reused.
func (m *DatabaseMeta) AddStore(name, keyPath string, autoIncrement bool) *StoreMeta {
	if m.Stores == nil {
		m.Stores = make(map[string]*StoreMeta)
	}
	if m.NextStoreID == 0 {
		m.NextStoreID = 1
	}
	s := &StoreMeta{
		ID:            m.NextStoreID,
		Name:          name,
		KeyPath:       keyPath,
		AutoIncrement: autoIncrement,
		Indexes:       make(map[string]*IndexMeta),
		NextIndexID:   1,
	}
	if autoIncrement {
		s.KeyGenerator = 1
	}
	m.NextStoreID++
	m.Stores[name] = s
	return s
}

// Clone returns a deep copy.
func (m *DatabaseMeta) Clone() *DatabaseMeta {
	c := &DatabaseMeta{
		Name:        m.Name,
		Version:     m.Version,
		Stores:      make(map[string]*StoreMeta, len(m.Stores)),
		NextStoreID: m.NextStoreID,
	}
	for name, s := range m.Stores {
		c.Stores[name] = s.Clone()
	}
	return c
}

func (s *StoreMeta) Clone() *StoreMeta {
	c := *s
	c.Indexes = make(map[string]*IndexMeta, len(s.Indexes))
	for name, idx := range s.Indexes {
		i := *idx
		c.Indexes[name] = &i
	}
	return &c
}

// IndexNames returns the index names in sorted order.
func (s *StoreMeta) IndexNames() []string {
	names := make([]string, 0, len(s.Indexes))
	for name := range s.Indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *StoreMeta) AddIndex(name, keyPath string, unique bool) *IndexMeta {
	if s.Indexes == nil {
		s.Indexes = make(map[string]*IndexMeta)
	}
	if s.NextIndexID == 0 {
		s.NextIndexID = 1
	}
	idx := &IndexMeta{ID: s.NextIndexID, Name: name, KeyPath: keyPath, Unique: unique}
	s.NextIndexID++
	s.Indexes[name] = idx
	return idx
}

// NextKey hands out the current generator value and advances it.
func (s *StoreMeta) NextKey() (float64, error) {
	if s.KeyGenerator < 1 {
		s.KeyGenerator = 1
	}
	if s.KeyGenerator > MaxGeneratedKey {
		return 0, ErrGeneratorExhausted
	}
	k := s.KeyGenerator
	s.KeyGenerator++
	return float64(k), nil
}

// ObserveKey moves the generator past an explicitly supplied numeric key,
// dropping its fractional part. It reports whether the generator changed.
func (s *StoreMeta) ObserveKey(key any) bool {
	f, ok := key.(float64)
	if !ok || !s.AutoIncrement {
		return false
	}
	if f < float64(s.KeyGenerator) {
		return false
	}
	next := math.Floor(f) + 1
	if next > MaxGeneratedKey {
		next = MaxGeneratedKey + 1
	}
	s.KeyGenerator = int64(next)
	return true
}
