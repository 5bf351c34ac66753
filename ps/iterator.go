package ps

// kvItem is one materialized pair. Values may be loaded lazily.
type kvItem struct {
	key   []byte
	value []byte
	load  func() ([]byte, error)
}

// sliceIterator walks materialized pairs. The git and sqlite backends use it
// since neither can hold a live cursor across calls.
type sliceIterator struct {
	items   []kvItem
	pos     int
	reverse bool
	started bool
	closed  bool
}

func newSliceIterator(items []kvItem, reverse bool) *sliceIterator {
	return &sliceIterator{items: items, reverse: reverse, pos: -1}
}

func (it *sliceIterator) Next() bool {
	if it.closed {
		return false
	}
	if !it.started {
		it.started = true
		if it.reverse {
			it.pos = len(it.items) - 1
		} else {
			it.pos = 0
		}
	} else if it.reverse {
		it.pos--
	} else {
		it.pos++
	}
	return it.Valid()
}

func (it *sliceIterator) Valid() bool {
	return !it.closed && it.pos >= 0 && it.pos < len(it.items)
}

func (it *sliceIterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	key := it.items[it.pos].key
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *sliceIterator) Value() ([]byte, error) {
	if !it.Valid() {
		return nil, ErrIteratorInvalid
	}
	item := &it.items[it.pos]
	if item.value == nil && item.load != nil {
		v, err := item.load()
		if err != nil {
			return nil, err
		}
		item.value = v
		item.load = nil
	}
	result := make([]byte, len(item.value))
	copy(result, item.value)
	return result, nil
}

func (it *sliceIterator) Close() error {
	it.closed = true
	it.items = nil
	return nil
}
