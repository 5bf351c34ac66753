package ps

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/valleykid/growup/log"
)

// pendingWrite is one buffered change of a git transaction. A nil value is
// a deletion.
type pendingWrite struct {
	value []byte
}

// gitTx reads from the tree HEAD pointed at when it began and buffers writes
// in an ordered overlay until Commit turns them into a single commit.
type gitTx struct {
	p        *Persistence
	base     plumbing.Hash
	entries  []object.TreeEntry
	overlay  *redblacktree.Tree
	writable bool

	mu   sync.Mutex
	done bool
}

func newGitTx(p *Persistence, base plumbing.Hash, writable bool) (*gitTx, error) {
	entries, err := p.treeEntries(base)
	if err != nil {
		return nil, err
	}
	return &gitTx{
		p:        p,
		base:     base,
		entries:  entries,
		overlay:  redblacktree.NewWithStringComparator(),
		writable: writable,
	}, nil
}

func (tx *gitTx) Writable() bool {
	return tx.writable
}

func (tx *gitTx) check(write bool) error {
	if tx.done {
		return ErrTxDone
	}
	if write && !tx.writable {
		return ErrReadOnlyTx
	}
	return nil
}

// baseEntry finds name in the snapshot tree.
func (tx *gitTx) baseEntry(name string) (object.TreeEntry, bool) {
	i := sort.Search(len(tx.entries), func(i int) bool { return tx.entries[i].Name >= name })
	if i < len(tx.entries) && tx.entries[i].Name == name {
		return tx.entries[i], true
	}
	return object.TreeEntry{}, false
}

func (tx *gitTx) Get(key []byte) ([]byte, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(false); err != nil {
		return nil, err
	}

	name := entryName(key)
	if v, ok := tx.overlay.Get(name); ok {
		w := v.(pendingWrite)
		if w.value == nil {
			return nil, ErrNotFound
		}
		return bytes.Clone(w.value), nil
	}

	entry, ok := tx.baseEntry(name)
	if !ok {
		return nil, ErrNotFound
	}
	return tx.p.readBlob(entry.Hash)
}

func (tx *gitTx) Set(key, value []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(true); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	tx.overlay.Put(entryName(key), pendingWrite{value: bytes.Clone(value)})
	return nil
}

func (tx *gitTx) Delete(key []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(true); err != nil {
		return err
	}
	tx.overlay.Put(entryName(key), pendingWrite{})
	return nil
}

func (tx *gitTx) DeleteRange(start, end []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(true); err != nil {
		return err
	}

	lo, hi := entryName(start), ""
	if end != nil {
		hi = entryName(end)
	}
	inRange := func(name string) bool {
		return name >= lo && (end == nil || name < hi)
	}

	for _, entry := range tx.entries {
		if inRange(entry.Name) {
			tx.overlay.Put(entry.Name, pendingWrite{})
		}
	}
	for _, name := range tx.overlay.Keys() {
		if inRange(name.(string)) {
			tx.overlay.Put(name, pendingWrite{})
		}
	}
	return nil
}

// NewIterator merges the snapshot tree with the overlay as of now. Writes
// made after the iterator is created are not visible to it.
func (tx *gitTx) NewIterator(start, end []byte, reverse bool) (Iterator, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(false); err != nil {
		return nil, err
	}

	lo, hi := entryName(start), ""
	if end != nil {
		hi = entryName(end)
	}
	inRange := func(name string) bool {
		return name >= lo && (end == nil || name < hi)
	}

	merged := redblacktree.NewWithStringComparator()
	first := sort.Search(len(tx.entries), func(i int) bool { return tx.entries[i].Name >= lo })
	for _, entry := range tx.entries[first:] {
		if !inRange(entry.Name) {
			break
		}
		merged.Put(entry.Name, entry.Hash)
	}
	it := tx.overlay.Iterator()
	for it.Next() {
		name := it.Key().(string)
		if !inRange(name) {
			continue
		}
		if w := it.Value().(pendingWrite); w.value == nil {
			merged.Remove(name)
		} else {
			merged.Put(name, w.value)
		}
	}

	items := make([]kvItem, 0, merged.Size())
	mit := merged.Iterator()
	for mit.Next() {
		key, err := entryKey(mit.Key().(string))
		if err != nil {
			return nil, fmt.Errorf("corrupt entry name %q: %w", mit.Key(), err)
		}
		item := kvItem{key: key}
		switch v := mit.Value().(type) {
		case plumbing.Hash:
			hash := v
			item.load = func() ([]byte, error) { return tx.p.readBlob(hash) }
		case []byte:
			item.value = bytes.Clone(v)
		}
		items = append(items, item)
	}
	return newSliceIterator(items, reverse), nil
}

func (tx *gitTx) Commit() (Transaction, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return Transaction{}, ErrTxDone
	}
	tx.done = true
	if !tx.writable {
		return Transaction{}, nil
	}
	defer tx.p.releaseWriter()

	if tx.overlay.Empty() {
		return Transaction{}, nil
	}

	changes := make([]TreeChange, 0, tx.overlay.Size())
	it := tx.overlay.Iterator()
	for it.Next() {
		name := it.Key().(string)
		w := it.Value().(pendingWrite)
		if w.value == nil {
			changes = append(changes, TreeChange{Name: name, IsDelete: true})
			continue
		}
		blobHash, err := tx.p.createBlob(w.value)
		if err != nil {
			return Transaction{}, fmt.Errorf("failed to create blob for %s: %w", name, err)
		}
		changes = append(changes, TreeChange{Name: name, BlobHash: blobHash})
	}

	newTree, err := tx.p.batchUpdateTree(tx.base, changes)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to update tree: %w", err)
	}

	tx.p.mu.Lock()
	defer tx.p.mu.Unlock()
	if tx.p.closed {
		return Transaction{}, ErrClosed
	}

	message := fmt.Sprintf("Transaction: %d change(s)", len(changes))
	txn, err := tx.p.createCommitDirect(newTree, tx.p.identity, message)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to commit: %w", err)
	}

	log.Storage.Debug().Str("id", txn.Id).Int("changes", len(changes)).Msg("git commit")
	return txn, nil
}

func (tx *gitTx) Rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return
	}
	tx.done = true
	tx.overlay.Clear()
	if tx.writable {
		tx.p.releaseWriter()
	}
}
