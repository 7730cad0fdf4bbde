// Package memory implements an ordered in-memory pool database.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
)

// BackendName is the name of this implementation.
const BackendName = "memory"

const btreeDegree = 16

var _ api.DB = (*memoryDB)(nil)

type item struct {
	key   []byte
	value []byte
}

func (i *item) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(*item).key) < 0
}

type memoryDB struct {
	logger *logging.Logger

	// mu guards tree and closed, writeLock serializes update transactions.
	mu        sync.Mutex
	writeLock sync.Mutex
	tree      *btree.BTree
	closed    bool
}

func (db *memoryDB) snapshot() (*btree.BTree, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, api.ErrClosed
	}
	return db.tree.Clone(), nil
}

func (db *memoryDB) View(ctx context.Context, fn func(api.Tx) error) error {
	tree, err := db.snapshot()
	if err != nil {
		return err
	}
	return fn(&memoryTx{tree: tree})
}

func (db *memoryDB) Update(ctx context.Context, fn func(api.Tx) error) error {
	db.writeLock.Lock()
	defer db.writeLock.Unlock()

	tree, err := db.snapshot()
	if err != nil {
		return err
	}
	if err = fn(&memoryTx{tree: tree, writable: true}); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return api.ErrClosed
	}
	db.tree = tree
	return nil
}

func (db *memoryDB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.closed = true
	db.tree = nil
}

type memoryTx struct {
	tree     *btree.BTree
	writable bool
}

func (tx *memoryTx) Get(key []byte) ([]byte, error) {
	it := tx.tree.Get(&item{key: key})
	if it == nil {
		return nil, api.ErrNotFound
	}
	return append([]byte{}, it.(*item).value...), nil
}

func (tx *memoryTx) Set(key, value []byte) error {
	if !tx.writable {
		return api.ErrReadOnly
	}
	tx.tree.ReplaceOrInsert(&item{
		key:   append([]byte{}, key...),
		value: append([]byte{}, value...),
	})
	return nil
}

func (tx *memoryTx) Delete(key []byte) error {
	if !tx.writable {
		return api.ErrReadOnly
	}
	tx.tree.Delete(&item{key: key})
	return nil
}

func (tx *memoryTx) Iterate(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	var err error
	tx.tree.AscendGreaterOrEqual(&item{key: prefix}, func(i btree.Item) bool {
		it := i.(*item)
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		var cont bool
		cont, err = fn(append([]byte{}, it.key...), append([]byte{}, it.value...))
		return err == nil && cont
	})
	return err
}

// New creates a new in-memory database.
func New() api.DB {
	return &memoryDB{
		logger: logging.GetLogger("pool/db/memory"),
		tree:   btree.New(btreeDegree),
	}
}
