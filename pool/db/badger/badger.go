// Package badger implements a persistent pool database backed by BadgerDB.
package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	cmnBadger "github.com/MLY0813/NEST-Oracle-V3.5/common/badger"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
)

// BackendName is the name of this implementation.
const BackendName = "badger"

var _ api.DB = (*badgerDB)(nil)

// Config is the badger backend configuration.
type Config struct {
	// Dir is the database directory.
	Dir string
	// InMemory disables persistence, for tests.
	InMemory bool
	// SyncWrites fsyncs every committed transaction.
	SyncWrites bool
	// Compression enables block compression.
	Compression bool
	// GCInterval is the value log GC interval, zero for the default.
	GCInterval time.Duration
}

type badgerDB struct {
	logger *logging.Logger

	db *badger.DB
	gc *cmnBadger.GCWorker

	// writeLock serializes update transactions so that they never conflict.
	writeLock sync.Mutex
	closeOnce sync.Once
}

func (d *badgerDB) View(ctx context.Context, fn func(api.Tx) error) error {
	return d.db.View(func(tx *badger.Txn) error {
		return fn(&badgerTx{tx: tx})
	})
}

func (d *badgerDB) Update(ctx context.Context, fn func(api.Tx) error) error {
	d.writeLock.Lock()
	defer d.writeLock.Unlock()

	err := d.db.Update(func(tx *badger.Txn) error {
		return fn(&badgerTx{tx: tx, writable: true})
	})
	if err != nil {
		d.logger.Debug("update transaction aborted",
			"err", err,
		)
	}
	return err
}

func (d *badgerDB) Close() {
	d.closeOnce.Do(func() {
		d.gc.Close()
		if err := d.db.Close(); err != nil {
			d.logger.Error("failed to close database",
				"err", err,
			)
		}
	})
}

type badgerTx struct {
	tx       *badger.Txn
	writable bool
}

func (t *badgerTx) Get(key []byte) ([]byte, error) {
	item, err := t.tx.Get(key)
	switch err {
	case nil:
	case badger.ErrKeyNotFound:
		return nil, api.ErrNotFound
	default:
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTx) Set(key, value []byte) error {
	if !t.writable {
		return api.ErrReadOnly
	}
	return t.tx.Set(append([]byte{}, key...), append([]byte{}, value...))
}

func (t *badgerTx) Delete(key []byte) error {
	if !t.writable {
		return api.ErrReadOnly
	}
	return t.tx.Delete(append([]byte{}, key...))
}

func (t *badgerTx) Iterate(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.tx.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		cont, err := fn(item.KeyCopy(nil), value)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

// New opens a new badger backed database.
func New(cfg *Config) (api.DB, error) {
	logger := logging.GetLogger("pool/db/badger")

	db, err := cmnBadger.Open(&cmnBadger.Config{
		Dir:         cfg.Dir,
		InMemory:    cfg.InMemory,
		SyncWrites:  cfg.SyncWrites,
		Compression: cfg.Compression,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("pool/db/badger: %w", err)
	}

	return &badgerDB{
		logger: logger,
		db:     db,
		gc:     cmnBadger.NewGCWorker(logger, db, cfg.GCInterval),
	}, nil
}
