// Package api defines the transactional key-value storage used by the pool
// ledger.
package api

import (
	"context"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
)

// ModuleName is the module name used for storage errors.
const ModuleName = "pool/db"

var (
	// ErrNotFound is the error returned when a key is missing.
	ErrNotFound = errors.New(ModuleName, 1, "db: key not found")

	// ErrReadOnly is the error returned on writes in a read-only
	// transaction.
	ErrReadOnly = errors.New(ModuleName, 2, "db: read-only transaction")

	// ErrClosed is the error returned when the database has been closed.
	ErrClosed = errors.New(ModuleName, 3, "db: closed")
)

// Tx is a storage transaction. Reads observe the transaction's own writes.
type Tx interface {
	// Get returns the value of key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Set stores value under key.
	Set(key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Iterate calls fn on every key with the given prefix in ascending
	// order until fn returns false or an error.
	Iterate(prefix []byte, fn func(key, value []byte) (bool, error)) error
}

// DB is a transactional key-value database.
//
// View transactions see a consistent snapshot of committed state. Update
// transactions are serialized and commit only when the callback returns nil.
type DB interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error

	// Update runs fn in a read-write transaction, committing iff fn
	// succeeds.
	Update(ctx context.Context, fn func(Tx) error) error

	// Close closes the database.
	Close()
}
