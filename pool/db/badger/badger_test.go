package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/tests"
)

func TestBadgerDB(t *testing.T) {
	require := require.New(t)

	db, err := New(&Config{InMemory: true})
	require.NoError(err, "New")
	defer db.Close()

	tests.DBImplementationTests(t, db)
}

func TestPersistence(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	dir := t.TempDir()
	db, err := New(&Config{Dir: dir, SyncWrites: true})
	require.NoError(err, "New")

	err = db.Update(ctx, func(tx api.Tx) error {
		return tx.Set([]byte("persisted"), []byte("yes"))
	})
	require.NoError(err)
	db.Close()
	require.NotPanics(db.Close, "double Close")

	db, err = New(&Config{Dir: dir})
	require.NoError(err, "reopen")
	defer db.Close()

	err = db.View(ctx, func(tx api.Tx) error {
		v, gerr := tx.Get([]byte("persisted"))
		require.Equal([]byte("yes"), v)
		return gerr
	})
	require.NoError(err)
}
