// Package tests is a collection of pool database implementation test cases.
package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
)

var errAbort = errors.New("test: abort")

// DBImplementationTests exercises the basic functionality of a pool
// database backend.
func DBImplementationTests(t *testing.T, db api.DB) {
	for _, tc := range []struct {
		n  string
		fn func(*testing.T, api.DB)
	}{
		{"GetSetDelete", testGetSetDelete},
		{"Rollback", testRollback},
		{"ReadOnly", testReadOnly},
		{"Iterate", testIterate},
		{"SnapshotIsolation", testSnapshotIsolation},
		{"ConcurrentUpdates", testConcurrentUpdates},
	} {
		t.Run(tc.n, func(t *testing.T) { tc.fn(t, db) })
	}
}

func testGetSetDelete(t *testing.T, db api.DB) {
	require := require.New(t)
	ctx := context.Background()

	key, value := []byte("a/key"), []byte("value")
	err := db.Update(ctx, func(tx api.Tx) error {
		if _, gerr := tx.Get(key); !errors.Is(gerr, api.ErrNotFound) {
			return fmt.Errorf("expected not found, got %v", gerr)
		}
		if serr := tx.Set(key, value); serr != nil {
			return serr
		}
		v, gerr := tx.Get(key)
		if gerr != nil {
			return gerr
		}
		require.Equal(value, v, "tx should read its own writes")
		return nil
	})
	require.NoError(err, "Update")

	err = db.View(ctx, func(tx api.Tx) error {
		v, gerr := tx.Get(key)
		require.Equal(value, v)
		return gerr
	})
	require.NoError(err, "View")

	err = db.Update(ctx, func(tx api.Tx) error {
		if derr := tx.Delete(key); derr != nil {
			return derr
		}
		return tx.Delete([]byte("a/missing"))
	})
	require.NoError(err, "Delete")

	err = db.View(ctx, func(tx api.Tx) error {
		_, gerr := tx.Get(key)
		return gerr
	})
	require.True(errors.Is(err, api.ErrNotFound), "deleted key should be gone")
}

func testRollback(t *testing.T, db api.DB) {
	require := require.New(t)
	ctx := context.Background()

	key := []byte("b/rollback")
	err := db.Update(ctx, func(tx api.Tx) error {
		if serr := tx.Set(key, []byte("uncommitted")); serr != nil {
			return serr
		}
		return errAbort
	})
	require.Equal(errAbort, err, "callback error is returned verbatim")

	err = db.View(ctx, func(tx api.Tx) error {
		_, gerr := tx.Get(key)
		return gerr
	})
	require.True(errors.Is(err, api.ErrNotFound), "aborted write must not be visible")
}

func testReadOnly(t *testing.T, db api.DB) {
	require := require.New(t)

	err := db.View(context.Background(), func(tx api.Tx) error {
		return tx.Set([]byte("c/ro"), []byte("x"))
	})
	require.True(errors.Is(err, api.ErrReadOnly), "Set in a View")
}

func testIterate(t *testing.T, db api.DB) {
	require := require.New(t)
	ctx := context.Background()

	err := db.Update(ctx, func(tx api.Tx) error {
		for _, k := range []string{"d/3", "d/1", "d/2", "e/1"} {
			if serr := tx.Set([]byte(k), []byte(k)); serr != nil {
				return serr
			}
		}
		return nil
	})
	require.NoError(err)

	var keys []string
	err = db.View(ctx, func(tx api.Tx) error {
		return tx.Iterate([]byte("d/"), func(k, v []byte) (bool, error) {
			require.Equal(k, v)
			keys = append(keys, string(k))
			return true, nil
		})
	})
	require.NoError(err)
	require.Equal([]string{"d/1", "d/2", "d/3"}, keys, "ascending prefix iteration")

	keys = nil
	err = db.View(ctx, func(tx api.Tx) error {
		return tx.Iterate([]byte("d/"), func(k, v []byte) (bool, error) {
			keys = append(keys, string(k))
			return false, nil
		})
	})
	require.NoError(err)
	require.Len(keys, 1, "returning false stops iteration")

	err = db.View(ctx, func(tx api.Tx) error {
		return tx.Iterate([]byte("d/"), func(k, v []byte) (bool, error) {
			return true, errAbort
		})
	})
	require.Equal(errAbort, err, "iteration error is propagated")
}

func testSnapshotIsolation(t *testing.T, db api.DB) {
	require := require.New(t)
	ctx := context.Background()

	key := []byte("f/isolated")
	require.NoError(db.Update(ctx, func(tx api.Tx) error {
		return tx.Set(key, []byte("old"))
	}))

	err := db.View(ctx, func(tx api.Tx) error {
		werr := db.Update(ctx, func(wtx api.Tx) error {
			return wtx.Set(key, []byte("new"))
		})
		if werr != nil {
			return werr
		}
		v, gerr := tx.Get(key)
		require.Equal([]byte("old"), v, "view must not observe later commits")
		return gerr
	})
	require.NoError(err)
}

func testConcurrentUpdates(t *testing.T, db api.DB) {
	require := require.New(t)
	ctx := context.Background()

	const n = 32
	key := []byte("g/counter")
	require.NoError(db.Update(ctx, func(tx api.Tx) error {
		return tx.Set(key, []byte{0})
	}))

	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- db.Update(ctx, func(tx api.Tx) error {
				v, err := tx.Get(key)
				if err != nil {
					return err
				}
				return tx.Set(key, []byte{v[0] + 1})
			})
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(err, "concurrent Update")
	}

	err := db.View(ctx, func(tx api.Tx) error {
		v, gerr := tx.Get(key)
		require.Equal([]byte{n}, v, "read-modify-write must be serialized")
		return gerr
	})
	require.NoError(err)
}
