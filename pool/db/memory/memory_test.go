package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/tests"
)

func TestMemoryDB(t *testing.T) {
	db := New()
	defer db.Close()

	tests.DBImplementationTests(t, db)
}

func TestClosed(t *testing.T) {
	require := require.New(t)

	db := New()
	db.Close()

	err := db.View(context.Background(), func(api.Tx) error { return nil })
	require.True(errors.Is(err, api.ErrClosed))
	err = db.Update(context.Background(), func(api.Tx) error { return nil })
	require.True(errors.Is(err, api.ErrClosed))
}
