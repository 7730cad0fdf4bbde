package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	db "github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
	badgerDB "github.com/MLY0813/NEST-Oracle-V3.5/pool/db/badger"
	memoryDB "github.com/MLY0813/NEST-Oracle-V3.5/pool/db/memory"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/ledger"
)

func TestMemoryBackend(t *testing.T) {
	PoolImplementationTests(t, func(t *testing.T) db.DB {
		return memoryDB.New()
	})
}

func TestBadgerBackend(t *testing.T) {
	PoolImplementationTests(t, func(t *testing.T) db.DB {
		store, err := badgerDB.New(&badgerDB.Config{InMemory: true})
		require.NoError(t, err, "badger.New")
		return store
	})
}

func TestBadgerReopen(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	store, err := badgerDB.New(&badgerDB.Config{Dir: dir, SyncWrites: true})
	require.NoError(err, "badger.New")

	env := NewEnv(t, store)
	env.DepositNative(t, AccountA, 40)
	require.NoError(env.Ledger.Freeze(ctx, TestRoles.Mining, AccountA, pool.NativeAsset, QtyFromInt(10)), "Freeze")
	require.NoError(env.Ledger.Add(ctx, TestRoles.Mining, AccountA, ProtocolToken, QtyFromInt(12)), "Add")
	require.NoError(env.Ledger.RegisterAsset(ctx, TestRoles.Governance, Token, NToken), "RegisterAsset")
	store.Close()

	store, err = badgerDB.New(&badgerDB.Config{Dir: dir})
	require.NoError(err, "badger.New - reopen")
	defer store.Close()

	// Existing state wins over genesis.
	l, err := ledger.New(ctx, store, nil)
	require.NoError(err, "ledger.New - reopen")

	bal, err := l.BalanceOf(ctx, &pool.BalanceQuery{Owner: AccountA, Asset: pool.NativeAsset})
	require.NoError(err, "BalanceOf")
	require.Equal("30", bal.String(), "available")
	frozen, err := l.FrozenBalanceOf(ctx, &pool.BalanceQuery{Owner: AccountA, Asset: pool.NativeAsset})
	require.NoError(err, "FrozenBalanceOf")
	require.Equal("10", frozen.String(), "frozen")

	mined, err := l.MinedProtocolTokens(ctx)
	require.NoError(err, "MinedProtocolTokens")
	require.Equal("12", mined.String(), "MinedProtocolTokens")

	derivative, err := l.ResolveDerivative(ctx, &pool.DerivativeQuery{Asset: Token})
	require.NoError(err, "ResolveDerivative")
	require.True(derivative.Equal(NToken), "ResolveDerivative - value")

	// The restored role policy is enforced.
	err = l.Freeze(ctx, Stranger, AccountA, pool.NativeAsset, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrUnauthorized, "Freeze - stranger")
	require.NoError(l.Freeze(ctx, TestRoles.Mining, AccountA, pool.NativeAsset, QtyFromInt(1)), "Freeze")
}
