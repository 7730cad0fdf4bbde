package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	db "github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/memory"
)

func mustBalance(available, frozen uint64) *pool.Balance {
	return &pool.Balance{
		Available: *quantity.NewFromUint64(available),
		Frozen:    *quantity.NewFromUint64(frozen),
	}
}

func TestBalances(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := memory.New()
	defer store.Close()

	alice := pool.NewAddress([]byte("alice"))
	bob := pool.NewAddress([]byte("bob"))
	token := pool.AssetID(pool.NewAddress([]byte("token")))

	err := store.Update(ctx, func(tx db.Tx) error {
		st := NewMutableState(tx)

		bal, err := st.Balance(alice, pool.NativeAsset)
		require.NoError(err, "Balance")
		require.True(bal.IsZero(), "missing balance reads as zero")

		require.NoError(st.SetBalance(alice, pool.NativeAsset, mustBalance(30, 10)))
		require.NoError(st.SetBalance(alice, token, mustBalance(5, 0)))
		require.NoError(st.SetBalance(bob, token, mustBalance(0, 7)))
		return nil
	})
	require.NoError(err, "Update")

	err = store.View(ctx, func(tx db.Tx) error {
		st := NewImmutableState(tx)

		bal, err := st.Balance(alice, pool.NativeAsset)
		require.NoError(err, "Balance")
		require.EqualValues(30, bal.Available.ToBigInt().Uint64())
		require.EqualValues(10, bal.Frozen.ToBigInt().Uint64())

		acct, err := st.Account(alice)
		require.NoError(err, "Account")
		require.Len(acct.Balances, 2)

		addrs, err := st.Accounts()
		require.NoError(err, "Accounts")
		require.Len(addrs, 2)

		ledger, err := st.Ledger()
		require.NoError(err, "Ledger")
		require.Len(ledger, 2)
		require.Len(ledger[bob].Balances, 1)

		claims, err := st.Claims()
		require.NoError(err, "Claims")
		require.EqualValues(40, claims[pool.NativeAsset].ToBigInt().Uint64())
		require.EqualValues(12, claims[token].ToBigInt().Uint64())
		return nil
	})
	require.NoError(err, "View")

	// Zero balances are removed.
	err = store.Update(ctx, func(tx db.Tx) error {
		return NewMutableState(tx).SetBalance(bob, token, &pool.Balance{})
	})
	require.NoError(err, "Update")
	err = store.View(ctx, func(tx db.Tx) error {
		addrs, err := NewImmutableState(tx).Accounts()
		require.NoError(err, "Accounts")
		require.Equal([]pool.Address{alice}, addrs)
		return nil
	})
	require.NoError(err, "View")
}

func TestRegistryAndParameters(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := memory.New()
	defer store.Close()

	token := pool.AssetID(pool.NewAddress([]byte("token")))
	ntoken := pool.AssetID(pool.NewAddress([]byte("ntoken")))
	gov := pool.NewAddress([]byte("governance"))

	err := store.Update(ctx, func(tx db.Tx) error {
		st := NewMutableState(tx)

		_, err := st.AssetEntry(token)
		require.ErrorIs(err, pool.ErrNotFound)

		roles, ok, err := st.Roles()
		require.NoError(err, "Roles")
		require.False(ok, "roles should not be initialized")
		require.NotNil(roles)

		require.NoError(st.SetAssetEntry(&pool.AssetEntry{Asset: token, Derivative: ntoken}))
		require.NoError(st.SetRoles(&pool.Roles{Governance: gov}))
		require.NoError(st.SetParameters(&pool.Parameters{ProtocolToken: token, AllowRoleUpdates: true}))
		require.NoError(st.SetMinedProtocolTokens(quantity.NewFromUint64(42)))
		return nil
	})
	require.NoError(err, "Update")

	err = store.View(ctx, func(tx db.Tx) error {
		st := NewImmutableState(tx)

		entry, err := st.AssetEntry(token)
		require.NoError(err, "AssetEntry")
		require.True(entry.Derivative.Equal(ntoken))

		entries, err := st.Assets()
		require.NoError(err, "Assets")
		require.Len(entries, 1)

		roles, ok, err := st.Roles()
		require.NoError(err, "Roles")
		require.True(ok)
		require.True(roles.Governance.Equal(gov))

		params, err := st.Parameters()
		require.NoError(err, "Parameters")
		require.True(params.AllowRoleUpdates)
		require.True(params.ProtocolToken.Equal(token))

		mined, err := st.MinedProtocolTokens()
		require.NoError(err, "MinedProtocolTokens")
		require.EqualValues(42, mined.ToBigInt().Uint64())
		return nil
	})
	require.NoError(err, "View")
}
