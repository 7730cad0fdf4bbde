package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/token/api"
)

func TestContract(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	asset := pool.AssetID(pool.NewAddress([]byte("token: test")))
	alice := pool.NewAddress([]byte("alice"))
	bob := pool.NewAddress([]byte("bob"))
	c := New(asset)
	require.True(c.Asset().Equal(asset))

	require.NoError(c.Mint(alice, quantity.NewFromUint64(100)), "Mint")

	err := c.Transfer(ctx, alice, bob, quantity.NewFromUint64(101))
	require.ErrorIs(err, api.ErrInsufficientBalance)

	require.NoError(c.Transfer(ctx, alice, bob, quantity.NewFromUint64(40)), "Transfer")
	bal, err := c.BalanceOf(ctx, alice)
	require.NoError(err, "BalanceOf")
	require.EqualValues(60, bal.ToBigInt().Uint64())
	bal, err = c.BalanceOf(ctx, bob)
	require.NoError(err, "BalanceOf")
	require.EqualValues(40, bal.ToBigInt().Uint64())

	// Pull without an allowance.
	err = c.TransferFrom(ctx, pool.PoolAddress, alice, pool.PoolAddress, quantity.NewFromUint64(10))
	require.ErrorIs(err, api.ErrInsufficientAllowance)

	require.NoError(c.Approve(ctx, alice, pool.PoolAddress, quantity.NewFromUint64(15)), "Approve")
	allowance, err := c.Allowance(ctx, alice, pool.PoolAddress)
	require.NoError(err, "Allowance")
	require.EqualValues(15, allowance.ToBigInt().Uint64())

	require.NoError(c.TransferFrom(ctx, pool.PoolAddress, alice, pool.PoolAddress, quantity.NewFromUint64(10)), "TransferFrom")
	allowance, err = c.Allowance(ctx, alice, pool.PoolAddress)
	require.NoError(err, "Allowance")
	require.EqualValues(5, allowance.ToBigInt().Uint64())
	custody, err := c.BalanceOf(ctx, pool.PoolAddress)
	require.NoError(err, "BalanceOf")
	require.EqualValues(10, custody.ToBigInt().Uint64())

	// A failed pull leaves the allowance intact.
	require.NoError(c.Approve(ctx, bob, pool.PoolAddress, quantity.NewFromUint64(1000)), "Approve")
	err = c.TransferFrom(ctx, pool.PoolAddress, bob, pool.PoolAddress, quantity.NewFromUint64(500))
	require.ErrorIs(err, api.ErrInsufficientBalance)
	allowance, err = c.Allowance(ctx, bob, pool.PoolAddress)
	require.NoError(err, "Allowance")
	require.EqualValues(1000, allowance.ToBigInt().Uint64())
}

func TestFault(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	alice := pool.NewAddress([]byte("alice"))
	c := New(pool.NativeAsset)
	require.NoError(c.Mint(alice, quantity.NewFromUint64(10)), "Mint")

	errFault := errors.New("contract paused")
	c.SetFault(errFault)
	err := c.Transfer(ctx, alice, pool.PoolAddress, quantity.NewFromUint64(1))
	require.ErrorIs(err, errFault)

	c.SetFault(nil)
	require.NoError(c.Transfer(ctx, alice, pool.PoolAddress, quantity.NewFromUint64(1)), "Transfer")
}
