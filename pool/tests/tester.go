// Package tests is a collection of pool ledger implementation tests.
package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	db "github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/gateway"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/ledger"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/metrics"
	tokenAPI "github.com/MLY0813/NEST-Oracle-V3.5/token/api"
	tokenMemory "github.com/MLY0813/NEST-Oracle-V3.5/token/memory"
)

const recvTimeout = 5 * time.Second

var (
	// ProtocolToken is the protocol token of the test genesis.
	ProtocolToken = pool.AssetID(pool.NewAddress([]byte("test asset: nest")))
	// Token is a registered third-party token.
	Token = pool.AssetID(pool.NewAddress([]byte("test asset: usdt")))
	// NToken is the derivative paired with Token.
	NToken = pool.AssetID(pool.NewAddress([]byte("test asset: nusdt")))

	// TestRoles are the role bindings of the test genesis.
	TestRoles = pool.Roles{
		Mining:           pool.NewAddress([]byte("test role: mining")),
		Staking:          pool.NewAddress([]byte("test role: staking")),
		NTokenController: pool.NewAddress([]byte("test role: ntoken controller")),
		NNRewardPool:     pool.NewAddress([]byte("test role: nn reward pool")),
		Query:            pool.NewAddress([]byte("test role: query")),
		Governance:       pool.NewAddress([]byte("test role: governance")),
	}

	AccountA = pool.NewAddress([]byte("test account: a"))
	AccountB = pool.NewAddress([]byte("test account: b"))
	Stranger = pool.NewAddress([]byte("test account: stranger"))

	qtyMax = quantity.MaxQuantity
)

// TestGenesis returns the genesis document used by the tests.
func TestGenesis() *pool.Genesis {
	return &pool.Genesis{
		Parameters: pool.Parameters{
			ProtocolToken:    ProtocolToken,
			AllowRoleUpdates: true,
		},
		Roles: TestRoles,
	}
}

// QtyFromInt converts an int to a quantity.
func QtyFromInt(n int) *quantity.Quantity {
	return quantity.NewFromUint64(uint64(n))
}

// Env is a ledger wired to in-memory asset contracts.
type Env struct {
	Ledger  *ledger.Ledger
	Gateway *gateway.Gateway

	Native   *tokenMemory.Contract
	Token    *tokenMemory.Contract
	Protocol *tokenMemory.Contract
}

// NewEnv creates a test environment over the store.
func NewEnv(t *testing.T, store db.DB) *Env {
	require := require.New(t)

	l, err := ledger.New(context.Background(), store, TestGenesis())
	require.NoError(err, "ledger.New")

	env := &Env{
		Ledger:   l,
		Native:   tokenMemory.New(pool.NativeAsset),
		Token:    tokenMemory.New(Token),
		Protocol: tokenMemory.New(ProtocolToken),
	}
	env.Gateway, err = gateway.New(l, env.Native, env.Token, env.Protocol)
	require.NoError(err, "gateway.New")

	return env
}

// DepositNative deposits native currency for the account through the
// mining role.
func (env *Env) DepositNative(t *testing.T, account pool.Address, n int) {
	require := require.New(t)

	require.NoError(env.Native.Mint(TestRoles.Mining, QtyFromInt(n)), "native: Mint")
	err := env.Gateway.DepositNative(context.Background(), TestRoles.Mining, account, QtyFromInt(n))
	require.NoError(err, "DepositNative")
}

// DepositToken deposits a token for the account through the mining role.
func (env *Env) DepositToken(t *testing.T, c *tokenMemory.Contract, account pool.Address, n int) {
	require := require.New(t)
	ctx := context.Background()

	require.NoError(c.Mint(account, QtyFromInt(n)), "token: Mint")
	require.NoError(c.Approve(ctx, account, pool.PoolAddress, QtyFromInt(n)), "token: Approve")
	err := env.Gateway.DepositToken(ctx, TestRoles.Mining, account, c.Asset(), QtyFromInt(n))
	require.NoError(err, "DepositToken")
}

// RequireBalance checks the available and frozen balance of
// (account, asset).
func (env *Env) RequireBalance(t *testing.T, account pool.Address, asset pool.AssetID, available, frozen int) {
	require := require.New(t)
	ctx := context.Background()
	q := &pool.BalanceQuery{Owner: account, Asset: asset}

	avail, err := env.Ledger.BalanceOf(ctx, q)
	require.NoError(err, "BalanceOf")
	require.Equal(QtyFromInt(available).String(), avail.String(), "available %s of %s", asset, account)

	froz, err := env.Ledger.FrozenBalanceOf(ctx, q)
	require.NoError(err, "FrozenBalanceOf")
	require.Equal(QtyFromInt(frozen).String(), froz.String(), "frozen %s of %s", asset, account)
}

func requireExternal(t *testing.T, c tokenAPI.Contract, owner pool.Address, n int) {
	bal, err := c.BalanceOf(context.Background(), owner)
	require.NoError(t, err, "external BalanceOf")
	require.Equal(t, QtyFromInt(n).String(), bal.String(), "external balance of %s", owner)
}

// PoolImplementationTests exercises a pool ledger over a freshly created
// store per test.
func PoolImplementationTests(t *testing.T, newStore func(t *testing.T) db.DB) {
	for _, tc := range []struct {
		n  string
		fn func(*testing.T, *Env)
	}{
		{"InitialEnv", testInitialEnv},
		{"Scenario", testScenario},
		{"Conservation", testConservation},
		{"SelfTransfer", testSelfTransfer},
		{"FreezeRoundTrip", testFreezeRoundTrip},
		{"CompoundAtomicity", testCompoundAtomicity},
		{"Authorization", testAuthorization},
		{"WithdrawBound", testWithdrawBound},
		{"WithdrawRollback", testWithdrawRollback},
		{"WithdrawNativeAndToken", testWithdrawNativeAndToken},
		{"DepositAllOrNothing", testDepositAllOrNothing},
		{"MinedTotal", testMinedTotal},
		{"Overflow", testOverflow},
		{"FreezeWithTopUp", testFreezeWithTopUp},
		{"Registry", testRegistry},
		{"SetRoles", testSetRoles},
		{"InitProtocolTokenLedger", testInitProtocolTokenLedger},
		{"Reconcile", testReconcile},
		{"Events", testEvents},
		{"StateToGenesis", testStateToGenesis},
		{"ConcurrentTransfers", testConcurrentTransfers},
		{"ReadsDuringExternalPush", testReadsDuringExternalPush},
	} {
		t.Run(tc.n, func(t *testing.T) {
			store := newStore(t)
			defer store.Close()
			tc.fn(t, NewEnv(t, store))
		})
	}
}

func testInitialEnv(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	roles, err := env.Ledger.Roles(ctx)
	require.NoError(err, "Roles")
	require.Equal(TestRoles, *roles, "Roles")

	params, err := env.Ledger.Parameters(ctx)
	require.NoError(err, "Parameters")
	require.True(params.ProtocolToken.Equal(ProtocolToken), "ProtocolToken")

	mined, err := env.Ledger.MinedProtocolTokens(ctx)
	require.NoError(err, "MinedProtocolTokens")
	require.True(mined.IsZero(), "MinedProtocolTokens - initial value")

	accounts, err := env.Ledger.Accounts(ctx)
	require.NoError(err, "Accounts")
	require.Len(accounts, 0, "Accounts - nr entries")

	env.RequireBalance(t, AccountA, pool.NativeAsset, 0, 0)
}

func testScenario(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()
	mining := TestRoles.Mining

	env.DepositNative(t, AccountA, 40)
	env.RequireBalance(t, AccountA, pool.NativeAsset, 40, 0)

	err := env.Ledger.Freeze(ctx, mining, AccountA, pool.NativeAsset, QtyFromInt(10))
	require.NoError(err, "Freeze")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 30, 10)

	err = env.Gateway.WithdrawNative(ctx, mining, AccountA, QtyFromInt(35))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "WithdrawNative - more than available")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 30, 10)
	requireExternal(t, env.Native, AccountA, 0)

	err = env.Gateway.WithdrawNative(ctx, mining, AccountA, QtyFromInt(30))
	require.NoError(err, "WithdrawNative")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 0, 10)
	requireExternal(t, env.Native, AccountA, 30)
	requireExternal(t, env.Native, pool.PoolAddress, 10)
}

func testConservation(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositToken(t, env.Token, AccountA, 100)
	env.DepositToken(t, env.Token, AccountB, 20)
	require.NoError(env.Ledger.Freeze(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(30)), "Freeze A")
	require.NoError(env.Ledger.Freeze(ctx, TestRoles.Mining, AccountB, Token, QtyFromInt(5)), "Freeze B")

	for _, caller := range []pool.Address{TestRoles.Mining, TestRoles.Staking, TestRoles.NNRewardPool} {
		err := env.Ledger.TransferInPool(ctx, caller, Token, AccountA, AccountB, QtyFromInt(10))
		require.NoError(err, "TransferInPool by %s", caller)
	}
	env.RequireBalance(t, AccountA, Token, 40, 30)
	env.RequireBalance(t, AccountB, Token, 45, 5)

	// More than available, frozen funds do not count.
	err := env.Ledger.TransferInPool(ctx, TestRoles.Mining, Token, AccountA, AccountB, QtyFromInt(41))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "TransferInPool - more than available")
	env.RequireBalance(t, AccountA, Token, 40, 30)
	env.RequireBalance(t, AccountB, Token, 45, 5)

	// Transfers to a new account create it implicitly.
	err = env.Ledger.TransferInPool(ctx, TestRoles.Mining, Token, AccountA, Stranger, QtyFromInt(40))
	require.NoError(err, "TransferInPool - to new account")
	env.RequireBalance(t, AccountA, Token, 0, 30)
	env.RequireBalance(t, Stranger, Token, 40, 0)

	claims, err := env.Ledger.Claims(ctx)
	require.NoError(err, "Claims")
	require.Equal("120", claims[Token].String(), "Claims - conserved")
}

func testSelfTransfer(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositNative(t, AccountA, 10)

	err := env.Ledger.TransferInPool(ctx, TestRoles.Mining, pool.NativeAsset, AccountA, AccountA, QtyFromInt(10))
	require.NoError(err, "TransferInPool - self")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 10, 0)

	err = env.Ledger.TransferInPool(ctx, TestRoles.Mining, pool.NativeAsset, AccountA, AccountA, QtyFromInt(11))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "TransferInPool - self, more than available")
}

func testFreezeRoundTrip(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()
	mining := TestRoles.Mining

	env.DepositNative(t, AccountA, 50)
	require.NoError(env.Ledger.Freeze(ctx, mining, AccountA, pool.NativeAsset, QtyFromInt(5)), "Freeze")

	for _, v := range []int{0, 1, 20, 45} {
		require.NoError(env.Ledger.Freeze(ctx, mining, AccountA, pool.NativeAsset, QtyFromInt(v)), "Freeze %d", v)
		require.NoError(env.Ledger.Unfreeze(ctx, mining, AccountA, pool.NativeAsset, QtyFromInt(v)), "Unfreeze %d", v)
		env.RequireBalance(t, AccountA, pool.NativeAsset, 45, 5)
	}

	err := env.Ledger.Freeze(ctx, mining, AccountA, pool.NativeAsset, QtyFromInt(46))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "Freeze - more than available")
	err = env.Ledger.Unfreeze(ctx, mining, AccountA, pool.NativeAsset, QtyFromInt(6))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "Unfreeze - more than frozen")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 45, 5)
}

func testCompoundAtomicity(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()
	mining := TestRoles.Mining

	env.DepositNative(t, AccountA, 40)
	env.DepositToken(t, env.Token, AccountA, 100)

	err := env.Ledger.FreezeNativeAndToken(ctx, mining, AccountA, QtyFromInt(10), Token, QtyFromInt(60))
	require.NoError(err, "FreezeNativeAndToken")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 30, 10)
	env.RequireBalance(t, AccountA, Token, 40, 60)

	err = env.Ledger.UnfreezeNativeAndToken(ctx, mining, AccountA, QtyFromInt(10), Token, QtyFromInt(60))
	require.NoError(err, "UnfreezeNativeAndToken")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 40, 0)
	env.RequireBalance(t, AccountA, Token, 100, 0)

	// The token half fails, the native half must not be applied.
	err = env.Ledger.FreezeNativeAndToken(ctx, mining, AccountA, QtyFromInt(10), Token, QtyFromInt(101))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "FreezeNativeAndToken - token half fails")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 40, 0)
	env.RequireBalance(t, AccountA, Token, 100, 0)

	err = env.Ledger.UnfreezeNativeAndToken(ctx, mining, AccountA, QtyFromInt(0), Token, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "UnfreezeNativeAndToken - token half fails")

	err = env.Ledger.FreezeNativeAndToken(ctx, mining, AccountA, QtyFromInt(1), pool.NativeAsset, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrInvalidArgument, "FreezeNativeAndToken - native token half")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 40, 0)
}

func testAuthorization(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositNative(t, AccountA, 40)
	env.DepositToken(t, env.Token, AccountA, 40)
	one := QtyFromInt(1)

	for _, caller := range []pool.Address{Stranger, AccountA, TestRoles.Query, TestRoles.NTokenController, {}} {
		for _, tc := range []struct {
			n  string
			fn func() error
		}{
			{"Freeze", func() error { return env.Ledger.Freeze(ctx, caller, AccountA, pool.NativeAsset, one) }},
			{"Unfreeze", func() error { return env.Ledger.Unfreeze(ctx, caller, AccountA, pool.NativeAsset, one) }},
			{"FreezeNativeAndToken", func() error {
				return env.Ledger.FreezeNativeAndToken(ctx, caller, AccountA, one, Token, one)
			}},
			{"UnfreezeNativeAndToken", func() error {
				return env.Ledger.UnfreezeNativeAndToken(ctx, caller, AccountA, one, Token, one)
			}},
			{"TransferInPool", func() error {
				return env.Ledger.TransferInPool(ctx, caller, pool.NativeAsset, AccountA, AccountB, one)
			}},
			{"Add", func() error { return env.Ledger.Add(ctx, caller, AccountA, ProtocolToken, one) }},
			{"InitProtocolTokenLedger", func() error { return env.Ledger.InitProtocolTokenLedger(ctx, caller, one) }},
			{"RegisterAsset", func() error { return env.Ledger.RegisterAsset(ctx, caller, Token, NToken) }},
			{"SetRoles", func() error {
				roles := TestRoles
				roles.Mining = caller
				return env.Ledger.SetRoles(ctx, caller, &roles)
			}},
			{"DepositNative", func() error { return env.Gateway.DepositNative(ctx, caller, AccountA, one) }},
			{"DepositToken", func() error { return env.Gateway.DepositToken(ctx, caller, AccountA, Token, one) }},
			{"WithdrawNative", func() error { return env.Gateway.WithdrawNative(ctx, caller, AccountA, one) }},
			{"WithdrawToken", func() error { return env.Gateway.WithdrawToken(ctx, caller, AccountA, Token, one) }},
			{"WithdrawNativeAndToken", func() error {
				return env.Gateway.WithdrawNativeAndToken(ctx, caller, AccountA, one, Token, one)
			}},
			{"FreezeWithTopUp", func() error { return env.Gateway.FreezeWithTopUp(ctx, caller, AccountA, Token, one) }},
		} {
			err := tc.fn()
			if tc.n == "SetRoles" && !caller.IsValid() {
				// Rejected by the roles sanity check before the role gate.
				require.Error(err, "%s by %s", tc.n, caller)
				continue
			}
			require.ErrorIs(err, pool.ErrUnauthorized, "%s by %s", tc.n, caller)
		}
	}

	env.RequireBalance(t, AccountA, pool.NativeAsset, 40, 0)
	env.RequireBalance(t, AccountA, Token, 40, 0)
	env.RequireBalance(t, AccountB, pool.NativeAsset, 0, 0)

	_, err := env.Ledger.ResolveDerivative(ctx, &pool.DerivativeQuery{Asset: Token})
	require.ErrorIs(err, pool.ErrNotFound, "registry unchanged")
	mined, err := env.Ledger.MinedProtocolTokens(ctx)
	require.NoError(err, "MinedProtocolTokens")
	require.True(mined.IsZero(), "MinedProtocolTokens unchanged")
	roles, err := env.Ledger.Roles(ctx)
	require.NoError(err, "Roles")
	require.Equal(TestRoles, *roles, "roles unchanged")

	// Roles outside the action table are rejected as well.
	err = env.Ledger.Freeze(ctx, TestRoles.Governance, AccountA, pool.NativeAsset, one)
	require.ErrorIs(err, pool.ErrUnauthorized, "Freeze by governance")
	err = env.Ledger.RegisterAsset(ctx, TestRoles.Mining, Token, NToken)
	require.ErrorIs(err, pool.ErrUnauthorized, "RegisterAsset by mining")
}

func testWithdrawBound(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositToken(t, env.Token, AccountA, 50)
	require.NoError(env.Ledger.Freeze(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(20)), "Freeze")

	err := env.Gateway.WithdrawToken(ctx, TestRoles.Staking, AccountA, Token, QtyFromInt(31))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "WithdrawToken - more than available")
	env.RequireBalance(t, AccountA, Token, 30, 20)
	requireExternal(t, env.Token, AccountA, 0)
	requireExternal(t, env.Token, pool.PoolAddress, 50)

	err = env.Gateway.WithdrawToken(ctx, TestRoles.Staking, AccountA, Token, QtyFromInt(30))
	require.NoError(err, "WithdrawToken")
	env.RequireBalance(t, AccountA, Token, 0, 20)
	requireExternal(t, env.Token, AccountA, 30)
	requireExternal(t, env.Token, pool.PoolAddress, 20)

	err = env.Gateway.WithdrawToken(ctx, TestRoles.Staking, AccountA, pool.NativeAsset, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrInvalidArgument, "WithdrawToken - native")

	unknown := pool.AssetID(pool.NewAddress([]byte("test asset: unknown")))
	err = env.Gateway.WithdrawToken(ctx, TestRoles.Staking, AccountA, unknown, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrNotFound, "WithdrawToken - no contract")
}

func testWithdrawRollback(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositToken(t, env.Token, AccountA, 50)
	env.DepositNative(t, AccountA, 50)

	env.Token.SetFault(fmt.Errorf("token paused"))
	err := env.Gateway.WithdrawToken(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(10))
	require.ErrorIs(err, pool.ErrExternalTransferFailed, "WithdrawToken - push fails")
	env.RequireBalance(t, AccountA, Token, 50, 0)
	env.Token.SetFault(nil)

	// Custody lacking funds is an external failure too.
	err = env.Ledger.Add(ctx, TestRoles.Mining, AccountB, Token, QtyFromInt(100))
	require.NoError(err, "Add")
	err = env.Gateway.WithdrawToken(ctx, TestRoles.Mining, AccountB, Token, QtyFromInt(100))
	require.ErrorIs(err, pool.ErrExternalTransferFailed, "WithdrawToken - custody short")
	env.RequireBalance(t, AccountB, Token, 100, 0)

	env.Native.SetFault(fmt.Errorf("native paused"))
	err = env.Gateway.WithdrawNative(ctx, TestRoles.Mining, AccountA, QtyFromInt(10))
	require.ErrorIs(err, pool.ErrExternalTransferFailed, "WithdrawNative - push fails")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 50, 0)
	env.Native.SetFault(nil)

	requireExternal(t, env.Token, AccountA, 0)
	requireExternal(t, env.Native, AccountA, 0)
}

func testWithdrawNativeAndToken(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()
	mining := TestRoles.Mining

	env.DepositNative(t, AccountA, 40)
	env.DepositToken(t, env.Token, AccountA, 40)

	err := env.Gateway.WithdrawNativeAndToken(ctx, mining, AccountA, QtyFromInt(41), Token, QtyFromInt(10))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "WithdrawNativeAndToken - native short")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 40, 0)
	env.RequireBalance(t, AccountA, Token, 40, 0)
	requireExternal(t, env.Token, AccountA, 0)

	err = env.Gateway.WithdrawNativeAndToken(ctx, mining, AccountA, QtyFromInt(10), Token, QtyFromInt(15))
	require.NoError(err, "WithdrawNativeAndToken")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 30, 0)
	env.RequireBalance(t, AccountA, Token, 25, 0)
	requireExternal(t, env.Native, AccountA, 10)
	requireExternal(t, env.Token, AccountA, 15)

	// The native push fails after the token left custody.
	op := string(ledger.ActionWithdrawNativeAndToken)
	okBefore := testutil.ToFloat64(metrics.Operations.WithLabelValues(op))
	failBefore := testutil.ToFloat64(metrics.Failures.WithLabelValues(op, "external_transfer"))
	env.Native.SetFault(fmt.Errorf("native paused"))
	err = env.Gateway.WithdrawNativeAndToken(ctx, mining, AccountA, QtyFromInt(10), Token, QtyFromInt(5))
	require.ErrorIs(err, pool.ErrExternalTransferFailed, "WithdrawNativeAndToken - native push fails")
	env.Native.SetFault(nil)
	require.Equal(okBefore, testutil.ToFloat64(metrics.Operations.WithLabelValues(op)), "partial failure is not a success")
	require.Equal(failBefore+1, testutil.ToFloat64(metrics.Failures.WithLabelValues(op, "external_transfer")), "partial failure is counted")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 30, 0)
	env.RequireBalance(t, AccountA, Token, 20, 0)
	requireExternal(t, env.Token, AccountA, 20)

	_, err = env.Gateway.Reconcile(ctx)
	require.NoError(err, "Reconcile - ledger matches custody")
}

func testDepositAllOrNothing(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	// No allowance.
	require.NoError(env.Token.Mint(AccountA, QtyFromInt(100)), "Mint")
	err := env.Gateway.DepositToken(ctx, TestRoles.Staking, AccountA, Token, QtyFromInt(10))
	require.ErrorIs(err, pool.ErrExternalTransferFailed, "DepositToken - no allowance")
	env.RequireBalance(t, AccountA, Token, 0, 0)
	requireExternal(t, env.Token, AccountA, 100)

	// Allowance but insufficient external balance.
	require.NoError(env.Token.Approve(ctx, AccountA, pool.PoolAddress, QtyFromInt(500)), "Approve")
	err = env.Gateway.DepositToken(ctx, TestRoles.Staking, AccountA, Token, QtyFromInt(101))
	require.ErrorIs(err, pool.ErrExternalTransferFailed, "DepositToken - external balance short")
	env.RequireBalance(t, AccountA, Token, 0, 0)

	err = env.Gateway.DepositToken(ctx, TestRoles.Staking, AccountA, Token, QtyFromInt(100))
	require.NoError(err, "DepositToken")
	env.RequireBalance(t, AccountA, Token, 100, 0)
	requireExternal(t, env.Token, AccountA, 0)
	requireExternal(t, env.Token, pool.PoolAddress, 100)

	// The carried native value must exist.
	err = env.Gateway.DepositNative(ctx, TestRoles.Staking, AccountA, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrExternalTransferFailed, "DepositNative - caller has no value")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 0, 0)

	err = env.Gateway.DepositToken(ctx, TestRoles.Staking, AccountA, pool.NativeAsset, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrInvalidArgument, "DepositToken - native")
}

func testMinedTotal(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	requireMined := func(n int) {
		mined, err := env.Ledger.MinedProtocolTokens(ctx)
		require.NoError(err, "MinedProtocolTokens")
		require.Equal(QtyFromInt(n).String(), mined.String(), "MinedProtocolTokens")
	}

	err := env.Ledger.Add(ctx, TestRoles.Mining, AccountA, ProtocolToken, QtyFromInt(600))
	require.NoError(err, "Add - protocol token")
	env.RequireBalance(t, AccountA, ProtocolToken, 600, 0)
	requireMined(600)

	err = env.Ledger.Add(ctx, TestRoles.NNRewardPool, AccountB, ProtocolToken, QtyFromInt(400))
	require.NoError(err, "Add - protocol token by reward pool")
	requireMined(1000)

	for _, asset := range []pool.AssetID{Token, NToken, pool.NativeAsset} {
		err = env.Ledger.Add(ctx, TestRoles.Mining, AccountA, asset, QtyFromInt(7))
		require.NoError(err, "Add - %s", asset)
		env.RequireBalance(t, AccountA, asset, 7, 0)
	}
	requireMined(1000)

	// Moving mined tokens around does not change the total.
	err = env.Ledger.TransferInPool(ctx, TestRoles.Mining, ProtocolToken, AccountA, AccountB, QtyFromInt(100))
	require.NoError(err, "TransferInPool")
	requireMined(1000)
}

func testOverflow(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	err := env.Ledger.Add(ctx, TestRoles.Mining, AccountA, Token, qtyMax)
	require.NoError(err, "Add - max")

	err = env.Ledger.Add(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrArithmeticOverflow, "Add - past max")

	// Available + frozen is bounded as well.
	require.NoError(env.Ledger.Freeze(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(1)), "Freeze")
	err = env.Ledger.Add(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrArithmeticOverflow, "Add - total past max")

	err = env.Ledger.Add(ctx, TestRoles.Mining, AccountB, Token, QtyFromInt(5))
	require.NoError(err, "Add")
	err = env.Ledger.TransferInPool(ctx, TestRoles.Mining, Token, AccountB, AccountA, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrArithmeticOverflow, "TransferInPool - destination past max")
	env.RequireBalance(t, AccountB, Token, 5, 0)

	// Overflow of the mined total fails the whole credit.
	err = env.Ledger.Add(ctx, TestRoles.Mining, AccountA, ProtocolToken, qtyMax)
	require.NoError(err, "Add - protocol token max")
	err = env.Ledger.Add(ctx, TestRoles.Mining, AccountB, ProtocolToken, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrArithmeticOverflow, "Add - mined total past max")
	env.RequireBalance(t, AccountB, ProtocolToken, 0, 0)

	mined, err := env.Ledger.MinedProtocolTokens(ctx)
	require.NoError(err, "MinedProtocolTokens")
	require.Equal(qtyMax.String(), mined.String(), "MinedProtocolTokens unchanged")
}

func testFreezeWithTopUp(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositToken(t, env.Token, AccountA, 30)
	require.NoError(env.Token.Mint(AccountA, QtyFromInt(100)), "Mint")
	require.NoError(env.Token.Approve(ctx, AccountA, pool.PoolAddress, QtyFromInt(50)), "Approve")

	// Covered by available, nothing is pulled.
	err := env.Gateway.FreezeWithTopUp(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(10))
	require.NoError(err, "FreezeWithTopUp - covered")
	env.RequireBalance(t, AccountA, Token, 20, 10)
	requireExternal(t, env.Token, AccountA, 100)

	// Shortfall of 40 is pulled.
	err = env.Gateway.FreezeWithTopUp(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(60))
	require.NoError(err, "FreezeWithTopUp - shortfall")
	env.RequireBalance(t, AccountA, Token, 0, 70)
	requireExternal(t, env.Token, AccountA, 60)
	requireExternal(t, env.Token, pool.PoolAddress, 70)

	// Allowance left is 10.
	err = env.Gateway.FreezeWithTopUp(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(11))
	require.ErrorIs(err, pool.ErrExternalTransferFailed, "FreezeWithTopUp - allowance short")
	env.RequireBalance(t, AccountA, Token, 0, 70)
	requireExternal(t, env.Token, AccountA, 60)

	// Native is never topped up.
	env.DepositNative(t, AccountA, 5)
	err = env.Gateway.FreezeWithTopUp(ctx, TestRoles.Mining, AccountA, pool.NativeAsset, QtyFromInt(6))
	require.ErrorIs(err, pool.ErrInsufficientBalance, "FreezeWithTopUp - native")

	err = env.Gateway.FreezeNativeAndTokenWithTopUp(ctx, TestRoles.Mining, AccountA, QtyFromInt(5), Token, QtyFromInt(10))
	require.NoError(err, "FreezeNativeAndTokenWithTopUp")
	env.RequireBalance(t, AccountA, pool.NativeAsset, 0, 5)
	env.RequireBalance(t, AccountA, Token, 0, 80)
	requireExternal(t, env.Token, AccountA, 50)

	_, err = env.Gateway.Reconcile(ctx)
	require.NoError(err, "Reconcile")
}

func testRegistry(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()
	gov := TestRoles.Governance

	_, err := env.Ledger.ResolveDerivative(ctx, &pool.DerivativeQuery{Asset: Token})
	require.ErrorIs(err, pool.ErrNotFound, "ResolveDerivative - unregistered")

	require.NoError(env.Ledger.RegisterAsset(ctx, gov, Token, NToken), "RegisterAsset")
	derivative, err := env.Ledger.ResolveDerivative(ctx, &pool.DerivativeQuery{Asset: Token})
	require.NoError(err, "ResolveDerivative")
	require.True(derivative.Equal(NToken), "ResolveDerivative - value")

	// Reassignment by governance.
	other := pool.AssetID(pool.NewAddress([]byte("test asset: nusdt v2")))
	require.NoError(env.Ledger.RegisterAsset(ctx, gov, Token, other), "RegisterAsset - reassign")
	derivative, err = env.Ledger.ResolveDerivative(ctx, &pool.DerivativeQuery{Asset: Token})
	require.NoError(err, "ResolveDerivative")
	require.True(derivative.Equal(other), "ResolveDerivative - reassigned")

	entries, err := env.Ledger.Assets(ctx)
	require.NoError(err, "Assets")
	require.Len(entries, 1, "Assets - nr entries")

	err = env.Ledger.RegisterAsset(ctx, gov, pool.NativeAsset, NToken)
	require.ErrorIs(err, pool.ErrInvalidArgument, "RegisterAsset - native")
	err = env.Ledger.RegisterAsset(ctx, gov, Token, pool.AssetID{})
	require.ErrorIs(err, pool.ErrInvalidArgument, "RegisterAsset - zero derivative")
}

func testSetRoles(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositNative(t, AccountA, 10)

	newMining := pool.NewAddress([]byte("test role: mining v2"))
	roles := TestRoles
	roles.Mining = newMining
	require.NoError(env.Ledger.SetRoles(ctx, TestRoles.Governance, &roles), "SetRoles")

	err := env.Ledger.Freeze(ctx, TestRoles.Mining, AccountA, pool.NativeAsset, QtyFromInt(1))
	require.ErrorIs(err, pool.ErrUnauthorized, "Freeze - old mining identity")
	err = env.Ledger.Freeze(ctx, newMining, AccountA, pool.NativeAsset, QtyFromInt(1))
	require.NoError(err, "Freeze - new mining identity")

	current, err := env.Ledger.Roles(ctx)
	require.NoError(err, "Roles")
	require.Equal(roles, *current, "Roles - updated")

	roles.Governance = pool.Address{}
	err = env.Ledger.SetRoles(ctx, TestRoles.Governance, &roles)
	require.ErrorIs(err, pool.ErrInvalidArgument, "SetRoles - no governance")
}

func testInitProtocolTokenLedger(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	err := env.Ledger.InitProtocolTokenLedger(ctx, TestRoles.Governance, QtyFromInt(1000))
	require.NoError(err, "InitProtocolTokenLedger")
	env.RequireBalance(t, pool.MiningReserveAddress, ProtocolToken, 1000, 0)

	mined, err := env.Ledger.MinedProtocolTokens(ctx)
	require.NoError(err, "MinedProtocolTokens")
	require.True(mined.IsZero(), "reserve credit is not mined")

	err = env.Ledger.InitProtocolTokenLedger(ctx, TestRoles.Governance, QtyFromInt(1000))
	require.ErrorIs(err, pool.ErrInvalidArgument, "InitProtocolTokenLedger - already initialized")
	env.RequireBalance(t, pool.MiningReserveAddress, ProtocolToken, 1000, 0)

	// The mining engine pays rewards out of the reserve.
	err = env.Ledger.TransferInPool(ctx, TestRoles.Mining, ProtocolToken, pool.MiningReserveAddress, AccountA, QtyFromInt(10))
	require.NoError(err, "TransferInPool - from reserve")
	env.RequireBalance(t, AccountA, ProtocolToken, 10, 0)

	// An exhausted reserve may be initialized again.
	err = env.Ledger.TransferInPool(ctx, TestRoles.Mining, ProtocolToken, pool.MiningReserveAddress, AccountB, QtyFromInt(990))
	require.NoError(err, "TransferInPool - drain reserve")
	require.NoError(env.Ledger.InitProtocolTokenLedger(ctx, TestRoles.Governance, QtyFromInt(50)), "InitProtocolTokenLedger - refill")
	env.RequireBalance(t, pool.MiningReserveAddress, ProtocolToken, 50, 0)
}

func testReconcile(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositNative(t, AccountA, 40)
	env.DepositToken(t, env.Token, AccountA, 25)

	report, err := env.Gateway.Reconcile(ctx)
	require.NoError(err, "Reconcile")
	require.Len(report.Assets, 3, "Reconcile - nr assets")
	for _, ar := range report.Assets {
		require.True(ar.Shortfall.IsZero(), "Reconcile - no shortfall for %s", ar.Asset)
	}

	// Surplus custody is fine.
	require.NoError(env.Token.Mint(pool.PoolAddress, QtyFromInt(5)), "Mint")
	_, err = env.Gateway.Reconcile(ctx)
	require.NoError(err, "Reconcile - surplus")

	// Unbacked claims.
	require.NoError(env.Ledger.Add(ctx, TestRoles.Mining, AccountB, Token, QtyFromInt(10)), "Add")
	require.NoError(env.Ledger.Add(ctx, TestRoles.Mining, AccountB, ProtocolToken, QtyFromInt(3)), "Add")
	require.NoError(env.Ledger.Add(ctx, TestRoles.Mining, AccountB, NToken, QtyFromInt(3)), "Add")
	report, err = env.Gateway.Reconcile(ctx)
	require.ErrorIs(err, pool.ErrReconciliation, "Reconcile - shortfall")
	require.Equal([]pool.AssetID{NToken}, report.Unbacked, "Reconcile - unbacked")

	shortfalls := make(map[pool.AssetID]string)
	for _, ar := range report.Assets {
		shortfalls[ar.Asset] = ar.Shortfall.String()
	}
	require.Equal("5", shortfalls[Token], "Reconcile - token shortfall")
	require.Equal("3", shortfalls[ProtocolToken], "Reconcile - protocol token shortfall")
	require.Equal("0", shortfalls[pool.NativeAsset], "Reconcile - native shortfall")
}

func testEvents(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	ch, sub, err := env.Ledger.WatchEvents(ctx)
	require.NoError(err, "WatchEvents")
	defer sub.Close()

	env.DepositNative(t, AccountA, 40)
	require.NoError(env.Ledger.Freeze(ctx, TestRoles.Mining, AccountA, pool.NativeAsset, QtyFromInt(10)), "Freeze")
	err = env.Ledger.Freeze(ctx, TestRoles.Mining, AccountA, pool.NativeAsset, QtyFromInt(100))
	require.Error(err, "Freeze - rejected")
	require.NoError(env.Ledger.Add(ctx, TestRoles.Mining, AccountA, ProtocolToken, QtyFromInt(5)), "Add")

	recv := func() *pool.Event {
		select {
		case ev := <-ch:
			return ev
		case <-time.After(recvTimeout):
			t.Fatalf("failed to receive event")
			return nil
		}
	}

	ev := recv()
	require.NotNil(ev.Deposit, "Deposit event")
	require.True(ev.Deposit.Account.Equal(AccountA), "Deposit event: account")
	require.Equal("40", ev.Deposit.Amount.String(), "Deposit event: amount")
	seq := ev.Seq

	ev = recv()
	require.NotNil(ev.Freeze, "Freeze event")
	require.Equal("10", ev.Freeze.Amount.String(), "Freeze event: amount")
	require.Equal(seq+1, ev.Seq, "Freeze event: seq")

	// The rejected freeze emits nothing.
	ev = recv()
	require.NotNil(ev.Add, "Add event")
	require.True(ev.Add.Mined, "Add event: mined")
	require.Equal(seq+2, ev.Seq, "Add event: seq")
}

func testStateToGenesis(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositNative(t, AccountA, 40)
	env.DepositToken(t, env.Token, AccountB, 7)
	require.NoError(env.Ledger.Freeze(ctx, TestRoles.Mining, AccountA, pool.NativeAsset, QtyFromInt(10)), "Freeze")
	require.NoError(env.Ledger.Add(ctx, TestRoles.Mining, AccountA, ProtocolToken, QtyFromInt(9)), "Add")
	require.NoError(env.Ledger.RegisterAsset(ctx, TestRoles.Governance, Token, NToken), "RegisterAsset")

	g, err := env.Ledger.StateToGenesis(ctx)
	require.NoError(err, "StateToGenesis")
	require.NoError(g.SanityCheck(), "SanityCheck")
	require.Len(g.Ledger, 2, "Ledger - nr accounts")
	require.Len(g.Assets, 1, "Assets - nr entries")
	require.Equal("9", g.MinedProtocolTokens.String(), "MinedProtocolTokens")

	native := g.Ledger[AccountA].Balance(pool.NativeAsset)
	require.Equal("30", native.Available.String(), "native available")
	require.Equal("10", native.Frozen.String(), "native frozen")
	require.Equal(TestRoles, g.Roles, "Roles")
}

func testConcurrentTransfers(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositToken(t, env.Token, AccountA, 1000)
	env.DepositToken(t, env.Token, AccountB, 1000)

	var wg sync.WaitGroup
	errCh := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := AccountA, AccountB
			if i%2 == 1 {
				from, to = to, from
			}
			for j := 0; j < 10; j++ {
				if err := env.Ledger.TransferInPool(ctx, TestRoles.Staking, Token, from, to, QtyFromInt(3)); err != nil {
					errCh <- err
					return
				}
				if err := env.Ledger.Freeze(ctx, TestRoles.Mining, from, Token, QtyFromInt(1)); err != nil {
					errCh <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(err, "concurrent operation")
	}

	// Symmetric transfers cancel out, each side froze 160.
	env.RequireBalance(t, AccountA, Token, 840, 160)
	env.RequireBalance(t, AccountB, Token, 840, 160)
}

// stallingContract holds every push out of custody until released.
type stallingContract struct {
	tokenAPI.Contract

	entered chan struct{}
	release chan struct{}
}

func (c *stallingContract) Transfer(ctx context.Context, from, to pool.Address, amount *quantity.Quantity) error {
	if from.Equal(pool.PoolAddress) {
		close(c.entered)
		<-c.release
	}
	return c.Contract.Transfer(ctx, from, to, amount)
}

func testReadsDuringExternalPush(t *testing.T, env *Env) {
	require := require.New(t)
	ctx := context.Background()

	env.DepositToken(t, env.Token, AccountA, 50)
	env.DepositNative(t, AccountB, 10)

	stalling := &stallingContract{
		Contract: env.Token,
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	gw, err := gateway.New(env.Ledger, env.Native, stalling)
	require.NoError(err, "gateway.New")

	withdrawCh := make(chan error, 1)
	go func() {
		withdrawCh <- gw.WithdrawToken(ctx, TestRoles.Mining, AccountA, Token, QtyFromInt(20))
	}()
	select {
	case <-stalling.entered:
	case <-time.After(recvTimeout):
		t.Fatalf("push never started")
	}

	readCh := make(chan error, 1)
	go func() {
		_, rerr := env.Ledger.BalanceOf(ctx, &pool.BalanceQuery{Owner: AccountB, Asset: pool.NativeAsset})
		readCh <- rerr
	}()
	select {
	case err = <-readCh:
		require.NoError(err, "BalanceOf - during push")
	case <-time.After(recvTimeout):
		close(stalling.release)
		t.Fatalf("BalanceOf stalled behind a pending push")
	}

	// The pending debit is not visible until it commits.
	env.RequireBalance(t, AccountB, pool.NativeAsset, 10, 0)
	env.RequireBalance(t, AccountA, Token, 50, 0)

	close(stalling.release)
	require.NoError(<-withdrawCh, "WithdrawToken")
	env.RequireBalance(t, AccountA, Token, 30, 0)
	requireExternal(t, env.Token, AccountA, 20)
}
