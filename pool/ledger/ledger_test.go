package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/accessctl"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/crypto/address"
	cmnGrpc "github.com/MLY0813/NEST-Oracle-V3.5/common/grpc"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/memory"
)

var (
	testProtocolToken = pool.AssetID(pool.NewAddress([]byte("ledger test: nest")))
	testToken         = pool.AssetID(pool.NewAddress([]byte("ledger test: token")))
	testNToken        = pool.AssetID(pool.NewAddress([]byte("ledger test: ntoken")))

	testRoles = pool.Roles{
		Mining:       pool.NewAddress([]byte("ledger test: mining")),
		Staking:      pool.NewAddress([]byte("ledger test: staking")),
		NNRewardPool: pool.NewAddress([]byte("ledger test: nn reward pool")),
		Governance:   pool.NewAddress([]byte("ledger test: governance")),
	}

	testAccount = pool.NewAddress([]byte("ledger test: account"))
)

func testGenesis() *pool.Genesis {
	return &pool.Genesis{
		Parameters: pool.Parameters{ProtocolToken: testProtocolToken},
		Roles:      testRoles,
		Assets: []*pool.AssetEntry{
			{Asset: testToken, Derivative: testNToken},
		},
		Ledger: map[pool.Address]*pool.Account{
			testAccount: {
				Balances: map[pool.AssetID]*pool.Balance{
					pool.NativeAsset: {
						Available: *quantity.NewFromUint64(40),
					},
				},
			},
		},
		MinedProtocolTokens: *quantity.NewFromUint64(7),
	}
}

func newTestLedger(t *testing.T) *Ledger {
	store := memory.New()
	t.Cleanup(store.Close)

	l, err := New(context.Background(), store, testGenesis())
	require.NoError(t, err, "New")
	return l
}

func TestNew(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := memory.New()
	defer store.Close()

	_, err := New(ctx, store, nil)
	require.ErrorIs(err, pool.ErrInvalidArgument, "New - no genesis")

	bad := testGenesis()
	bad.Roles.Governance = pool.Address{}
	_, err = New(ctx, store, bad)
	require.ErrorIs(err, pool.ErrInvalidArgument, "New - invalid genesis")

	l, err := New(ctx, store, testGenesis())
	require.NoError(err, "New")

	bal, err := l.BalanceOf(ctx, &pool.BalanceQuery{Owner: testAccount, Asset: pool.NativeAsset})
	require.NoError(err, "BalanceOf")
	require.Equal("40", bal.String())
	mined, err := l.MinedProtocolTokens(ctx)
	require.NoError(err, "MinedProtocolTokens")
	require.Equal("7", mined.String())

	// A second genesis is ignored.
	other := testGenesis()
	other.MinedProtocolTokens = *quantity.NewFromUint64(1000)
	l, err = New(ctx, store, other)
	require.NoError(err, "New - initialized")
	mined, err = l.MinedProtocolTokens(ctx)
	require.NoError(err, "MinedProtocolTokens")
	require.Equal("7", mined.String())

	g, err := l.StateToGenesis(ctx)
	require.NoError(err, "StateToGenesis")
	require.Equal(testGenesis().Roles, g.Roles)
	require.Len(g.Assets, 1)
}

func TestPolicy(t *testing.T) {
	require := require.New(t)

	policy := NewPolicy(&testRoles)
	subject := func(addr pool.Address) accessctl.Subject {
		return accessctl.SubjectFromAddress(address.Address(addr))
	}

	for act, roles := range actionRoles {
		require.NotEmpty(RolesFor(act), "RolesFor(%s)", act)
		for _, role := range roles {
			id := testRoles.Identity(role)
			if !id.IsValid() {
				continue
			}
			require.True(policy.IsAllowed(subject(id), act), "%s may %s", role, act)
		}
	}

	require.True(policy.IsAllowed(subject(testRoles.Mining), ActionFreeze))
	require.False(policy.IsAllowed(subject(testRoles.Staking), ActionFreeze))
	require.True(policy.IsAllowed(subject(testRoles.Staking), ActionTransferInPool))
	require.True(policy.IsAllowed(subject(testRoles.NNRewardPool), ActionAdd))
	require.False(policy.IsAllowed(subject(testRoles.Staking), ActionAdd))
	require.True(policy.IsAllowed(subject(testRoles.Governance), ActionRegisterAsset))
	require.False(policy.IsAllowed(subject(testRoles.Mining), ActionRegisterAsset))

	// Unbound roles grant nothing, not even to the zero address.
	require.False(policy.IsAllowed(subject(pool.Address{}), ActionFreeze))
}

func TestCheckRole(t *testing.T) {
	require := require.New(t)
	l := newTestLedger(t)

	require.NoError(l.CheckRole(testRoles.Mining, ActionFreeze))
	require.ErrorIs(l.CheckRole(testAccount, ActionFreeze), pool.ErrUnauthorized)
	require.ErrorIs(l.CheckRole(pool.Address{}, ActionFreeze), pool.ErrUnauthorized)
	require.ErrorIs(l.CheckRole(pool.PoolAddress, ActionFreeze), pool.ErrUnauthorized)
}

func TestApplyRollback(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := newTestLedger(t)

	ch, sub, err := l.WatchEvents(ctx)
	require.NoError(err, "WatchEvents")
	defer sub.Close()

	errAbort := fmt.Errorf("abort")
	err = l.Apply(ctx, testRoles.Mining, ActionFreeze, func(tx *Tx) error {
		if err := tx.Freeze(testAccount, pool.NativeAsset, quantity.NewFromUint64(40)); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(err, errAbort, "Apply")

	bal, err := l.BalanceOf(ctx, &pool.BalanceQuery{Owner: testAccount, Asset: pool.NativeAsset})
	require.NoError(err, "BalanceOf")
	require.Equal("40", bal.String(), "rolled back")

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

func TestSetRolesDisabled(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := newTestLedger(t)

	roles := testRoles
	roles.Mining = testAccount
	err := l.SetRoles(ctx, testRoles.Governance, &roles)
	require.ErrorIs(err, pool.ErrUnauthorized, "SetRoles - updates disabled")
	require.NoError(l.CheckRole(testRoles.Mining, ActionFreeze), "policy unchanged")
}

func TestTxArguments(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := newTestLedger(t)
	mining := testRoles.Mining

	err := l.Freeze(ctx, mining, pool.Address{}, pool.NativeAsset, quantity.NewFromUint64(1))
	require.ErrorIs(err, pool.ErrInvalidArgument, "Freeze - zero account")
	err = l.Freeze(ctx, mining, pool.PoolAddress, pool.NativeAsset, quantity.NewFromUint64(1))
	require.ErrorIs(err, pool.ErrInvalidArgument, "Freeze - reserved account")
	err = l.Freeze(ctx, mining, testAccount, pool.AssetID{}, quantity.NewFromUint64(1))
	require.ErrorIs(err, pool.ErrInvalidArgument, "Freeze - zero asset")
	err = l.Freeze(ctx, mining, testAccount, pool.NativeAsset, nil)
	require.ErrorIs(err, pool.ErrInvalidArgument, "Freeze - nil amount")
	err = l.TransferInPool(ctx, mining, pool.NativeAsset, testAccount, pool.PoolAddress, quantity.NewFromUint64(1))
	require.ErrorIs(err, pool.ErrInvalidArgument, "TransferInPool - reserved destination")
}

func TestGrpcService(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := newTestLedger(t)

	server, err := cmnGrpc.NewServer(&cmnGrpc.ServerConfig{
		Name:    "pool-test",
		Address: "127.0.0.1:0",
	})
	require.NoError(err, "NewServer")
	pool.RegisterService(server.Server(), l)
	require.NoError(server.Start(), "Start")
	defer func() {
		server.Stop()
		server.Cleanup()
	}()

	conn, err := cmnGrpc.Dial(server.Addr().String())
	require.NoError(err, "Dial")
	defer conn.Close()
	client := pool.NewPoolClient(conn)

	bal, err := client.BalanceOf(ctx, &pool.BalanceQuery{Owner: testAccount, Asset: pool.NativeAsset})
	require.NoError(err, "BalanceOf")
	require.Equal("40", bal.String())

	frozen, err := client.FrozenBalanceOf(ctx, &pool.BalanceQuery{Owner: testAccount, Asset: pool.NativeAsset})
	require.NoError(err, "FrozenBalanceOf")
	require.True(frozen.IsZero())

	mined, err := client.MinedProtocolTokens(ctx)
	require.NoError(err, "MinedProtocolTokens")
	require.Equal("7", mined.String())

	derivative, err := client.ResolveDerivative(ctx, &pool.DerivativeQuery{Asset: testToken})
	require.NoError(err, "ResolveDerivative")
	require.True(derivative.Equal(testNToken))

	// Coded errors cross the wire intact.
	_, err = client.ResolveDerivative(ctx, &pool.DerivativeQuery{Asset: testNToken})
	require.ErrorIs(err, pool.ErrNotFound, "ResolveDerivative - unregistered")

	roles, err := client.Roles(ctx)
	require.NoError(err, "Roles")
	require.Equal(testRoles, *roles)

	accounts, err := client.Accounts(ctx)
	require.NoError(err, "Accounts")
	require.Equal([]pool.Address{testAccount}, accounts)

	acct, err := client.Account(ctx, &pool.OwnerQuery{Owner: testAccount})
	require.NoError(err, "Account")
	require.Equal("40", acct.Balance(pool.NativeAsset).Available.String())

	// Events are streamed.
	ch, sub, err := client.WatchEvents(ctx)
	require.NoError(err, "WatchEvents")
	defer sub.Close()

	// The stream is established asynchronously, retry until an event
	// arrives.
	for i := 0; ; i++ {
		require.NoError(l.Freeze(ctx, testRoles.Mining, testAccount, pool.NativeAsset, quantity.NewFromUint64(1)), "Freeze")
		select {
		case ev := <-ch:
			require.NotNil(ev.Freeze, "Freeze event")
			require.True(ev.Freeze.Account.Equal(testAccount))
			return
		case <-time.After(100 * time.Millisecond):
			require.Less(i, 20, "failed to receive event")
		}
	}
}

func TestWatchEventsClose(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l := newTestLedger(t)

	for i := 0; i < 10; i++ {
		ch, sub, err := l.WatchEvents(ctx)
		require.NoError(err, "WatchEvents")

		require.NoError(l.Freeze(ctx, testRoles.Mining, testAccount, pool.NativeAsset, quantity.NewFromUint64(1)), "Freeze")
		require.NoError(l.Unfreeze(ctx, testRoles.Mining, testAccount, pool.NativeAsset, quantity.NewFromUint64(1)), "Unfreeze")
		sub.Close()

		// The watcher left without reading, the channel must still close.
		deadline := time.After(5 * time.Second)
	drain:
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					break drain
				}
			case <-deadline:
				t.Fatalf("event channel not closed after Close")
			}
		}
	}
}
