package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
)

func testGenesis() *Genesis {
	protocolToken := AssetID(NewAddress([]byte("sanity: protocol token")))
	usdt := AssetID(NewAddress([]byte("sanity: usdt")))
	nusdt := AssetID(NewAddress([]byte("sanity: nusdt")))
	alice := NewAddress([]byte("sanity: alice"))

	bal := &Balance{}
	_ = bal.Available.FromUint64(100)

	return &Genesis{
		Parameters: Parameters{ProtocolToken: protocolToken},
		Roles: Roles{
			Mining:     NewAddress([]byte("sanity: mining")),
			Governance: NewAddress([]byte("sanity: governance")),
		},
		Assets: []*AssetEntry{
			{Asset: usdt, Derivative: nusdt},
		},
		Ledger: map[Address]*Account{
			alice: {Balances: map[AssetID]*Balance{NativeAsset: bal}},
		},
	}
}

func TestGenesisSanityCheck(t *testing.T) {
	require := require.New(t)

	g := testGenesis()
	require.NoError(g.SanityCheck(), "valid genesis")

	g = testGenesis()
	g.Parameters.ProtocolToken = NativeAsset
	require.Error(g.SanityCheck(), "native protocol token")

	g = testGenesis()
	g.Roles.Governance = Address{}
	require.Error(g.SanityCheck(), "unbound governance")

	g = testGenesis()
	g.Roles.Staking = PoolAddress
	require.Error(g.SanityCheck(), "reserved role identity")

	g = testGenesis()
	g.Assets = append(g.Assets, &AssetEntry{Asset: g.Assets[0].Asset, Derivative: g.Assets[0].Derivative})
	require.Error(g.SanityCheck(), "duplicate asset")

	g = testGenesis()
	g.Ledger[PoolAddress] = &Account{}
	require.Error(g.SanityCheck(), "pool custody can't hold an account")
}

func TestSanityCheckAccountTotals(t *testing.T) {
	require := require.New(t)

	token := AssetID(NewAddress([]byte("sanity: totals token")))
	totals := make(map[AssetID]*quantity.Quantity)

	for _, name := range []string{"a", "b"} {
		bal := &Balance{}
		require.NoError(bal.Available.FromUint64(30))
		require.NoError(bal.Frozen.FromUint64(10))
		acct := &Account{Balances: map[AssetID]*Balance{token: bal}}
		require.NoError(SanityCheckAccount(totals, NewAddress([]byte("sanity: totals "+name)), acct))
	}
	require.Equal("80", totals[token].String())

	over := &Balance{}
	require.NoError(over.Available.FromBigInt(quantity.MaxQuantity.ToBigInt()))
	require.NoError(over.Frozen.FromUint64(1))
	acct := &Account{Balances: map[AssetID]*Balance{token: over}}
	require.Error(SanityCheckAccount(totals, NewAddress([]byte("sanity: totals over")), acct),
		"available + frozen beyond the bound")
}
