package api

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReserved(t *testing.T) {
	require := require.New(t)

	addr := NewAddress([]byte("test account"))
	require.True(addr.IsValid(), "test address should be valid")
	require.False(addr.IsReserved())

	require.True(PoolAddress.IsReserved(), "pool custody address is reserved")
	require.False(PoolAddress.IsValid(), "pool custody address can't be an account")
	require.True(MiningReserveAddress.IsValid(), "mining reserve is a regular account")

	require.Panics(func() { NewReservedAddress([]byte("pool custody")) },
		"reserving the same address twice should panic",
	)

	var zero Address
	require.False(zero.IsValid(), "zero address is invalid")
}

func TestAddressText(t *testing.T) {
	require := require.New(t)

	addr := NewAddress([]byte("text account"))
	text, err := addr.MarshalText()
	require.NoError(err, "MarshalText")
	require.True(bytes.HasPrefix(text, []byte("nest1")), "bech32 hrp")

	var dec Address
	require.NoError(dec.UnmarshalText(text), "UnmarshalText")
	require.Equal(addr, dec)
	require.Equal(string(text), addr.String())

	require.Error(dec.UnmarshalText([]byte("bc1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq")))
}

func TestAddressRawHex(t *testing.T) {
	require := require.New(t)

	var a Address
	err := a.UnmarshalText([]byte("0x5FbDB2315678afecb367f032d93F642f64180aa3"))
	require.NoError(err, "hex address")

	raw := a[1:]
	require.Len(raw, 20)
	require.EqualValues(0x5f, raw[0])

	b, err := NewAddressRaw(raw)
	require.NoError(err)
	require.Equal(a, b)

	require.Error(a.UnmarshalText([]byte("0x1234")), "short hex address")
	require.Error(a.UnmarshalText([]byte("0xzz")), "malformed hex")
}

func TestAssetID(t *testing.T) {
	require := require.New(t)

	require.True(NativeAsset.IsNative())
	require.True(NativeAsset.IsValid(), "native asset is usable despite being reserved")
	require.Equal("native", NativeAsset.String())

	var id AssetID
	require.NoError(id.UnmarshalText([]byte("NATIVE")))
	require.True(id.IsNative())

	token := AssetID(NewAddress([]byte("token")))
	require.False(token.IsNative())
	require.True(token.IsValid())

	text, err := token.MarshalText()
	require.NoError(err)
	require.NoError(id.UnmarshalText(text))
	require.Equal(token, id)
}

func TestAccountJSON(t *testing.T) {
	require := require.New(t)

	token := AssetID(NewAddress([]byte("json token")))
	var acct Account
	acct.Balances = map[AssetID]*Balance{
		NativeAsset: {},
		token:       {},
	}
	require.NoError(acct.Balances[token].Available.FromUint64(40))
	require.NoError(acct.Balances[token].Frozen.FromUint64(2))

	data, err := json.Marshal(&acct)
	require.NoError(err)

	var dec Account
	require.NoError(json.Unmarshal(data, &dec))
	require.Equal(0, dec.Balance(token).Available.Cmp(&acct.Balances[token].Available))
	require.True(dec.Balance(NativeAsset).IsZero())

	missing := AssetID(NewAddress([]byte("missing token")))
	require.True(dec.Balance(missing).IsZero(), "missing balance reads as zero")

	total, err := dec.Balance(token).Total()
	require.NoError(err)
	require.Equal("42", total.String())
}
