package address

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContext(t *testing.T) {
	require := require.New(t)

	var ctx1V0, ctx1V1, ctx2V0 Context
	require.NotPanics(func() { ctx1V0 = NewContext("test: dummy context 1", 0) },
		"registering a new context should not panic")
	require.NotPanics(func() { ctx2V0 = NewContext("test: dummy context 2", 0) },
		"registering a new context should not panic")
	require.NotPanics(func() { ctx1V1 = NewContext("test: dummy context 1", 1) },
		"same identifier with a different version should not panic")

	require.Panics(func() { NewContext("test: dummy context 1", 0) },
		"registering the same context twice should panic")
	require.Panics(func() { NewContext(strings.Repeat("a", 65), 0) },
		"registering a context with a too long identifier should panic")
	require.Panics(func() { NewContext("", 0) },
		"registering an empty context should panic")

	data := []byte("address data")

	unregCtx := Context{"test: unregistered", 0}
	require.Panics(func() { NewAddress(unregCtx, data) },
		"creating an address with an unregistered context should panic")

	addr1 := NewAddress(ctx1V0, data)
	addr2 := NewAddress(ctx2V0, data)
	require.NotEqual(addr1, addr2, "addresses for different contexts should differ")
	require.Equal(addr1, NewAddress(ctx1V0, data), "derivation is deterministic")

	addr3 := NewAddress(ctx1V1, data)
	require.NotEqual(addr1, addr3, "addresses for different context versions should differ")
	require.EqualValues(1, addr3.Version())
}

func TestRawAddress(t *testing.T) {
	require := require.New(t)

	ctx := NewContext("test: raw context", 7)
	raw := bytes.Repeat([]byte{0xab}, RawSize)

	addr, err := NewRawAddress(ctx, raw)
	require.NoError(err, "NewRawAddress")
	require.EqualValues(7, addr.Version())
	require.Equal(raw, addr.Raw())
	require.False(addr.IsZero())

	_, err = NewRawAddress(ctx, raw[:5])
	require.Equal(ErrMalformed, err, "short raw identifier")

	var zero Address
	require.True(zero.IsZero())
}

func TestBech32HRP(t *testing.T) {
	require := require.New(t)

	var hrp1, hrp2 Bech32HRP
	require.NotPanics(func() { hrp1 = NewBech32HRP("test-dummy-hrp1") })
	require.NotPanics(func() { hrp2 = NewBech32HRP("test-dummy-hrp2") })

	require.Panics(func() { NewBech32HRP("test-dummy-hrp1") },
		"registering the same hrp twice should panic")
	require.Panics(func() { NewBech32HRP(strings.Repeat("a", 20)) },
		"registering a hrp that is too long should panic")

	var addr, decodedAddr Address
	err := addr.UnmarshalBinary([]byte("test address (len=21)"))
	require.NoError(err, "unmarshaling address should work")

	unregHRP := Bech32HRP("test-unregistered-hrp")
	require.Panics(func() { _, _ = addr.MarshalBech32(unregHRP) })
	require.Panics(func() { _ = addr.UnmarshalBech32(unregHRP, []byte("bech encoded test address")) })

	for _, hrp := range []Bech32HRP{hrp1, hrp2} {
		addrBech32, err := addr.MarshalBech32(hrp)
		require.NoError(err, "encoding to Bech32 with registered hrp should work")
		err = decodedAddr.UnmarshalBech32(hrp, addrBech32)
		require.NoError(err, "decoding from Bech32 with registered hrp should work")
		require.Equal(addr, decodedAddr, "decoded address should match")
	}

	enc1, err := addr.MarshalBech32(hrp1)
	require.NoError(err)
	require.Error(decodedAddr.UnmarshalBech32(hrp2, enc1), "mismatched hrp should fail")
}
