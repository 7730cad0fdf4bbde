package keyformat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/crypto/address"
)

func TestKeyFormat(t *testing.T) {
	require := require.New(t)

	ctx := address.NewContext("keyformat-test: address", 0)
	addr, err := address.NewRawAddress(ctx, bytes.Repeat([]byte{0x42}, address.RawSize))
	require.NoError(err)

	fmt := New(0x51, &address.Address{}, uint8(0), uint64(0))
	require.Equal(1+address.Size+1+8, fmt.Size())
	require.EqualValues(0x51, fmt.Prefix())

	key := fmt.Encode(&addr, uint8(2), uint64(7))
	require.Len(key, fmt.Size())

	var (
		decAddr address.Address
		decKind uint8
		decSeq  uint64
	)
	require.True(fmt.Decode(key, &decAddr, &decKind, &decSeq))
	require.Equal(addr, decAddr)
	require.EqualValues(2, decKind)
	require.EqualValues(7, decSeq)

	prefix := fmt.Encode(&addr)
	require.True(bytes.HasPrefix(key, prefix), "partial encode yields a prefix")

	other := New(0x52, uint64(0))
	require.False(other.Decode(key, &decSeq), "prefix mismatch")
}

func TestVariableSize(t *testing.T) {
	require := require.New(t)

	fmt := New(0x01, uint64(0), []byte{})
	key := fmt.Encode(uint64(1), []byte("hello"))

	var (
		n    uint64
		tail []byte
	)
	require.True(fmt.Decode(key, &n, &tail))
	require.EqualValues(1, n)
	require.Equal([]byte("hello"), tail)

	require.Panics(func() { New(0x02, []byte{}, []byte{}) }, "two variable elements")
}

func TestUint64Ordering(t *testing.T) {
	require := require.New(t)

	fmt := New(0x03, uint64(0))
	require.Equal(-1, bytes.Compare(fmt.Encode(uint64(255)), fmt.Encode(uint64(256))))
}
