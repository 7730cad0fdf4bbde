package quantity

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/cbor"
)

func fromInt(n int) *Quantity {
	q := NewQuantity()
	q.inner.SetInt64(int64(n))
	return q
}

func (q *Quantity) eqInt(n int) bool {
	nq := fromInt(n)
	return q.Cmp(nq) == 0
}

func TestQuantityCtors(t *testing.T) {
	require := require.New(t)

	q := NewQuantity()
	require.NotNil(q, "NewQuantity")
	require.True(q.eqInt(0), "New value")

	q = fromInt(23)
	nq := q.Clone()
	_ = q.FromBigInt(big.NewInt(666))
	require.True(nq.eqInt(23), "Clone value")

	require.True(NewFromUint64(46).eqInt(46), "NewFromUint64")
}

func TestFromBigInt(t *testing.T) {
	require := require.New(t)

	var q Quantity
	err := q.FromBigInt(nil)
	require.Equal(ErrInvalidQuantity, err, "FromBigInt(nil)")

	err = q.FromBigInt(big.NewInt(-1))
	require.Equal(ErrInvalidQuantity, err, "FromBigInt(-1)")

	tooBig := new(big.Int).Lsh(big.NewInt(1), Bits)
	err = q.FromBigInt(tooBig)
	require.Equal(ErrInvalidQuantity, err, "FromBigInt(2^256)")

	err = q.FromBigInt(big.NewInt(23))
	require.NoError(err, "FromBigInt(23)")
	require.True(q.eqInt(23), "FromBigInt(23) value")

	err = q.FromInt64(-5)
	require.Equal(ErrInvalidQuantity, err, "FromInt64(-5)")
}

func TestQuantityCBORRoundTrip(t *testing.T) {
	require := require.New(t)

	for _, tc := range []struct {
		value  uint64
		rawHex string
	}{
		{0, "40"},
		{1, "4101"},
		{1000, "4203e8"},
		{18446744073709551615, "48ffffffffffffffff"},
	} {
		raw, err := hex.DecodeString(tc.rawHex)
		require.NoError(err, "DecodeString(%s)", tc.rawHex)

		q := NewFromUint64(tc.value)
		enc := cbor.Marshal(q)
		require.EqualValues(raw, enc, "serialization should match")

		var dec Quantity
		err = cbor.Unmarshal(enc, &dec)
		require.NoError(err, "deserialization should succeed")
		require.Zero(dec.Cmp(q), "serialization should round-trip")
	}
}

func TestQuantityText(t *testing.T) {
	require := require.New(t)

	raw, err := json.Marshal(NewFromUint64(40))
	require.NoError(err, "json.Marshal")
	require.Equal(`"40"`, string(raw))

	var q Quantity
	require.NoError(json.Unmarshal([]byte(`"123456789012345678901234567890"`), &q))
	require.Equal("123456789012345678901234567890", q.String())

	require.Error(json.Unmarshal([]byte(`"-1"`), &q), "negative text")
	require.Error(json.Unmarshal([]byte(`"abc"`), &q), "malformed text")
}

func TestQuantityAdd(t *testing.T) {
	require := require.New(t)

	q := fromInt(100)

	err := q.Add(nil)
	require.Equal(ErrInvalidQuantity, err, "Add(nil)")

	err = q.Add(fromInt(-1))
	require.Equal(ErrInvalidQuantity, err, "Add(-1)")

	err = q.Add(fromInt(200))
	require.NoError(err, "Add")
	require.True(q.eqInt(300), "Add(200) value")

	max := MaxQuantity.Clone()
	err = max.Add(fromInt(1))
	require.Equal(ErrOverflow, err, "Add past MaxQuantity")
	require.Zero(max.Cmp(MaxQuantity), "overflowed Add leaves receiver unchanged")

	err = max.Add(fromInt(0))
	require.NoError(err, "Add(0) at MaxQuantity")
}

func TestQuantitySub(t *testing.T) {
	require := require.New(t)

	q := fromInt(100)

	err := q.Sub(nil)
	require.Equal(ErrInvalidQuantity, err, "Sub(nil)")

	err = q.Sub(fromInt(200))
	require.Equal(ErrInsufficientBalance, err, "Sub(200)")
	require.True(q.eqInt(100), "failed Sub leaves receiver unchanged")

	err = q.Sub(fromInt(23))
	require.NoError(err, "Sub")
	require.True(q.eqInt(77), "Sub(23) value")
}

func TestQuantitySubUpTo(t *testing.T) {
	require := require.New(t)

	q := fromInt(100)

	_, err := q.SubUpTo(nil)
	require.Equal(ErrInvalidQuantity, err, "SubUpTo(nil)")

	n, err := q.SubUpTo(fromInt(23))
	require.NoError(err, "SubUpTo")
	require.True(q.eqInt(77), "SubUpTo(23) value")
	require.True(n.eqInt(23), "SubUpTo(23) subtracted")

	n, err = q.SubUpTo(fromInt(9000))
	require.NoError(err, "SubUpTo(9000)")
	require.True(q.eqInt(0), "SubUpTo(9000) value")
	require.True(n.eqInt(77), "SubUpTo(9000) subtracted")
}

func TestMove(t *testing.T) {
	require := require.New(t)

	err := Move(nil, fromInt(100), fromInt(25))
	require.Equal(ErrInvalidAccount, err, "Move(nil, 100, 25)")
	err = Move(fromInt(50), fromInt(100), nil)
	require.Equal(ErrInvalidQuantity, err, "Move(50, 100, nil)")

	dst, src := fromInt(100), fromInt(300)
	err = Move(dst, src, fromInt(9000))
	require.Equal(ErrInsufficientBalance, err, "Move(100, 300, 9000)")
	require.True(dst.eqInt(100) && src.eqInt(300), "Move(fail) - dst/src unchanged")

	err = Move(dst, src, fromInt(75))
	require.NoError(err, "Move")
	require.True(dst.eqInt(175), "Move - dst value")
	require.True(src.eqInt(225), "Move - src value")

	full := MaxQuantity.Clone()
	err = Move(full, src, fromInt(1))
	require.Equal(ErrOverflow, err, "Move into a full destination")
	require.True(src.eqInt(225), "Move(overflow) - src unchanged")
}
