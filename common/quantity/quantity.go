// Package quantity implements a bounded fixed-precision unsigned amount.
//
// Quantities never go negative and never exceed MaxQuantity (2^256-1): an
// operation that would leave the valid range fails and leaves the receiver
// untouched.
package quantity

import (
	"encoding"
	"errors"
	"fmt"
	"math/big"
)

// Bits is the width of the representable range.
const Bits = 256

var (
	// ErrInvalidQuantity is the error returned on an invalid quantity.
	ErrInvalidQuantity = errors.New("quantity: invalid quantity")

	// ErrInsufficientBalance is the error returned when a subtraction would
	// go below zero.
	ErrInsufficientBalance = errors.New("quantity: insufficient balance")

	// ErrOverflow is the error returned when an addition would exceed
	// MaxQuantity.
	ErrOverflow = errors.New("quantity: arithmetic overflow")

	// ErrInvalidAccount is the error returned when a move source or
	// destination is missing.
	ErrInvalidAccount = errors.New("quantity: invalid account")

	// MaxQuantity is the largest representable quantity.
	MaxQuantity = func() *Quantity {
		var q Quantity
		q.inner.Lsh(big.NewInt(1), Bits)
		q.inner.Sub(&q.inner, big.NewInt(1))
		return &q
	}()

	_ encoding.BinaryMarshaler   = (*Quantity)(nil)
	_ encoding.BinaryUnmarshaler = (*Quantity)(nil)
	_ encoding.TextMarshaler     = Quantity{}
	_ encoding.TextUnmarshaler   = (*Quantity)(nil)

	zero big.Int
)

// Quantity is a bounded unsigned integer amount.
type Quantity struct {
	inner big.Int
}

// Clone copies a Quantity.
func (q *Quantity) Clone() *Quantity {
	tmp := NewQuantity()
	tmp.inner.Set(&q.inner)
	return tmp
}

// MarshalBinary encodes a Quantity into big-endian binary form.
func (q *Quantity) MarshalBinary() ([]byte, error) {
	return append([]byte{}, q.inner.Bytes()...), nil
}

// UnmarshalBinary decodes a big-endian byte slice into a Quantity.
func (q *Quantity) UnmarshalBinary(data []byte) error {
	if len(data) > Bits/8 {
		return ErrInvalidQuantity
	}

	var tmp big.Int
	tmp.SetBytes(data)
	q.inner.Set(&tmp)

	return nil
}

// MarshalText encodes a Quantity into a base-10 string.
func (q Quantity) MarshalText() ([]byte, error) {
	return q.inner.MarshalText()
}

// UnmarshalText decodes a base-10 string into a Quantity.
func (q *Quantity) UnmarshalText(text []byte) error {
	var tmp big.Int
	if err := tmp.UnmarshalText(text); err != nil {
		return fmt.Errorf("quantity: malformed text: %w", err)
	}

	return q.FromBigInt(&tmp)
}

// FromBigInt converts from a big.Int to a Quantity.
func (q *Quantity) FromBigInt(n *big.Int) error {
	if n == nil || !isValid(n) {
		return ErrInvalidQuantity
	}

	q.inner.Set(n)

	return nil
}

// FromInt64 converts from an int64 to a Quantity.
func (q *Quantity) FromInt64(n int64) error {
	return q.FromBigInt(big.NewInt(n))
}

// FromUint64 converts from an uint64 to a Quantity.
func (q *Quantity) FromUint64(n uint64) error {
	q.inner.SetUint64(n)
	return nil
}

// ToBigInt converts from a Quantity to a big.Int.
func (q *Quantity) ToBigInt() *big.Int {
	var tmp big.Int
	tmp.Set(&q.inner)

	return &tmp
}

// Add adds n to q. On ErrOverflow q is left unchanged.
func (q *Quantity) Add(n *Quantity) error {
	if n == nil || !n.IsValid() {
		return ErrInvalidQuantity
	}

	var tmp big.Int
	tmp.Add(&q.inner, &n.inner)
	if !isValid(&tmp) {
		return ErrOverflow
	}
	q.inner.Set(&tmp)

	return nil
}

// Sub subtracts exactly n from q, returning ErrInsufficientBalance if q < n.
func (q *Quantity) Sub(n *Quantity) error {
	if n == nil || !n.IsValid() {
		return ErrInvalidQuantity
	}
	if q.inner.Cmp(&n.inner) == -1 {
		return ErrInsufficientBalance
	}

	q.inner.Sub(&q.inner, &n.inner)

	return nil
}

// SubUpTo subtracts up to n from q, and returns the amount subtracted.
func (q *Quantity) SubUpTo(n *Quantity) (*Quantity, error) {
	if n == nil || !n.IsValid() {
		return nil, ErrInvalidQuantity
	}

	var amount big.Int
	switch q.Cmp(n) {
	case -1:
		amount.Set(&q.inner)
	default:
		amount.Set(&n.inner)
	}

	q.inner.Sub(&q.inner, &amount)

	return &Quantity{inner: amount}, nil
}

// Cmp returns -1 if q < n, 0 if q == n, and 1 if q > n.
func (q *Quantity) Cmp(n *Quantity) int {
	return q.inner.Cmp(&n.inner)
}

// IsZero returns true iff the quantity is zero.
func (q *Quantity) IsZero() bool {
	return q.inner.CmpAbs(&zero) == 0
}

// String returns the base-10 representation of q.
func (q Quantity) String() string {
	return q.inner.String()
}

// IsValid returns true iff the quantity is in the valid range.
func (q *Quantity) IsValid() bool {
	return isValid(&q.inner)
}

// NewQuantity creates a new Quantity, initialized to zero.
func NewQuantity() (q *Quantity) {
	return &Quantity{}
}

// NewFromUint64 creates a new Quantity from an uint64.
func NewFromUint64(n uint64) *Quantity {
	q := NewQuantity()
	_ = q.FromUint64(n)
	return q
}

// Move moves exactly n from src to dst. On failures neither src nor dst
// are altered.
func Move(dst, src, n *Quantity) error {
	if dst == nil || src == nil {
		return ErrInvalidAccount
	}
	if n == nil || !n.IsValid() {
		return ErrInvalidQuantity
	}
	if src.Cmp(n) < 0 {
		return ErrInsufficientBalance
	}

	// Check the destination first so a failed credit never debits src.
	check := dst.Clone()
	if err := check.Add(n); err != nil {
		return err
	}
	_ = src.Sub(n)
	dst.inner.Set(&check.inner)

	return nil
}

func isValid(n *big.Int) bool {
	return n.Sign() >= 0 && n.BitLen() <= Bits
}
