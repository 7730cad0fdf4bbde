// Package address implements versioned, context-separated account and asset
// identities.
//
// An address is one version byte followed by 20 bytes. Addresses minted
// from arbitrary identity data carry a truncated hash of the registered
// context and the data; addresses of external contracts carry the raw
// 20-byte contract identifier.
package address

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"sync"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/crypto/hash"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/encoding/bech32"
)

const (
	// VersionSize is the size of address' version.
	VersionSize = 1
	// RawSize is the size of the address body.
	RawSize = 20
	// Size is the size of the whole address.
	Size = VersionSize + RawSize

	// ContextIdentifierMaxSize is the maximum size of a context's identifier string.
	ContextIdentifierMaxSize = 64
	// Bech32HRPMaxSize is the maximum size of a human readable part of Bech32
	// encoded addresses.
	Bech32HRPMaxSize = 15
)

var (
	// ErrMalformed is the error returned when an address is malformed.
	ErrMalformed = errors.New("address: malformed address")
	// ErrMalformedContext is the error returned when an address context is malformed.
	ErrMalformedContext = errors.New("address: malformed context")
	// ErrMalformedBech32HRP is the error returned when a Bech32 HRP is malformed.
	ErrMalformedBech32HRP = errors.New("address: malformed Bech32 human readable part")

	registeredContexts   sync.Map
	registeredBech32HRPs sync.Map

	_ encoding.BinaryMarshaler   = Address{}
	_ encoding.BinaryUnmarshaler = (*Address)(nil)
)

// Context is a domain separation context for addresses.
type Context struct {
	// Identifier is the context's identifier string.
	Identifier string
	// Version is the context's version, stored as the address' first byte.
	Version uint8
}

// MarshalBinary encodes a context into binary form.
func (c Context) MarshalBinary() (data []byte, err error) {
	data = append([]byte(c.Identifier), c.Version)
	return
}

// String returns a string representation of address' context.
func (c Context) String() string {
	return fmt.Sprintf("Context(Identifier: '%s', Version: %d)", c.Identifier, c.Version)
}

// NewContext creates and registers a new context. This panics if the context
// is malformed or already registered.
func NewContext(identifier string, version uint8) Context {
	if l := len(identifier); l == 0 || l > ContextIdentifierMaxSize {
		panic(ErrMalformedContext)
	}

	ctx := Context{identifier, version}
	if _, loaded := registeredContexts.LoadOrStore(ctx, true); loaded {
		panic(fmt.Sprintf("address: context %s is already registered", ctx))
	}

	return ctx
}

// Bech32HRP is the human readable part (HRP) of Bech32 encoded addresses.
type Bech32HRP string

// String returns the string representation of a HRP.
func (hrp Bech32HRP) String() string {
	return string(hrp)
}

// NewBech32HRP creates and registers a new human readable part. This panics
// if the HRP is malformed or already registered.
func NewBech32HRP(raw string) Bech32HRP {
	if l := len(raw); l == 0 || l > Bech32HRPMaxSize {
		panic(ErrMalformedBech32HRP)
	}

	hrp := Bech32HRP(raw)
	if _, loaded := registeredBech32HRPs.LoadOrStore(hrp, true); loaded {
		panic(fmt.Sprintf("address: Bech32 human readable part '%s' is already registered", hrp))
	}

	return hrp
}

// Address is a versioned 20-byte identity.
type Address [Size]byte

// MarshalBinary encodes an address into binary form.
func (a Address) MarshalBinary() (data []byte, err error) {
	data = append([]byte{}, a[:]...)
	return
}

// UnmarshalBinary decodes a binary marshaled address.
func (a *Address) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return ErrMalformed
	}

	copy(a[:], data)

	return nil
}

// MarshalBech32 encodes an address into Bech32-encoded text form.
func (a Address) MarshalBech32(hrp Bech32HRP) ([]byte, error) {
	mustBeRegisteredHRP(hrp)

	bech32Addr, err := bech32.Encode(hrp.String(), a[:])
	if err != nil {
		return nil, fmt.Errorf("address: encoding to bech32 failed: %w", err)
	}
	return []byte(bech32Addr), nil
}

// UnmarshalBech32 decodes a Bech32-encoded text marshaled address.
func (a *Address) UnmarshalBech32(hrp Bech32HRP, bech []byte) error {
	mustBeRegisteredHRP(hrp)

	decodedHrp, decoded, err := bech32.Decode(string(bech))
	if err != nil {
		return fmt.Errorf("address: decoding from bech32 failed: %w", err)
	}
	if decodedHrp != hrp.String() {
		return fmt.Errorf("address: incorrect bech32 human readable part: %s (expected: %s)",
			decodedHrp, hrp,
		)
	}

	return a.UnmarshalBinary(decoded)
}

// Version returns the address' version byte.
func (a Address) Version() uint8 {
	return a[0]
}

// Raw returns the 20-byte address body.
func (a Address) Raw() []byte {
	return append([]byte{}, a[VersionSize:]...)
}

// Equal compares vs another address for equality.
func (a Address) Equal(cmp Address) bool {
	return bytes.Equal(a[:], cmp[:])
}

// IsZero returns true iff every byte of the address is zero.
func (a Address) IsZero() bool {
	return a == Address{}
}

// NewAddress derives an address from the registered context and the identity
// data.
func NewAddress(ctx Context, data []byte) (a Address) {
	mustBeRegisteredContext(ctx)

	ctxData, _ := ctx.MarshalBinary()
	h := hash.NewFromBytes(ctxData, data)
	truncatedHash, err := h.Truncate(RawSize)
	if err != nil {
		panic(err)
	}
	_ = a.UnmarshalBinary(append([]byte{ctx.Version}, truncatedHash...))
	return
}

// NewRawAddress wraps a raw 20-byte identifier under the context's version.
func NewRawAddress(ctx Context, raw []byte) (a Address, err error) {
	mustBeRegisteredContext(ctx)

	if len(raw) != RawSize {
		return a, ErrMalformed
	}
	err = a.UnmarshalBinary(append([]byte{ctx.Version}, raw...))
	return
}

func mustBeRegisteredContext(ctx Context) {
	if _, isRegistered := registeredContexts.Load(ctx); !isRegistered {
		panic(fmt.Sprintf("address: context %s is not registered", ctx))
	}
}

func mustBeRegisteredHRP(hrp Bech32HRP) {
	if _, isRegistered := registeredBech32HRPs.Load(hrp); !isRegistered {
		panic(fmt.Sprintf("address: Bech32 human readable part '%s' is not registered", hrp))
	}
}
