package api

import (
	"encoding"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/crypto/address"
)

var (
	// AddressV0Context is the context for addresses derived from identity data.
	AddressV0Context = address.NewContext("nest-pool/pool: address", 0)
	// AddressRawContext is the context for addresses wrapping a raw 20-byte
	// external identifier.
	AddressRawContext = address.NewContext("nest-pool/pool: raw address", 1)
	// AddressBech32HRP is the human readable part of Bech32 encoded addresses.
	AddressBech32HRP = address.NewBech32HRP("nest")

	reservedAddresses sync.Map

	// PoolAddress is the pool's own identity on external asset contracts.
	// Assets in pool custody are held under it, and it can never carry a
	// ledger account.
	PoolAddress = NewReservedAddress([]byte("pool custody"))

	// MiningReserveAddress is the ledger account holding the protocol token
	// reserve credited by InitProtocolTokenLedger.
	MiningReserveAddress = NewAddress([]byte("mining reserve"))

	// NativeAsset is the asset id of the native currency.
	NativeAsset = AssetID(NewReservedAddress([]byte("native currency")))

	_ encoding.BinaryMarshaler   = Address{}
	_ encoding.BinaryUnmarshaler = (*Address)(nil)
	_ encoding.TextMarshaler     = Address{}
	_ encoding.TextUnmarshaler   = (*Address)(nil)
	_ encoding.TextMarshaler     = AssetID{}
	_ encoding.TextUnmarshaler   = (*AssetID)(nil)
)

// Address is a pool account address.
type Address address.Address

// MarshalBinary encodes an address into binary form.
func (a Address) MarshalBinary() ([]byte, error) {
	return (address.Address)(a).MarshalBinary()
}

// UnmarshalBinary decodes a binary marshaled address.
func (a *Address) UnmarshalBinary(data []byte) error {
	return (*address.Address)(a).UnmarshalBinary(data)
}

// MarshalText encodes an address into text form.
func (a Address) MarshalText() ([]byte, error) {
	return (address.Address)(a).MarshalBech32(AddressBech32HRP)
}

// UnmarshalText decodes a text marshaled address.
//
// Besides the Bech32 form this also accepts a 0x-prefixed 40 character hex
// string, which is wrapped as a raw address.
func (a *Address) UnmarshalText(text []byte) error {
	s := string(text)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw, err := hex.DecodeString(s[2:])
		if err != nil {
			return fmt.Errorf("pool: malformed hex address: %w", err)
		}
		addr, err := NewAddressRaw(raw)
		if err != nil {
			return err
		}
		*a = addr
		return nil
	}
	return (*address.Address)(a).UnmarshalBech32(AddressBech32HRP, text)
}

// Equal compares vs another address for equality.
func (a Address) Equal(cmp Address) bool {
	return (address.Address)(a).Equal(address.Address(cmp))
}

// IsValid checks whether an address is well-formed and not reserved.
func (a Address) IsValid() bool {
	return !(address.Address)(a).IsZero() && !a.IsReserved()
}

// IsReserved returns true iff the address is reserved.
func (a Address) IsReserved() bool {
	_, isReserved := reservedAddresses.Load(a)
	return isReserved
}

// String returns the Bech32 encoding of the address.
func (a Address) String() string {
	text, err := a.MarshalText()
	if err != nil || len(text) == 0 {
		return "[malformed]"
	}
	return string(text)
}

// NewAddress derives an address from arbitrary identity data.
func NewAddress(data []byte) Address {
	return (Address)(address.NewAddress(AddressV0Context, data))
}

// NewAddressRaw wraps a raw 20-byte external identifier, such as a contract
// or externally owned account address.
func NewAddressRaw(raw []byte) (Address, error) {
	addr, err := address.NewRawAddress(AddressRawContext, raw)
	if err != nil {
		return Address{}, fmt.Errorf("pool: malformed raw address: %w", err)
	}
	return (Address)(addr), nil
}

// NewReservedAddress derives an address from the data and marks it as
// reserved. This panics if the address is already reserved.
func NewReservedAddress(data []byte) Address {
	addr := NewAddress(data)
	if _, loaded := reservedAddresses.LoadOrStore(addr, true); loaded {
		panic(fmt.Sprintf("pool: address %s is already reserved", addr))
	}
	return addr
}

// AssetID identifies a fungible asset accounted for by the pool.
type AssetID Address

// MarshalBinary encodes an asset id into binary form.
func (id AssetID) MarshalBinary() ([]byte, error) {
	return Address(id).MarshalBinary()
}

// UnmarshalBinary decodes a binary marshaled asset id.
func (id *AssetID) UnmarshalBinary(data []byte) error {
	return (*Address)(id).UnmarshalBinary(data)
}

// MarshalText encodes an asset id into text form. The native currency is
// rendered by name.
func (id AssetID) MarshalText() ([]byte, error) {
	if id.IsNative() {
		return []byte(nativeAssetName), nil
	}
	return Address(id).MarshalText()
}

// UnmarshalText decodes a text marshaled asset id.
func (id *AssetID) UnmarshalText(text []byte) error {
	if strings.EqualFold(string(text), nativeAssetName) {
		*id = NativeAsset
		return nil
	}
	return (*Address)(id).UnmarshalText(text)
}

// IsNative returns true iff the asset is the native currency.
func (id AssetID) IsNative() bool {
	return Address(id).Equal(Address(NativeAsset))
}

// IsValid checks whether the asset id is usable in ledger operations.
func (id AssetID) IsValid() bool {
	return id.IsNative() || Address(id).IsValid()
}

// Equal compares vs another asset id for equality.
func (id AssetID) Equal(cmp AssetID) bool {
	return Address(id).Equal(Address(cmp))
}

// String returns the text form of the asset id.
func (id AssetID) String() string {
	text, err := id.MarshalText()
	if err != nil || len(text) == 0 {
		return "[malformed]"
	}
	return string(text)
}

const nativeAssetName = "native"
