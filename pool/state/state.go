// Package state implements the pool ledger state over a storage
// transaction.
package state

import (
	"fmt"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/cbor"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/keyformat"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	db "github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
)

var (
	// balanceKeyFmt is the key format used for balances (account address,
	// asset id).
	//
	// Value is a CBOR-serialized pool.Balance. All-zero balances are not
	// stored.
	balanceKeyFmt = keyformat.New(0x50, &pool.Address{}, &pool.AssetID{})
	// assetKeyFmt is the key format used for asset entries (asset id).
	//
	// Value is a CBOR-serialized pool.AssetEntry.
	assetKeyFmt = keyformat.New(0x51, &pool.AssetID{})
	// rolesKeyFmt is the key format used for the role bindings.
	//
	// Value is CBOR-serialized pool.Roles.
	rolesKeyFmt = keyformat.New(0x52)
	// parametersKeyFmt is the key format used for the pool parameters.
	//
	// Value is CBOR-serialized pool.Parameters.
	parametersKeyFmt = keyformat.New(0x53)
	// minedKeyFmt is the key format used for the mined protocol token total.
	//
	// Value is a CBOR-serialized quantity.
	minedKeyFmt = keyformat.New(0x54)
)

// ImmutableState is a read-only view of the ledger state.
type ImmutableState struct {
	tx db.Tx
}

func (s *ImmutableState) load(key []byte, dst interface{}) (bool, error) {
	value, err := s.tx.Get(key)
	switch {
	case err == nil:
	case errors.Is(err, db.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("pool/state: failed to load: %w", err)
	}
	if err = cbor.Unmarshal(value, dst); err != nil {
		return false, fmt.Errorf("pool/state: corrupted entry: %w", err)
	}
	return true, nil
}

// Balance returns the balance of (account, asset). A missing entry reads
// as zero.
func (s *ImmutableState) Balance(addr pool.Address, asset pool.AssetID) (*pool.Balance, error) {
	var bal pool.Balance
	if _, err := s.load(balanceKeyFmt.Encode(&addr, &asset), &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// Account returns every stored balance of the account.
func (s *ImmutableState) Account(addr pool.Address) (*pool.Account, error) {
	acct := &pool.Account{
		Balances: make(map[pool.AssetID]*pool.Balance),
	}
	err := s.tx.Iterate(balanceKeyFmt.Encode(&addr), func(key, value []byte) (bool, error) {
		var (
			owner pool.Address
			asset pool.AssetID
			bal   pool.Balance
		)
		if !balanceKeyFmt.Decode(key, &owner, &asset) {
			return false, nil
		}
		if err := cbor.Unmarshal(value, &bal); err != nil {
			return false, fmt.Errorf("pool/state: corrupted balance: %w", err)
		}
		acct.Balances[asset] = &bal
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Accounts returns the addresses of all accounts holding a non-zero
// balance, in key order.
func (s *ImmutableState) Accounts() ([]pool.Address, error) {
	var addrs []pool.Address
	err := s.tx.Iterate(balanceKeyFmt.Encode(), func(key, _ []byte) (bool, error) {
		var addr pool.Address
		if !balanceKeyFmt.Decode(key, &addr) {
			return false, nil
		}
		if n := len(addrs); n == 0 || !addrs[n-1].Equal(addr) {
			addrs = append(addrs, addr)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

// Ledger returns all accounts keyed by address.
func (s *ImmutableState) Ledger() (map[pool.Address]*pool.Account, error) {
	ledger := make(map[pool.Address]*pool.Account)
	err := s.tx.Iterate(balanceKeyFmt.Encode(), func(key, value []byte) (bool, error) {
		var (
			owner pool.Address
			asset pool.AssetID
			bal   pool.Balance
		)
		if !balanceKeyFmt.Decode(key, &owner, &asset) {
			return false, nil
		}
		if err := cbor.Unmarshal(value, &bal); err != nil {
			return false, fmt.Errorf("pool/state: corrupted balance: %w", err)
		}
		acct := ledger[owner]
		if acct == nil {
			acct = &pool.Account{Balances: make(map[pool.AssetID]*pool.Balance)}
			ledger[owner] = acct
		}
		acct.Balances[asset] = &bal
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

// Claims returns, per asset, the sum of available and frozen balances over
// all accounts.
func (s *ImmutableState) Claims() (map[pool.AssetID]*quantity.Quantity, error) {
	claims := make(map[pool.AssetID]*quantity.Quantity)
	err := s.tx.Iterate(balanceKeyFmt.Encode(), func(key, value []byte) (bool, error) {
		var (
			owner pool.Address
			asset pool.AssetID
			bal   pool.Balance
		)
		if !balanceKeyFmt.Decode(key, &owner, &asset) {
			return false, nil
		}
		if err := cbor.Unmarshal(value, &bal); err != nil {
			return false, fmt.Errorf("pool/state: corrupted balance: %w", err)
		}
		total, err := bal.Total()
		if err != nil {
			return false, err
		}
		claim := claims[asset]
		if claim == nil {
			claim = quantity.NewQuantity()
			claims[asset] = claim
		}
		return true, claim.Add(total)
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// AssetEntry returns the registry entry of an asset, or pool.ErrNotFound.
func (s *ImmutableState) AssetEntry(asset pool.AssetID) (*pool.AssetEntry, error) {
	var entry pool.AssetEntry
	ok, err := s.load(assetKeyFmt.Encode(&asset), &entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithContext(pool.ErrNotFound, fmt.Sprintf("asset %s", asset))
	}
	return &entry, nil
}

// Assets returns all registry entries in key order.
func (s *ImmutableState) Assets() ([]*pool.AssetEntry, error) {
	var entries []*pool.AssetEntry
	err := s.tx.Iterate(assetKeyFmt.Encode(), func(_, value []byte) (bool, error) {
		var entry pool.AssetEntry
		if err := cbor.Unmarshal(value, &entry); err != nil {
			return false, fmt.Errorf("pool/state: corrupted asset entry: %w", err)
		}
		entries = append(entries, &entry)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Roles returns the role bindings. The second return value is false when
// the state has not been initialized.
func (s *ImmutableState) Roles() (*pool.Roles, bool, error) {
	var roles pool.Roles
	ok, err := s.load(rolesKeyFmt.Encode(), &roles)
	if err != nil {
		return nil, false, err
	}
	return &roles, ok, nil
}

// Parameters returns the pool parameters.
func (s *ImmutableState) Parameters() (*pool.Parameters, error) {
	var params pool.Parameters
	if _, err := s.load(parametersKeyFmt.Encode(), &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// MinedProtocolTokens returns the mined protocol token total.
func (s *ImmutableState) MinedProtocolTokens() (*quantity.Quantity, error) {
	var q quantity.Quantity
	if _, err := s.load(minedKeyFmt.Encode(), &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// NewImmutableState wraps a storage transaction.
func NewImmutableState(tx db.Tx) *ImmutableState {
	return &ImmutableState{tx: tx}
}

// MutableState is a mutable view of the ledger state.
type MutableState struct {
	*ImmutableState
}

// SetBalance stores the balance of (account, asset), deleting all-zero
// entries.
func (s *MutableState) SetBalance(addr pool.Address, asset pool.AssetID, bal *pool.Balance) error {
	key := balanceKeyFmt.Encode(&addr, &asset)
	if bal.IsZero() {
		return s.tx.Delete(key)
	}
	return s.tx.Set(key, cbor.Marshal(bal))
}

// SetAssetEntry stores a registry entry.
func (s *MutableState) SetAssetEntry(entry *pool.AssetEntry) error {
	return s.tx.Set(assetKeyFmt.Encode(&entry.Asset), cbor.Marshal(entry))
}

// SetRoles stores the role bindings.
func (s *MutableState) SetRoles(roles *pool.Roles) error {
	return s.tx.Set(rolesKeyFmt.Encode(), cbor.Marshal(roles))
}

// SetParameters stores the pool parameters.
func (s *MutableState) SetParameters(params *pool.Parameters) error {
	return s.tx.Set(parametersKeyFmt.Encode(), cbor.Marshal(params))
}

// SetMinedProtocolTokens stores the mined protocol token total.
func (s *MutableState) SetMinedProtocolTokens(q *quantity.Quantity) error {
	return s.tx.Set(minedKeyFmt.Encode(), cbor.Marshal(q))
}

// NewMutableState wraps a writable storage transaction.
func NewMutableState(tx db.Tx) *MutableState {
	return &MutableState{NewImmutableState(tx)}
}
