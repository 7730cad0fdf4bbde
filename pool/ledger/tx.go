package ledger

import (
	"fmt"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/state"
)

// Tx is a ledger transaction. All balance changes made through a Tx commit
// together or not at all.
type Tx struct {
	state  *state.MutableState
	events []*pool.Event

	mined    *quantity.Quantity
	onCommit []func()
	partial  error
}

// State returns the underlying mutable state.
func (tx *Tx) State() *state.MutableState {
	return tx.state
}

// CommitWithError marks the transaction as partially failed. The changes
// still commit, but Apply reports err to the caller.
func (tx *Tx) CommitWithError(err error) {
	tx.partial = err
}

// Emit queues an event for broadcast once the transaction commits.
func (tx *Tx) Emit(ev *pool.Event) {
	tx.events = append(tx.events, ev)
}

func (tx *Tx) balance(account pool.Address, asset pool.AssetID) (*pool.Balance, error) {
	bal, err := tx.state.Balance(account, asset)
	if err != nil {
		return nil, fmt.Errorf("pool/ledger: failed to fetch balance: %w", err)
	}
	return bal, nil
}

func (tx *Tx) setBalance(account pool.Address, asset pool.AssetID, bal *pool.Balance) error {
	if err := tx.state.SetBalance(account, asset, bal); err != nil {
		return fmt.Errorf("pool/ledger: failed to set balance: %w", err)
	}
	return nil
}

// Credit increases the available balance of (account, asset).
func (tx *Tx) Credit(account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	if err := checkArgs(account, asset, amount); err != nil {
		return err
	}
	bal, err := tx.balance(account, asset)
	if err != nil {
		return err
	}
	if err = bal.Available.Add(amount); err != nil {
		return quantityError(err, "credit %s of %s to %s", amount, asset, account)
	}
	// Available + frozen must stay representable.
	if _, err = bal.Total(); err != nil {
		return quantityError(err, "credit %s of %s to %s", amount, asset, account)
	}
	return tx.setBalance(account, asset, bal)
}

// Debit decreases the available balance of (account, asset).
func (tx *Tx) Debit(account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	if err := checkArgs(account, asset, amount); err != nil {
		return err
	}
	bal, err := tx.balance(account, asset)
	if err != nil {
		return err
	}
	if err = bal.Available.Sub(amount); err != nil {
		return quantityError(err, "debit %s of %s from %s (available %s)", amount, asset, account, bal.Available)
	}
	return tx.setBalance(account, asset, bal)
}

// Freeze moves amount from available to frozen.
func (tx *Tx) Freeze(account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	if err := checkArgs(account, asset, amount); err != nil {
		return err
	}
	bal, err := tx.balance(account, asset)
	if err != nil {
		return err
	}
	if err = quantity.Move(&bal.Frozen, &bal.Available, amount); err != nil {
		return quantityError(err, "freeze %s of %s for %s (available %s)", amount, asset, account, bal.Available)
	}
	if err = tx.setBalance(account, asset, bal); err != nil {
		return err
	}
	tx.Emit(&pool.Event{Freeze: &pool.FreezeEvent{
		Account: account,
		Asset:   asset,
		Amount:  *amount.Clone(),
	}})
	return nil
}

// Unfreeze moves amount from frozen to available.
func (tx *Tx) Unfreeze(account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	if err := checkArgs(account, asset, amount); err != nil {
		return err
	}
	bal, err := tx.balance(account, asset)
	if err != nil {
		return err
	}
	if err = quantity.Move(&bal.Available, &bal.Frozen, amount); err != nil {
		return quantityError(err, "unfreeze %s of %s for %s (frozen %s)", amount, asset, account, bal.Frozen)
	}
	if err = tx.setBalance(account, asset, bal); err != nil {
		return err
	}
	tx.Emit(&pool.Event{Unfreeze: &pool.UnfreezeEvent{
		Account: account,
		Asset:   asset,
		Amount:  *amount.Clone(),
	}})
	return nil
}

// Transfer moves amount of available balance between two accounts.
func (tx *Tx) Transfer(asset pool.AssetID, from, to pool.Address, amount *quantity.Quantity) error {
	if err := checkArgs(from, asset, amount); err != nil {
		return err
	}
	if !to.IsValid() {
		return errors.WithContext(pool.ErrInvalidArgument, fmt.Sprintf("invalid destination %s", to))
	}

	src, err := tx.balance(from, asset)
	if err != nil {
		return err
	}
	if from.Equal(to) {
		// Transfer to self is just a balance check.
		if src.Available.Cmp(amount) < 0 {
			return errors.WithContext(pool.ErrInsufficientBalance,
				fmt.Sprintf("transfer %s of %s from %s (available %s)", amount, asset, from, src.Available))
		}
	} else {
		var dst *pool.Balance
		if dst, err = tx.balance(to, asset); err != nil {
			return err
		}
		if err = quantity.Move(&dst.Available, &src.Available, amount); err != nil {
			return quantityError(err, "transfer %s of %s from %s (available %s)", amount, asset, from, src.Available)
		}
		if _, err = dst.Total(); err != nil {
			return quantityError(err, "transfer %s of %s to %s", amount, asset, to)
		}
		if err = tx.setBalance(to, asset, dst); err != nil {
			return err
		}
		if err = tx.setBalance(from, asset, src); err != nil {
			return err
		}
	}

	tx.Emit(&pool.Event{Transfer: &pool.TransferEvent{
		Asset:  asset,
		From:   from,
		To:     to,
		Amount: *amount.Clone(),
	}})
	return nil
}

// Mint credits amount out of nothing. Credits of the protocol token also
// advance the mined total.
func (tx *Tx) Mint(account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	params, err := tx.state.Parameters()
	if err != nil {
		return fmt.Errorf("pool/ledger: failed to fetch parameters: %w", err)
	}
	mined := asset.Equal(params.ProtocolToken)

	if err = tx.Credit(account, asset, amount); err != nil {
		return err
	}
	if mined {
		var total *quantity.Quantity
		if total, err = tx.state.MinedProtocolTokens(); err != nil {
			return fmt.Errorf("pool/ledger: failed to fetch mined total: %w", err)
		}
		if err = total.Add(amount); err != nil {
			return quantityError(err, "mined total %s + %s", total, amount)
		}
		if err = tx.state.SetMinedProtocolTokens(total); err != nil {
			return fmt.Errorf("pool/ledger: failed to set mined total: %w", err)
		}
		tx.mined = total
	}

	tx.Emit(&pool.Event{Add: &pool.AddEvent{
		Account: account,
		Asset:   asset,
		Amount:  *amount.Clone(),
		Mined:   mined,
	}})
	return nil
}

func checkArgs(account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	switch {
	case !account.IsValid():
		return errors.WithContext(pool.ErrInvalidArgument, fmt.Sprintf("invalid account %s", account))
	case !asset.IsValid():
		return errors.WithContext(pool.ErrInvalidArgument, fmt.Sprintf("invalid asset %s", asset))
	case amount == nil || !amount.IsValid():
		return errors.WithContext(pool.ErrInvalidArgument, "invalid amount")
	}
	return nil
}

func quantityError(err error, format string, args ...interface{}) error {
	detail := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, quantity.ErrInsufficientBalance):
		return errors.WithContext(pool.ErrInsufficientBalance, detail)
	case errors.Is(err, quantity.ErrOverflow):
		return errors.WithContext(pool.ErrArithmeticOverflow, detail)
	case errors.Is(err, quantity.ErrInvalidQuantity):
		return errors.WithContext(pool.ErrInvalidArgument, detail)
	default:
		return fmt.Errorf("pool/ledger: %s: %w", detail, err)
	}
}
