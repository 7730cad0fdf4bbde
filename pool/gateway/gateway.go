// Package gateway bridges the pool ledger to the external asset contracts
// holding the pool's custody.
package gateway

import (
	"context"
	"fmt"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/ledger"
	token "github.com/MLY0813/NEST-Oracle-V3.5/token/api"
)

// Gateway moves assets between external custody and the ledger.
type Gateway struct {
	logger *logging.Logger

	ledger    *ledger.Ledger
	contracts map[pool.AssetID]token.Contract
}

func (g *Gateway) contract(asset pool.AssetID) (token.Contract, error) {
	c, ok := g.contracts[asset]
	if !ok {
		return nil, errors.WithContext(pool.ErrNotFound, fmt.Sprintf("no contract for asset %s", asset))
	}
	return c, nil
}

func externalError(err error, what string) error {
	return errors.WithContext(pool.ErrExternalTransferFailed, fmt.Sprintf("%s: %s", what, err))
}

func depositEvent(account pool.Address, asset pool.AssetID, amount *quantity.Quantity) *pool.Event {
	return &pool.Event{Deposit: &pool.DepositEvent{
		Account: account,
		Asset:   asset,
		Amount:  *amount.Clone(),
	}}
}

func withdrawEvent(account pool.Address, asset pool.AssetID, amount *quantity.Quantity) *pool.Event {
	return &pool.Event{Withdraw: &pool.WithdrawEvent{
		Account: account,
		Asset:   asset,
		Amount:  *amount.Clone(),
	}}
}

// refund returns a pull whose ledger credit failed to commit.
func (g *Gateway) refund(ctx context.Context, c token.Contract, account pool.Address, amount *quantity.Quantity, cause error) {
	if err := c.Transfer(ctx, pool.PoolAddress, account, amount); err != nil {
		g.logger.Error("failed to refund external pull",
			"err", err,
			"cause", cause,
			"asset", c.Asset(),
			"account", account,
			"amount", amount,
		)
		return
	}
	g.logger.Warn("refunded external pull after failed commit",
		"cause", cause,
		"asset", c.Asset(),
		"account", account,
		"amount", amount,
	)
}

// DepositNative credits the account with native currency carried by the
// call. The value moves from the caller into pool custody.
func (g *Gateway) DepositNative(ctx context.Context, caller, account pool.Address, amount *quantity.Quantity) error {
	c, err := g.contract(pool.NativeAsset)
	if err != nil {
		return err
	}

	var pulled bool
	err = g.ledger.Apply(ctx, caller, ledger.ActionDepositNative, func(tx *ledger.Tx) error {
		if err := tx.Credit(account, pool.NativeAsset, amount); err != nil {
			return err
		}
		if err := c.Transfer(ctx, caller, pool.PoolAddress, amount); err != nil {
			return externalError(err, "native value transfer")
		}
		pulled = true
		tx.Emit(depositEvent(account, pool.NativeAsset, amount))
		return nil
	})
	if err != nil && pulled {
		g.refund(ctx, c, caller, amount, err)
	}
	return err
}

// DepositToken pulls a pre-authorized amount of the token from the account
// into custody and credits it.
func (g *Gateway) DepositToken(ctx context.Context, caller, account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	if asset.IsNative() {
		return errors.WithContext(pool.ErrInvalidArgument, "use DepositNative for the native asset")
	}
	c, err := g.contract(asset)
	if err != nil {
		return err
	}

	var pulled bool
	err = g.ledger.Apply(ctx, caller, ledger.ActionDepositToken, func(tx *ledger.Tx) error {
		if err := tx.Credit(account, asset, amount); err != nil {
			return err
		}
		if err := c.TransferFrom(ctx, pool.PoolAddress, account, pool.PoolAddress, amount); err != nil {
			return externalError(err, "token pull")
		}
		pulled = true
		tx.Emit(depositEvent(account, asset, amount))
		return nil
	})
	if err != nil && pulled {
		g.refund(ctx, c, account, amount, err)
	}
	return err
}

func (g *Gateway) withdraw(ctx context.Context, tx *ledger.Tx, c token.Contract, account pool.Address, amount *quantity.Quantity) (bool, error) {
	asset := c.Asset()
	if err := tx.Debit(account, asset, amount); err != nil {
		return false, err
	}
	if err := c.Transfer(ctx, pool.PoolAddress, account, amount); err != nil {
		return false, externalError(err, "push")
	}
	tx.Emit(withdrawEvent(account, asset, amount))
	return true, nil
}

func (g *Gateway) pushedButNotCommitted(asset pool.AssetID, account pool.Address, amount *quantity.Quantity, err error) {
	// Custody already left; Reconcile reports the resulting shortfall.
	g.logger.Error("ledger commit failed after external push",
		"err", err,
		"asset", asset,
		"account", account,
		"amount", amount,
	)
}

// WithdrawNative debits available native currency and pushes it to the
// account. A failed push rolls the debit back.
func (g *Gateway) WithdrawNative(ctx context.Context, caller, account pool.Address, amount *quantity.Quantity) error {
	c, err := g.contract(pool.NativeAsset)
	if err != nil {
		return err
	}

	var pushed bool
	err = g.ledger.Apply(ctx, caller, ledger.ActionWithdrawNative, func(tx *ledger.Tx) (err error) {
		pushed, err = g.withdraw(ctx, tx, c, account, amount)
		return
	})
	if err != nil && pushed {
		g.pushedButNotCommitted(pool.NativeAsset, account, amount, err)
	}
	return err
}

// WithdrawToken debits an available token balance and pushes it to the
// account. A failed push rolls the debit back.
func (g *Gateway) WithdrawToken(ctx context.Context, caller, account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	if asset.IsNative() {
		return errors.WithContext(pool.ErrInvalidArgument, "use WithdrawNative for the native asset")
	}
	c, err := g.contract(asset)
	if err != nil {
		return err
	}

	var pushed bool
	err = g.ledger.Apply(ctx, caller, ledger.ActionWithdrawToken, func(tx *ledger.Tx) (err error) {
		pushed, err = g.withdraw(ctx, tx, c, account, amount)
		return
	})
	if err != nil && pushed {
		g.pushedButNotCommitted(asset, account, amount, err)
	}
	return err
}

// WithdrawNativeAndToken withdraws native currency and one token in a
// single ledger transaction.
//
// The token is pushed first. If the native push then fails, the token
// withdrawal is kept, the native debit is restored and the call returns
// ErrExternalTransferFailed.
func (g *Gateway) WithdrawNativeAndToken(
	ctx context.Context,
	caller, account pool.Address,
	nativeAmount *quantity.Quantity,
	asset pool.AssetID,
	tokenAmount *quantity.Quantity,
) error {
	if asset.IsNative() {
		return errors.WithContext(pool.ErrInvalidArgument, "token half must not be the native asset")
	}
	nc, err := g.contract(pool.NativeAsset)
	if err != nil {
		return err
	}
	tc, err := g.contract(asset)
	if err != nil {
		return err
	}

	var tokenPushed bool
	err = g.ledger.Apply(ctx, caller, ledger.ActionWithdrawNativeAndToken, func(tx *ledger.Tx) error {
		// Check both halves before anything leaves custody.
		if err := tx.Debit(account, pool.NativeAsset, nativeAmount); err != nil {
			return err
		}
		var err error
		if tokenPushed, err = g.withdraw(ctx, tx, tc, account, tokenAmount); err != nil {
			return err
		}
		if err = nc.Transfer(ctx, pool.PoolAddress, account, nativeAmount); err != nil {
			tx.CommitWithError(externalError(err, "native push after token withdrawal"))
			return tx.Credit(account, pool.NativeAsset, nativeAmount)
		}
		tx.Emit(withdrawEvent(account, pool.NativeAsset, nativeAmount))
		return nil
	})
	if err != nil && tokenPushed && !errors.Is(err, pool.ErrExternalTransferFailed) {
		g.pushedButNotCommitted(asset, account, tokenAmount, err)
	}
	return err
}

// topUp credits the shortfall between available and amount by pulling it
// from the account's external balance. The pull happens last so a failed
// credit never moves external funds.
func (g *Gateway) topUp(ctx context.Context, tx *ledger.Tx, account pool.Address, asset pool.AssetID, amount *quantity.Quantity) (*quantity.Quantity, func() error, error) {
	bal, err := tx.State().Balance(account, asset)
	if err != nil {
		return nil, nil, err
	}
	if bal.Available.Cmp(amount) >= 0 {
		return nil, nil, nil
	}

	shortfall := amount.Clone()
	if err = shortfall.Sub(&bal.Available); err != nil {
		return nil, nil, err
	}
	if asset.IsNative() {
		return nil, nil, errors.WithContext(pool.ErrInsufficientBalance,
			fmt.Sprintf("native top-up of %s is not supported", shortfall))
	}
	c, err := g.contract(asset)
	if err != nil {
		return nil, nil, err
	}
	if err = tx.Credit(account, asset, shortfall); err != nil {
		return nil, nil, err
	}
	tx.Emit(depositEvent(account, asset, shortfall))

	pull := func() error {
		if err := c.TransferFrom(ctx, pool.PoolAddress, account, pool.PoolAddress, shortfall); err != nil {
			return externalError(err, "top-up pull")
		}
		return nil
	}
	return shortfall, pull, nil
}

// FreezeWithTopUp freezes amount of the asset, first pulling in from the
// account's external balance whatever its available balance lacks.
func (g *Gateway) FreezeWithTopUp(ctx context.Context, caller, account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	var pulled *quantity.Quantity
	err := g.ledger.Apply(ctx, caller, ledger.ActionFreezeWithTopUp, func(tx *ledger.Tx) error {
		if amount == nil || !amount.IsValid() {
			return errors.WithContext(pool.ErrInvalidArgument, "invalid amount")
		}
		shortfall, pull, err := g.topUp(ctx, tx, account, asset, amount)
		if err != nil {
			return err
		}
		if err = tx.Freeze(account, asset, amount); err != nil {
			return err
		}
		if pull != nil {
			if err = pull(); err != nil {
				return err
			}
			pulled = shortfall
		}
		return nil
	})
	if err != nil && pulled != nil {
		if c, cerr := g.contract(asset); cerr == nil {
			g.refund(ctx, c, account, pulled, err)
		}
	}
	return err
}

// FreezeNativeAndTokenWithTopUp freezes native currency and one token as a
// single step. Only the token half is topped up.
func (g *Gateway) FreezeNativeAndTokenWithTopUp(
	ctx context.Context,
	caller, account pool.Address,
	nativeAmount *quantity.Quantity,
	asset pool.AssetID,
	tokenAmount *quantity.Quantity,
) error {
	if asset.IsNative() {
		return errors.WithContext(pool.ErrInvalidArgument, "token half must not be the native asset")
	}

	var pulled *quantity.Quantity
	err := g.ledger.Apply(ctx, caller, ledger.ActionFreezeWithTopUp, func(tx *ledger.Tx) error {
		if tokenAmount == nil || !tokenAmount.IsValid() {
			return errors.WithContext(pool.ErrInvalidArgument, "invalid amount")
		}
		if err := tx.Freeze(account, pool.NativeAsset, nativeAmount); err != nil {
			return err
		}
		shortfall, pull, err := g.topUp(ctx, tx, account, asset, tokenAmount)
		if err != nil {
			return err
		}
		if err = tx.Freeze(account, asset, tokenAmount); err != nil {
			return err
		}
		if pull != nil {
			if err = pull(); err != nil {
				return err
			}
			pulled = shortfall
		}
		return nil
	})
	if err != nil && pulled != nil {
		if c, cerr := g.contract(asset); cerr == nil {
			g.refund(ctx, c, account, pulled, err)
		}
	}
	return err
}

// New creates a gateway over the ledger. At most one contract may be given
// per asset; the native currency contract uses pool.NativeAsset.
func New(l *ledger.Ledger, contracts ...token.Contract) (*Gateway, error) {
	g := &Gateway{
		logger:    logging.GetLogger("pool/gateway"),
		ledger:    l,
		contracts: make(map[pool.AssetID]token.Contract),
	}
	for _, c := range contracts {
		asset := c.Asset()
		if !asset.IsValid() {
			return nil, fmt.Errorf("pool/gateway: contract for invalid asset %s", asset)
		}
		if _, ok := g.contracts[asset]; ok {
			return nil, fmt.Errorf("pool/gateway: duplicate contract for asset %s", asset)
		}
		g.contracts[asset] = c
	}
	return g, nil
}
