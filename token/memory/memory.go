// Package memory implements an in-memory fungible asset contract.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/token/api"
)

var _ api.Contract = (*Contract)(nil)

type allowanceKey struct {
	owner   pool.Address
	spender pool.Address
}

// Contract is an in-memory fungible asset contract.
type Contract struct {
	sync.Mutex

	logger *logging.Logger

	asset      pool.AssetID
	balances   map[pool.Address]*quantity.Quantity
	allowances map[allowanceKey]*quantity.Quantity

	fault error
}

func (c *Contract) Asset() pool.AssetID {
	return c.asset
}

func checkAmount(amount *quantity.Quantity) error {
	if amount == nil || !amount.IsValid() {
		return errors.WithContext(api.ErrInvalidArgument, "invalid amount")
	}
	return nil
}

func checkHolder(addr pool.Address) error {
	if addr.Equal(pool.Address{}) {
		return errors.WithContext(api.ErrInvalidArgument, "zero address")
	}
	return nil
}

func (c *Contract) balanceLocked(addr pool.Address) *quantity.Quantity {
	q := c.balances[addr]
	if q == nil {
		q = quantity.NewQuantity()
		c.balances[addr] = q
	}
	return q
}

func (c *Contract) transferLocked(from, to pool.Address, amount *quantity.Quantity) error {
	if err := checkHolder(from); err != nil {
		return err
	}
	if err := checkHolder(to); err != nil {
		return err
	}
	if from.Equal(to) {
		if c.balanceLocked(from).Cmp(amount) < 0 {
			return api.ErrInsufficientBalance
		}
		return nil
	}

	err := quantity.Move(c.balanceLocked(to), c.balanceLocked(from), amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, quantity.ErrInsufficientBalance):
		return errors.WithContext(api.ErrInsufficientBalance, fmt.Sprintf("%s holds %s", from, c.balanceLocked(from)))
	case errors.Is(err, quantity.ErrOverflow):
		return api.ErrOverflow
	default:
		return errors.WithContext(api.ErrInvalidArgument, err.Error())
	}
}

func (c *Contract) Transfer(ctx context.Context, from, to pool.Address, amount *quantity.Quantity) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	if c.fault != nil {
		return c.fault
	}
	if err := c.transferLocked(from, to, amount); err != nil {
		return err
	}

	c.logger.Debug("transfer",
		"asset", c.asset,
		"from", from,
		"to", to,
		"amount", amount,
	)
	return nil
}

func (c *Contract) TransferFrom(ctx context.Context, spender, from, to pool.Address, amount *quantity.Quantity) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	if c.fault != nil {
		return c.fault
	}

	key := allowanceKey{owner: from, spender: spender}
	allowance := c.allowances[key]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return errors.WithContext(api.ErrInsufficientAllowance, fmt.Sprintf("%s may move %s of %s", spender, allowance, from))
	}
	remaining := allowance.Clone()
	if err := remaining.Sub(amount); err != nil {
		return err
	}
	if err := c.transferLocked(from, to, amount); err != nil {
		return err
	}
	c.allowances[key] = remaining

	c.logger.Debug("transfer from",
		"asset", c.asset,
		"spender", spender,
		"from", from,
		"to", to,
		"amount", amount,
	)
	return nil
}

func (c *Contract) Approve(ctx context.Context, owner, spender pool.Address, amount *quantity.Quantity) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := checkHolder(owner); err != nil {
		return err
	}
	if err := checkHolder(spender); err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	c.allowances[allowanceKey{owner: owner, spender: spender}] = amount.Clone()
	return nil
}

func (c *Contract) Allowance(ctx context.Context, owner, spender pool.Address) (*quantity.Quantity, error) {
	c.Lock()
	defer c.Unlock()

	if q := c.allowances[allowanceKey{owner: owner, spender: spender}]; q != nil {
		return q.Clone(), nil
	}
	return quantity.NewQuantity(), nil
}

func (c *Contract) BalanceOf(ctx context.Context, owner pool.Address) (*quantity.Quantity, error) {
	c.Lock()
	defer c.Unlock()

	if q := c.balances[owner]; q != nil {
		return q.Clone(), nil
	}
	return quantity.NewQuantity(), nil
}

// Mint credits amount to the holder out of nothing.
func (c *Contract) Mint(to pool.Address, amount *quantity.Quantity) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := checkHolder(to); err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	if err := c.balanceLocked(to).Add(amount); err != nil {
		return api.ErrOverflow
	}
	return nil
}

// SetFault makes every subsequent transfer fail with err. A nil err
// clears the fault.
func (c *Contract) SetFault(err error) {
	c.Lock()
	defer c.Unlock()

	c.fault = err
}

// New creates a new in-memory contract for the asset.
func New(asset pool.AssetID) *Contract {
	return &Contract{
		logger:     logging.GetLogger("token/memory").With("asset", asset),
		asset:      asset,
		balances:   make(map[pool.Address]*quantity.Quantity),
		allowances: make(map[allowanceKey]*quantity.Quantity),
	}
}
