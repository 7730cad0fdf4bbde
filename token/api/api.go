// Package api defines the interface of an external fungible asset contract.
package api

import (
	"context"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
)

// ModuleName is the module name used for token errors.
const ModuleName = "token"

var (
	// ErrInvalidArgument is the error returned on malformed arguments.
	ErrInvalidArgument = errors.New(ModuleName, 1, "token: invalid argument")

	// ErrInsufficientBalance is the error returned when the source holds
	// less than the transferred amount.
	ErrInsufficientBalance = errors.New(ModuleName, 2, "token: insufficient balance")

	// ErrInsufficientAllowance is the error returned when the spender is
	// not authorized to move the amount.
	ErrInsufficientAllowance = errors.New(ModuleName, 3, "token: insufficient allowance")

	// ErrOverflow is the error returned when a credit would exceed the
	// representable range.
	ErrOverflow = errors.New(ModuleName, 4, "token: arithmetic overflow")
)

// Contract is a fungible asset contract.
type Contract interface {
	// Asset returns the asset the contract holds.
	Asset() pool.AssetID

	// Transfer moves amount from one holder to another.
	Transfer(ctx context.Context, from, to pool.Address, amount *quantity.Quantity) error

	// TransferFrom moves amount on behalf of from, consuming the spender's
	// allowance.
	TransferFrom(ctx context.Context, spender, from, to pool.Address, amount *quantity.Quantity) error

	// Approve sets the amount the spender may move on behalf of the owner.
	Approve(ctx context.Context, owner, spender pool.Address, amount *quantity.Quantity) error

	// Allowance returns the amount the spender may move on behalf of the
	// owner.
	Allowance(ctx context.Context, owner, spender pool.Address) (*quantity.Quantity, error)

	// BalanceOf returns the holder's balance.
	BalanceOf(ctx context.Context, owner pool.Address) (*quantity.Quantity, error)
}
