// Package api implements the pool ledger API.
package api

import (
	"context"
	"fmt"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/pubsub"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
)

// ModuleName is a unique module name for the pool module.
const ModuleName = "pool"

var (
	// ErrInvalidArgument is the error returned on malformed arguments.
	ErrInvalidArgument = errors.New(ModuleName, 1, "pool: invalid argument")

	// ErrUnauthorized is the error returned when the caller does not hold
	// a role permitted to perform the operation.
	ErrUnauthorized = errors.New(ModuleName, 2, "pool: unauthorized")

	// ErrInsufficientBalance is the error returned when an available or
	// frozen balance precondition fails.
	ErrInsufficientBalance = errors.New(ModuleName, 3, "pool: insufficient balance")

	// ErrArithmeticOverflow is the error returned when a credit would exceed
	// the representable range.
	ErrArithmeticOverflow = errors.New(ModuleName, 4, "pool: arithmetic overflow")

	// ErrExternalTransferFailed is the error returned when an external asset
	// contract rejects a pull or push.
	ErrExternalTransferFailed = errors.New(ModuleName, 5, "pool: external transfer failed")

	// ErrNotFound is the error returned when an asset or derivative is not
	// registered.
	ErrNotFound = errors.New(ModuleName, 6, "pool: not found")

	// ErrReconciliation is the error returned when pool custody does not
	// cover the internal claims on an asset.
	ErrReconciliation = errors.New(ModuleName, 7, "pool: reconciliation failed")
)

// Balance is the available/frozen split of one (account, asset) pair.
type Balance struct {
	Available quantity.Quantity `json:"available"`
	Frozen    quantity.Quantity `json:"frozen"`
}

// IsZero returns true iff both sub-balances are zero.
func (b *Balance) IsZero() bool {
	return b.Available.IsZero() && b.Frozen.IsZero()
}

// Total returns available + frozen.
func (b *Balance) Total() (*quantity.Quantity, error) {
	total := b.Available.Clone()
	if err := total.Add(&b.Frozen); err != nil {
		return nil, err
	}
	return total, nil
}

// Account is an entry in the pool ledger.
//
// Accounts exist implicitly; a missing balance reads as zero.
type Account struct {
	Balances map[AssetID]*Balance `json:"balances,omitempty"`
}

// Balance returns the balance of the given asset, zero if absent.
func (a *Account) Balance(asset AssetID) *Balance {
	if b := a.Balances[asset]; b != nil {
		return b
	}
	return &Balance{}
}

// AssetEntry binds a fungible asset to its paired derivative (n-token).
type AssetEntry struct {
	Asset      AssetID `json:"asset"`
	Derivative AssetID `json:"derivative"`
}

// Role is a privileged protocol role.
type Role uint8

const (
	// RoleMining is the mining/consensus engine.
	RoleMining Role = iota
	// RoleStaking is the staking module.
	RoleStaking
	// RoleNTokenController is the n-token controller.
	RoleNTokenController
	// RoleNNRewardPool is the NN reward pool.
	RoleNNRewardPool
	// RoleQuery is the price query module.
	RoleQuery
	// RoleGovernance is governance/DAO.
	RoleGovernance

	// RoleMax is the highest role value.
	RoleMax = RoleGovernance
)

// String returns the string representation of a Role.
func (r Role) String() string {
	switch r {
	case RoleMining:
		return "mining"
	case RoleStaking:
		return "staking"
	case RoleNTokenController:
		return "ntoken_controller"
	case RoleNNRewardPool:
		return "nn_reward_pool"
	case RoleQuery:
		return "query"
	case RoleGovernance:
		return "governance"
	default:
		return fmt.Sprintf("[unknown role: %d]", uint8(r))
	}
}

// Roles binds each privileged role to exactly one identity.
type Roles struct {
	Mining           Address `json:"mining"`
	Staking          Address `json:"staking"`
	NTokenController Address `json:"ntoken_controller"`
	NNRewardPool     Address `json:"nn_reward_pool"`
	Query            Address `json:"query"`
	Governance       Address `json:"governance"`
}

// Identity returns the identity bound to the role.
func (r *Roles) Identity(role Role) Address {
	switch role {
	case RoleMining:
		return r.Mining
	case RoleStaking:
		return r.Staking
	case RoleNTokenController:
		return r.NTokenController
	case RoleNNRewardPool:
		return r.NNRewardPool
	case RoleQuery:
		return r.Query
	case RoleGovernance:
		return r.Governance
	default:
		return Address{}
	}
}

// Parameters are the pool parameters.
type Parameters struct {
	// ProtocolToken is the asset whose Add credits count towards the mined
	// total.
	ProtocolToken AssetID `json:"protocol_token"`

	// AllowRoleUpdates permits governance to rebind roles after setup.
	AllowRoleUpdates bool `json:"allow_role_updates,omitempty"`
}

// Genesis is the initial pool state.
type Genesis struct {
	Parameters Parameters `json:"params"`
	Roles      Roles      `json:"roles"`

	Assets []*AssetEntry        `json:"assets,omitempty"`
	Ledger map[Address]*Account `json:"ledger,omitempty"`

	MinedProtocolTokens quantity.Quantity `json:"mined_protocol_tokens"`
}

// BalanceQuery is a balance query.
type BalanceQuery struct {
	Owner Address `json:"owner"`
	Asset AssetID `json:"asset"`
}

// OwnerQuery is an account query.
type OwnerQuery struct {
	Owner Address `json:"owner"`
}

// DerivativeQuery is a derivative lookup query.
type DerivativeQuery struct {
	Asset AssetID `json:"asset"`
}

// Backend is the read-only pool query surface.
type Backend interface {
	// BalanceOf returns the available balance of (owner, asset).
	BalanceOf(ctx context.Context, query *BalanceQuery) (*quantity.Quantity, error)

	// FrozenBalanceOf returns the frozen balance of (owner, asset).
	FrozenBalanceOf(ctx context.Context, query *BalanceQuery) (*quantity.Quantity, error)

	// Account returns every non-zero balance of the owner.
	Account(ctx context.Context, query *OwnerQuery) (*Account, error)

	// Accounts returns the addresses of all accounts with a non-zero
	// balance.
	Accounts(ctx context.Context) ([]Address, error)

	// MinedProtocolTokens returns the running mined protocol token total.
	MinedProtocolTokens(ctx context.Context) (*quantity.Quantity, error)

	// ResolveDerivative returns the derivative paired with an asset.
	ResolveDerivative(ctx context.Context, query *DerivativeQuery) (*AssetID, error)

	// Assets returns all registered asset entries.
	Assets(ctx context.Context) ([]*AssetEntry, error)

	// Roles returns the current role bindings.
	Roles(ctx context.Context) (*Roles, error)

	// Parameters returns the pool parameters.
	Parameters(ctx context.Context) (*Parameters, error)

	// StateToGenesis returns a genesis document of the current state.
	StateToGenesis(ctx context.Context) (*Genesis, error)

	// WatchEvents returns a channel of committed ledger events.
	WatchEvents(ctx context.Context) (<-chan *Event, pubsub.ClosableSubscription, error)

	// Cleanup cleans up the backend.
	Cleanup()
}

// FreezeEvent is emitted when an available balance is frozen.
type FreezeEvent struct {
	Account Address           `json:"account"`
	Asset   AssetID           `json:"asset"`
	Amount  quantity.Quantity `json:"amount"`
}

// UnfreezeEvent is emitted when a frozen balance is released.
type UnfreezeEvent struct {
	Account Address           `json:"account"`
	Asset   AssetID           `json:"asset"`
	Amount  quantity.Quantity `json:"amount"`
}

// TransferEvent is emitted on an in-pool transfer.
type TransferEvent struct {
	Asset  AssetID           `json:"asset"`
	From   Address           `json:"from"`
	To     Address           `json:"to"`
	Amount quantity.Quantity `json:"amount"`
}

// AddEvent is emitted when balance is credited out of nothing.
type AddEvent struct {
	Account Address           `json:"account"`
	Asset   AssetID           `json:"asset"`
	Amount  quantity.Quantity `json:"amount"`
	Mined   bool              `json:"mined,omitempty"`
}

// DepositEvent is emitted when externally held assets enter pool custody.
type DepositEvent struct {
	Account Address           `json:"account"`
	Asset   AssetID           `json:"asset"`
	Amount  quantity.Quantity `json:"amount"`
}

// WithdrawEvent is emitted when assets leave pool custody.
type WithdrawEvent struct {
	Account Address           `json:"account"`
	Asset   AssetID           `json:"asset"`
	Amount  quantity.Quantity `json:"amount"`
}

// AssetRegisteredEvent is emitted when governance binds an asset.
type AssetRegisteredEvent struct {
	Entry AssetEntry `json:"entry"`
}

// RolesChangedEvent is emitted when governance rebinds roles.
type RolesChangedEvent struct {
	Roles Roles `json:"roles"`
}

// Event is a pool event. Exactly one field is set.
type Event struct {
	Seq uint64 `json:"seq"`

	Freeze          *FreezeEvent          `json:"freeze,omitempty"`
	Unfreeze        *UnfreezeEvent        `json:"unfreeze,omitempty"`
	Transfer        *TransferEvent        `json:"transfer,omitempty"`
	Add             *AddEvent             `json:"add,omitempty"`
	Deposit         *DepositEvent         `json:"deposit,omitempty"`
	Withdraw        *WithdrawEvent        `json:"withdraw,omitempty"`
	AssetRegistered *AssetRegisteredEvent `json:"asset_registered,omitempty"`
	RolesChanged    *RolesChangedEvent    `json:"roles_changed,omitempty"`
}
