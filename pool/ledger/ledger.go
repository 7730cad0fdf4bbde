// Package ledger implements the pool ledger: authorization-gated atomic
// balance primitives over a transactional store.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/accessctl"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/pubsub"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	db "github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/metrics"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/state"
)

var _ pool.Backend = (*Ledger)(nil)

// Ledger is the pool ledger.
type Ledger struct {
	sync.Mutex

	logger *logging.Logger

	db     db.DB
	policy atomic.Value

	eventNotifier *pubsub.Broker
	seq           uint64
}

// Apply checks that the caller may perform the action and runs fn in a
// single storage transaction, committing only if fn succeeds. Events
// emitted by fn are broadcast after the commit.
//
// Mutations are serialized. Reads do not take the mutation lock and see
// the last committed state.
func (l *Ledger) Apply(ctx context.Context, caller pool.Address, act accessctl.Action, fn func(*Tx) error) error {
	op := string(act)

	l.Lock()
	defer l.Unlock()

	if err := l.CheckRole(caller, act); err != nil {
		l.logger.Debug("rejected unauthorized call",
			"op", op,
			"caller", caller,
		)
		metrics.Observe(op, err)
		return err
	}

	var tx *Tx
	err := l.db.Update(ctx, func(dbTx db.Tx) error {
		tx = &Tx{state: state.NewMutableState(dbTx)}
		return fn(tx)
	})
	if err != nil {
		metrics.Observe(op, err)
		if errors.Is(err, pool.ErrInsufficientBalance) ||
			errors.Is(err, pool.ErrInvalidArgument) ||
			errors.Is(err, pool.ErrUnauthorized) ||
			errors.Is(err, pool.ErrNotFound) {
			l.logger.Debug("operation rejected",
				"op", op,
				"caller", caller,
				"err", err,
			)
		} else {
			l.logger.Error("operation failed",
				"op", op,
				"caller", caller,
				"err", err,
			)
		}
		return err
	}

	for _, hook := range tx.onCommit {
		hook()
	}
	if tx.mined != nil {
		metrics.SetMined(tx.mined)
	}
	for _, ev := range tx.events {
		l.seq++
		ev.Seq = l.seq
		l.eventNotifier.Broadcast(ev)
	}

	metrics.Observe(op, tx.partial)
	if tx.partial != nil {
		l.logger.Warn("operation committed with partial failure",
			"op", op,
			"caller", caller,
			"err", tx.partial,
		)
		return tx.partial
	}

	l.logger.Debug("operation committed",
		"op", op,
		"caller", caller,
		"events", len(tx.events),
	)
	return nil
}

// Freeze moves amount from the available to the frozen balance of
// (account, asset).
func (l *Ledger) Freeze(ctx context.Context, caller, account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	return l.Apply(ctx, caller, ActionFreeze, func(tx *Tx) error {
		return tx.Freeze(account, asset, amount)
	})
}

// Unfreeze moves amount from the frozen to the available balance of
// (account, asset).
func (l *Ledger) Unfreeze(ctx context.Context, caller, account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	return l.Apply(ctx, caller, ActionUnfreeze, func(tx *Tx) error {
		return tx.Unfreeze(account, asset, amount)
	})
}

// FreezeNativeAndToken freezes native currency and one token for the
// account as a single step.
func (l *Ledger) FreezeNativeAndToken(
	ctx context.Context,
	caller, account pool.Address,
	nativeAmount *quantity.Quantity,
	asset pool.AssetID,
	tokenAmount *quantity.Quantity,
) error {
	return l.Apply(ctx, caller, ActionFreezeNativeAndToken, func(tx *Tx) error {
		if asset.IsNative() {
			return errors.WithContext(pool.ErrInvalidArgument, "token half must not be the native asset")
		}
		if err := tx.Freeze(account, pool.NativeAsset, nativeAmount); err != nil {
			return err
		}
		return tx.Freeze(account, asset, tokenAmount)
	})
}

// UnfreezeNativeAndToken is the inverse of FreezeNativeAndToken.
func (l *Ledger) UnfreezeNativeAndToken(
	ctx context.Context,
	caller, account pool.Address,
	nativeAmount *quantity.Quantity,
	asset pool.AssetID,
	tokenAmount *quantity.Quantity,
) error {
	return l.Apply(ctx, caller, ActionUnfreezeNativeAndToken, func(tx *Tx) error {
		if asset.IsNative() {
			return errors.WithContext(pool.ErrInvalidArgument, "token half must not be the native asset")
		}
		if err := tx.Unfreeze(account, pool.NativeAsset, nativeAmount); err != nil {
			return err
		}
		return tx.Unfreeze(account, asset, tokenAmount)
	})
}

// TransferInPool moves amount of available balance from one account to
// another without touching external custody.
func (l *Ledger) TransferInPool(ctx context.Context, caller pool.Address, asset pool.AssetID, from, to pool.Address, amount *quantity.Quantity) error {
	return l.Apply(ctx, caller, ActionTransferInPool, func(tx *Tx) error {
		return tx.Transfer(asset, from, to, amount)
	})
}

// Add credits amount to the available balance of (account, asset) with no
// matching deposit. Credits of the protocol token advance the mined total.
func (l *Ledger) Add(ctx context.Context, caller, account pool.Address, asset pool.AssetID, amount *quantity.Quantity) error {
	return l.Apply(ctx, caller, ActionAdd, func(tx *Tx) error {
		return tx.Mint(account, asset, amount)
	})
}

// InitProtocolTokenLedger credits the mining reserve with protocol tokens.
// The credit does not count as mined. It fails while the reserve still
// holds protocol tokens.
func (l *Ledger) InitProtocolTokenLedger(ctx context.Context, caller pool.Address, amount *quantity.Quantity) error {
	return l.Apply(ctx, caller, ActionInitProtocolTokenLedger, func(tx *Tx) error {
		params, err := tx.state.Parameters()
		if err != nil {
			return fmt.Errorf("pool/ledger: failed to fetch parameters: %w", err)
		}
		reserve, err := tx.balance(pool.MiningReserveAddress, params.ProtocolToken)
		if err != nil {
			return err
		}
		if !reserve.Available.IsZero() || !reserve.Frozen.IsZero() {
			return errors.WithContext(pool.ErrInvalidArgument, "mining reserve already initialized")
		}
		if err = tx.Credit(pool.MiningReserveAddress, params.ProtocolToken, amount); err != nil {
			return err
		}
		tx.Emit(&pool.Event{Add: &pool.AddEvent{
			Account: pool.MiningReserveAddress,
			Asset:   params.ProtocolToken,
			Amount:  *amount.Clone(),
		}})
		return nil
	})
}

// SetRoles rebinds the privileged roles. Only governance may do this and
// only when the parameters allow role updates.
func (l *Ledger) SetRoles(ctx context.Context, caller pool.Address, roles *pool.Roles) error {
	if roles == nil {
		return errors.WithContext(pool.ErrInvalidArgument, "nil roles")
	}
	if err := roles.SanityCheck(); err != nil {
		return errors.WithContext(pool.ErrInvalidArgument, err.Error())
	}

	err := l.Apply(ctx, caller, ActionSetRoles, func(tx *Tx) error {
		params, err := tx.state.Parameters()
		if err != nil {
			return fmt.Errorf("pool/ledger: failed to fetch parameters: %w", err)
		}
		if !params.AllowRoleUpdates {
			return errors.WithContext(pool.ErrUnauthorized, "role updates are disabled")
		}
		if err = tx.state.SetRoles(roles); err != nil {
			return fmt.Errorf("pool/ledger: failed to set roles: %w", err)
		}
		tx.Emit(&pool.Event{RolesChanged: &pool.RolesChangedEvent{Roles: *roles}})
		tx.onCommit = append(tx.onCommit, func() {
			l.policy.Store(NewPolicy(roles))
		})
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("roles changed",
		"governance", roles.Governance,
		"mining", roles.Mining,
	)
	return nil
}

func (l *Ledger) view(ctx context.Context, fn func(*state.ImmutableState) error) error {
	return l.db.View(ctx, func(tx db.Tx) error {
		return fn(state.NewImmutableState(tx))
	})
}

// BalanceOf returns the available balance of (owner, asset).
func (l *Ledger) BalanceOf(ctx context.Context, query *pool.BalanceQuery) (*quantity.Quantity, error) {
	var q *quantity.Quantity
	err := l.view(ctx, func(st *state.ImmutableState) error {
		bal, err := st.Balance(query.Owner, query.Asset)
		if err != nil {
			return err
		}
		q = &bal.Available
		return nil
	})
	return q, err
}

// FrozenBalanceOf returns the frozen balance of (owner, asset).
func (l *Ledger) FrozenBalanceOf(ctx context.Context, query *pool.BalanceQuery) (*quantity.Quantity, error) {
	var q *quantity.Quantity
	err := l.view(ctx, func(st *state.ImmutableState) error {
		bal, err := st.Balance(query.Owner, query.Asset)
		if err != nil {
			return err
		}
		q = &bal.Frozen
		return nil
	})
	return q, err
}

func (l *Ledger) Account(ctx context.Context, query *pool.OwnerQuery) (acct *pool.Account, err error) {
	err = l.view(ctx, func(st *state.ImmutableState) error {
		acct, err = st.Account(query.Owner)
		return err
	})
	return
}

func (l *Ledger) Accounts(ctx context.Context) (addrs []pool.Address, err error) {
	err = l.view(ctx, func(st *state.ImmutableState) error {
		addrs, err = st.Accounts()
		return err
	})
	return
}

// Claims returns, per asset, the total available and frozen balance held
// by all accounts.
func (l *Ledger) Claims(ctx context.Context) (claims map[pool.AssetID]*quantity.Quantity, err error) {
	err = l.view(ctx, func(st *state.ImmutableState) error {
		claims, err = st.Claims()
		return err
	})
	return
}

func (l *Ledger) MinedProtocolTokens(ctx context.Context) (q *quantity.Quantity, err error) {
	err = l.view(ctx, func(st *state.ImmutableState) error {
		q, err = st.MinedProtocolTokens()
		return err
	})
	return
}

func (l *Ledger) Roles(ctx context.Context) (roles *pool.Roles, err error) {
	err = l.view(ctx, func(st *state.ImmutableState) error {
		roles, _, err = st.Roles()
		return err
	})
	return
}

func (l *Ledger) Parameters(ctx context.Context) (params *pool.Parameters, err error) {
	err = l.view(ctx, func(st *state.ImmutableState) error {
		params, err = st.Parameters()
		return err
	})
	return
}

// StateToGenesis exports the current state as a genesis document.
func (l *Ledger) StateToGenesis(ctx context.Context) (*pool.Genesis, error) {
	var g pool.Genesis
	err := l.view(ctx, func(st *state.ImmutableState) error {
		params, err := st.Parameters()
		if err != nil {
			return err
		}
		roles, _, err := st.Roles()
		if err != nil {
			return err
		}
		assets, err := st.Assets()
		if err != nil {
			return err
		}
		ledger, err := st.Ledger()
		if err != nil {
			return err
		}
		mined, err := st.MinedProtocolTokens()
		if err != nil {
			return err
		}

		g = pool.Genesis{
			Parameters:          *params,
			Roles:               *roles,
			Assets:              assets,
			Ledger:              ledger,
			MinedProtocolTokens: *mined,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// WatchEvents returns a channel of committed ledger events.
func (l *Ledger) WatchEvents(ctx context.Context) (<-chan *pool.Event, pubsub.ClosableSubscription, error) {
	typedCh := make(chan *pool.Event)
	sub := l.eventNotifier.Subscribe()
	sub.Unwrap(typedCh)

	return typedCh, sub, nil
}

// Cleanup is a no-op. The database is owned by the caller.
func (l *Ledger) Cleanup() {
}

func initGenesis(st *state.MutableState, g *pool.Genesis) error {
	if err := st.SetParameters(&g.Parameters); err != nil {
		return fmt.Errorf("pool/ledger: failed to set parameters: %w", err)
	}
	if err := st.SetRoles(&g.Roles); err != nil {
		return fmt.Errorf("pool/ledger: failed to set roles: %w", err)
	}
	for _, entry := range g.Assets {
		if err := st.SetAssetEntry(entry); err != nil {
			return fmt.Errorf("pool/ledger: failed to set asset entry: %w", err)
		}
	}
	for addr, acct := range g.Ledger {
		if acct == nil {
			continue
		}
		for asset, bal := range acct.Balances {
			if err := st.SetBalance(addr, asset, bal); err != nil {
				return fmt.Errorf("pool/ledger: failed to set balance: %w", err)
			}
		}
	}
	if err := st.SetMinedProtocolTokens(&g.MinedProtocolTokens); err != nil {
		return fmt.Errorf("pool/ledger: failed to set mined total: %w", err)
	}
	return nil
}

// New opens a ledger over the store. An uninitialized store is populated
// from the genesis document, which is ignored otherwise.
func New(ctx context.Context, store db.DB, genesis *pool.Genesis) (*Ledger, error) {
	l := &Ledger{
		logger:        logging.GetLogger("pool/ledger"),
		db:            store,
		eventNotifier: pubsub.NewBroker(false),
	}

	var (
		roles *pool.Roles
		mined *quantity.Quantity
	)
	err := store.Update(ctx, func(tx db.Tx) error {
		st := state.NewMutableState(tx)

		r, ok, err := st.Roles()
		if err != nil {
			return err
		}
		if ok {
			roles = r
			if genesis != nil {
				l.logger.Info("state already initialized, ignoring genesis")
			}
			mined, err = st.MinedProtocolTokens()
			return err
		}

		if genesis == nil {
			return errors.WithContext(pool.ErrInvalidArgument, "uninitialized state and no genesis")
		}
		if err = genesis.SanityCheck(); err != nil {
			return errors.WithContext(pool.ErrInvalidArgument, err.Error())
		}
		if err = initGenesis(st, genesis); err != nil {
			return err
		}
		roles = &genesis.Roles
		mined = &genesis.MinedProtocolTokens

		l.logger.Info("initialized state from genesis",
			"assets", len(genesis.Assets),
			"accounts", len(genesis.Ledger),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.policy.Store(NewPolicy(roles))
	metrics.SetMined(mined)

	return l, nil
}
