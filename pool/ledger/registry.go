package ledger

import (
	"context"
	"fmt"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/state"
)

// RegisterAsset binds an asset to its paired derivative, replacing any
// previous binding.
func (l *Ledger) RegisterAsset(ctx context.Context, caller pool.Address, asset, derivative pool.AssetID) error {
	return l.Apply(ctx, caller, ActionRegisterAsset, func(tx *Tx) error {
		switch {
		case !asset.IsValid() || asset.IsNative():
			return errors.WithContext(pool.ErrInvalidArgument, fmt.Sprintf("invalid asset %s", asset))
		case !derivative.IsValid():
			return errors.WithContext(pool.ErrInvalidArgument, fmt.Sprintf("invalid derivative %s", derivative))
		}

		entry := &pool.AssetEntry{
			Asset:      asset,
			Derivative: derivative,
		}
		if err := tx.state.SetAssetEntry(entry); err != nil {
			return fmt.Errorf("pool/ledger: failed to set asset entry: %w", err)
		}
		tx.Emit(&pool.Event{AssetRegistered: &pool.AssetRegisteredEvent{Entry: *entry}})
		return nil
	})
}

// ResolveDerivative returns the derivative paired with an asset, or
// ErrNotFound.
func (l *Ledger) ResolveDerivative(ctx context.Context, query *pool.DerivativeQuery) (*pool.AssetID, error) {
	var derivative *pool.AssetID
	err := l.view(ctx, func(st *state.ImmutableState) error {
		entry, err := st.AssetEntry(query.Asset)
		if err != nil {
			return err
		}
		derivative = &entry.Derivative
		return nil
	})
	return derivative, err
}

// Assets returns all registered asset entries.
func (l *Ledger) Assets(ctx context.Context) (entries []*pool.AssetEntry, err error) {
	err = l.view(ctx, func(st *state.ImmutableState) error {
		entries, err = st.Assets()
		return err
	})
	return
}
