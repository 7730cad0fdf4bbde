package api

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
)

// SanityCheck performs a sanity check on the pool parameters.
func (p *Parameters) SanityCheck() error {
	if !p.ProtocolToken.IsValid() || p.ProtocolToken.IsNative() {
		return fmt.Errorf("pool: sanity check failed: protocol token %s is invalid", p.ProtocolToken)
	}
	return nil
}

// SanityCheck performs a sanity check on the role bindings.
//
// Governance and mining must be bound; the remaining roles may be left
// unbound, in which case nobody holds them.
func (r *Roles) SanityCheck() error {
	var result *multierror.Error
	for role := RoleMining; role <= RoleMax; role++ {
		id := r.Identity(role)
		if id.IsReserved() {
			result = multierror.Append(result, fmt.Errorf("role %s is bound to a reserved address", role))
		}
	}
	if !r.Governance.IsValid() {
		result = multierror.Append(result, fmt.Errorf("role %s is not bound", RoleGovernance))
	}
	if !r.Mining.IsValid() {
		result = multierror.Append(result, fmt.Errorf("role %s is not bound", RoleMining))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("pool: sanity check failed: %w", err)
	}
	return nil
}

// SanityCheckAccount examines an account's balances, adding the totals per
// asset to the running totals.
func SanityCheckAccount(totals map[AssetID]*quantity.Quantity, id Address, acct *Account) error {
	if !id.IsValid() {
		return fmt.Errorf("pool: sanity check failed: account %s is invalid", id)
	}
	for asset, bal := range acct.Balances {
		if !asset.IsValid() {
			return fmt.Errorf("pool: sanity check failed: account %s holds invalid asset %s", id, asset)
		}
		if bal == nil || !bal.Available.IsValid() || !bal.Frozen.IsValid() {
			return fmt.Errorf("pool: sanity check failed: account %s has an invalid %s balance", id, asset)
		}
		total, err := bal.Total()
		if err != nil {
			return fmt.Errorf("pool: sanity check failed: account %s %s balance: %w", id, asset, err)
		}
		running := totals[asset]
		if running == nil {
			running = quantity.NewQuantity()
			totals[asset] = running
		}
		if err = running.Add(total); err != nil {
			return fmt.Errorf("pool: sanity check failed: total %s claims: %w", asset, err)
		}
	}
	return nil
}

// SanityCheck performs a sanity check on the genesis state. Every problem
// found is reported.
func (g *Genesis) SanityCheck() error {
	var result *multierror.Error

	if err := g.Parameters.SanityCheck(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := g.Roles.SanityCheck(); err != nil {
		result = multierror.Append(result, err)
	}

	seen := make(map[AssetID]bool)
	for _, entry := range g.Assets {
		if entry == nil {
			result = multierror.Append(result, fmt.Errorf("pool: sanity check failed: nil asset entry"))
			continue
		}
		if !entry.Asset.IsValid() || entry.Asset.IsNative() {
			result = multierror.Append(result, fmt.Errorf("pool: sanity check failed: asset %s is invalid", entry.Asset))
		}
		if !entry.Derivative.IsValid() {
			result = multierror.Append(result, fmt.Errorf("pool: sanity check failed: derivative of %s is invalid", entry.Asset))
		}
		if seen[entry.Asset] {
			result = multierror.Append(result, fmt.Errorf("pool: sanity check failed: duplicate asset %s", entry.Asset))
		}
		seen[entry.Asset] = true
	}

	totals := make(map[AssetID]*quantity.Quantity)
	for id, acct := range g.Ledger {
		if acct == nil {
			continue
		}
		if err := SanityCheckAccount(totals, id, acct); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if !g.MinedProtocolTokens.IsValid() {
		result = multierror.Append(result, fmt.Errorf("pool: sanity check failed: mined protocol tokens is invalid"))
	}

	return result.ErrorOrNil()
}
