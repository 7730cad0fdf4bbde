package gateway

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/metrics"
)

// AssetReport is the reconciliation result of one asset.
type AssetReport struct {
	Asset pool.AssetID `json:"asset"`

	// Custody is the pool's balance on the external contract.
	Custody quantity.Quantity `json:"custody"`
	// Claims is the sum of available and frozen ledger balances.
	Claims quantity.Quantity `json:"claims"`
	// Shortfall is Claims - Custody when custody does not cover the
	// claims, zero otherwise.
	Shortfall quantity.Quantity `json:"shortfall"`
}

// Report is a reconciliation report.
type Report struct {
	Assets []*AssetReport `json:"assets"`

	// Unbacked lists assets with ledger claims but no external contract.
	Unbacked []pool.AssetID `json:"unbacked,omitempty"`
}

func sortAssets(assets []pool.AssetID) {
	sort.Slice(assets, func(i, j int) bool {
		a, _ := assets[i].MarshalBinary()
		b, _ := assets[j].MarshalBinary()
		return bytes.Compare(a, b) < 0
	})
}

// Reconcile checks that, for every asset with a contract, pool custody
// covers the ledger's claims. Every shortfall is reported and the error
// matches ErrReconciliation.
func (g *Gateway) Reconcile(ctx context.Context) (*Report, error) {
	claims, err := g.ledger.Claims(ctx)
	if err != nil {
		return nil, err
	}

	var assets []pool.AssetID
	for asset := range g.contracts {
		assets = append(assets, asset)
	}
	sortAssets(assets)

	var (
		report Report
		result *multierror.Error
	)
	for _, asset := range assets {
		custody, err := g.contracts[asset].BalanceOf(ctx, pool.PoolAddress)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: failed to query custody: %w", asset, err))
			continue
		}
		claim := claims[asset]
		if claim == nil {
			claim = quantity.NewQuantity()
		}

		ar := &AssetReport{
			Asset:   asset,
			Custody: *custody,
			Claims:  *claim,
		}
		if custody.Cmp(claim) < 0 {
			shortfall := claim.Clone()
			_ = shortfall.Sub(custody)
			ar.Shortfall = *shortfall
			result = multierror.Append(result, fmt.Errorf("%s: custody %s below claims %s", asset, custody, claim))
		}
		report.Assets = append(report.Assets, ar)
	}

	for asset := range claims {
		if _, ok := g.contracts[asset]; !ok {
			report.Unbacked = append(report.Unbacked, asset)
		}
	}
	sortAssets(report.Unbacked)

	if err = result.ErrorOrNil(); err != nil {
		err = errors.WithContext(pool.ErrReconciliation, err.Error())
		g.logger.Error("reconciliation failed",
			"err", err,
		)
	}
	metrics.Observe("reconcile", err)
	return &report, err
}
