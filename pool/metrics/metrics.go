// Package metrics contains the pool prometheus collectors.
package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
)

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nest_pool_operations",
			Help: "Number of committed pool operations.",
		},
		[]string{"op"},
	)
	Failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nest_pool_failures",
			Help: "Number of rejected pool operations.",
		},
		[]string{"op", "reason"},
	)
	MinedProtocolTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nest_pool_mined_protocol_tokens",
			Help: "Running total of mined protocol tokens.",
		},
	)

	poolCollectors = []prometheus.Collector{
		Operations,
		Failures,
		MinedProtocolTokens,
	}

	metricsOnce sync.Once
)

func init() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(poolCollectors...)
	})
}

// Reason returns the failure label for an error.
func Reason(err error) string {
	switch {
	case errors.Is(err, pool.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, pool.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, pool.ErrArithmeticOverflow):
		return "overflow"
	case errors.Is(err, pool.ErrExternalTransferFailed):
		return "external_transfer"
	case errors.Is(err, pool.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, pool.ErrNotFound):
		return "not_found"
	case errors.Is(err, pool.ErrReconciliation):
		return "reconciliation"
	default:
		return "internal"
	}
}

// Observe records the outcome of an operation.
func Observe(op string, err error) {
	if err != nil {
		Failures.With(prometheus.Labels{"op": op, "reason": Reason(err)}).Inc()
		return
	}
	Operations.With(prometheus.Labels{"op": op}).Inc()
}

// SetMined updates the mined protocol token gauge.
func SetMined(q *quantity.Quantity) {
	f, _ := new(big.Float).SetInt(q.ToBigInt()).Float64()
	MinedProtocolTokens.Set(f)
}
