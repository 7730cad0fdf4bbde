package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
)

func TestReason(t *testing.T) {
	require := require.New(t)

	require.Equal("unauthorized", Reason(pool.ErrUnauthorized))
	require.Equal("insufficient_balance", Reason(fmt.Errorf("wrapped: %w", pool.ErrInsufficientBalance)))
	require.Equal("external_transfer", Reason(pool.ErrExternalTransferFailed))
	require.Equal("internal", Reason(fmt.Errorf("boom")))
}

func TestObserve(t *testing.T) {
	require := require.New(t)

	before := testutil.ToFloat64(Operations.WithLabelValues("test_observe"))
	Observe("test_observe", nil)
	require.Equal(before+1, testutil.ToFloat64(Operations.WithLabelValues("test_observe")))

	Observe("test_observe", pool.ErrUnauthorized)
	require.Equal(1.0, testutil.ToFloat64(Failures.WithLabelValues("test_observe", "unauthorized")))

	SetMined(quantity.NewFromUint64(1234))
	require.Equal(1234.0, testutil.ToFloat64(MinedProtocolTokens))
}
