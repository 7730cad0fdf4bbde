package metrics

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/config"
)

func TestPullService(t *testing.T) {
	require := require.New(t)

	saved := config.GlobalConfig
	defer func() {
		config.GlobalConfig = saved
	}()

	config.GlobalConfig.Metrics = config.MetricsConfig{Mode: config.MetricsModeNone}
	svc, err := New()
	require.NoError(err, "New (none)")
	_, ok := svc.(*pullService)
	require.False(ok, "none mode should not listen")

	config.GlobalConfig.Metrics = config.MetricsConfig{
		Mode:    config.MetricsModePull,
		Address: "127.0.0.1:0",
	}
	svc, err = New()
	require.NoError(err, "New (pull)")
	ps, ok := svc.(*pullService)
	require.True(ok, "pull mode should listen")

	require.NoError(ps.Start(), "Start")
	defer func() {
		ps.Stop()
		<-ps.Quit()
		ps.Cleanup()
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", ps.Addr()))
	require.NoError(err, "GET /metrics")
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(err, "read body")
	require.Contains(string(body), MetricUp)
}
