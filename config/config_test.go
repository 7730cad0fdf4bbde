package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	require.NoError(cfg.Validate(), "default config must be valid")
	require.Equal(StorageBackendBadger, cfg.Storage.Backend)
	require.Equal(MetricsModeNone, cfg.Metrics.Mode)
}

func TestParse(t *testing.T) {
	require := require.New(t)

	t.Setenv("NEST_POOL_TEST_DATADIR", "/var/lib/nest-pool")

	cfg, err := Parse([]byte(`
common:
  data_dir: ${NEST_POOL_TEST_DATADIR}
  log:
    format: json
    level:
      pool/ledger: debug
storage:
  backend: memory
  gc_interval: 1m
metrics:
  mode: pull
  address: 127.0.0.1:9100
grpc:
  address: 127.0.0.1:42261
`))
	require.NoError(err, "Parse")
	require.Equal("/var/lib/nest-pool", cfg.Common.DataDir)
	require.Equal("json", cfg.Common.Log.Format)
	require.Equal("debug", cfg.Common.Log.Level["pool/ledger"])
	require.Equal("warn", cfg.Common.Log.Level["default"], "defaults should be merged")
	require.Equal(StorageBackendMemory, cfg.Storage.Backend)
	require.Equal(time.Minute, cfg.Storage.GCInterval)
	require.Equal("genesis.json", cfg.Genesis.File, "untouched sections keep defaults")
	require.Equal("127.0.0.1:42261", cfg.GRPC.Address)

	cfg, err = Parse(nil)
	require.NoError(err, "empty document")
	require.Equal(DefaultConfig(), *cfg)
}

func TestParseInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
	}{
		{"UnknownField", "storage:\n  engine: badger\n"},
		{"UnknownBackend", "storage:\n  backend: leveldb\n"},
		{"UnknownMetricsMode", "metrics:\n  mode: push\n"},
		{"PullWithoutAddress", "metrics:\n  mode: pull\n  address: \"\"\n"},
		{"UnknownLogFormat", "common:\n  log:\n    format: xml\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
		})
	}
}

func TestInitConfig(t *testing.T) {
	require := require.New(t)

	defer func() {
		GlobalConfig = DefaultConfig()
	}()

	fn := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(os.WriteFile(fn, []byte("genesis:\n  file: /etc/nest-pool/genesis.json\n"), 0o600))

	require.NoError(InitConfig(fn), "InitConfig")
	require.Equal("/etc/nest-pool/genesis.json", GlobalConfig.Genesis.File)

	err := InitConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(err, "missing file")
}
