package common

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/config"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/tests"
)

func TestLoadGenesis(t *testing.T) {
	require := require.New(t)

	doc := tests.TestGenesis()
	doc.Ledger = map[pool.Address]*pool.Account{
		tests.AccountA: {
			Balances: map[pool.AssetID]*pool.Balance{
				pool.NativeAsset: {Available: *tests.QtyFromInt(40)},
			},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(err, "json.Marshal")

	dir := t.TempDir()
	fn := filepath.Join(dir, "genesis.json")
	require.NoError(os.WriteFile(fn, raw, 0o600))

	loaded, err := LoadGenesis(fn)
	require.NoError(err, "LoadGenesis")
	require.EqualValues(doc.Roles, loaded.Roles)
	require.Equal("40", loaded.Ledger[tests.AccountA].Balance(pool.NativeAsset).Available.String())

	doc.Roles.Governance = pool.Address{}
	raw, err = json.Marshal(doc)
	require.NoError(err, "json.Marshal")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(os.WriteFile(bad, raw, 0o600))
	_, err = LoadGenesis(bad)
	require.Error(err, "LoadGenesis should reject an insane document")

	_, err = LoadGenesis(filepath.Join(dir, "missing.json"))
	require.Error(err, "LoadGenesis should fail on a missing file")
}

func TestOpenStore(t *testing.T) {
	require := require.New(t)

	saved := config.GlobalConfig
	defer func() {
		config.GlobalConfig = saved
	}()
	ctx := context.Background()

	config.GlobalConfig.Storage.Backend = config.StorageBackendMemory
	store, err := OpenStore(ctx)
	require.NoError(err, "OpenStore (memory)")
	store.Close()

	config.GlobalConfig.Storage.Backend = config.StorageBackendBadger
	config.GlobalConfig.Common.DataDir = ""
	_, err = OpenStore(ctx)
	require.Error(err, "badger requires a data directory")

	config.GlobalConfig.Common.DataDir = t.TempDir()
	store, err = OpenStore(ctx)
	require.NoError(err, "OpenStore (badger)")
	store.Close()
	require.DirExists(filepath.Join(config.GlobalConfig.Common.DataDir, StoreDirName))
}

func TestNormalizePath(t *testing.T) {
	require := require.New(t)

	require.True(filepath.IsAbs(normalizePath("genesis.json")))
	require.Equal("/etc/nest-pool/genesis.json", normalizePath("/etc/nest-pool/../nest-pool/genesis.json"))
}

func TestWriteJSON(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	doc := tests.TestGenesis()
	require.NoError(WriteJSON(&buf, doc), "WriteJSON")
	require.Contains(buf.String(), "\n  \"", "output is indented")
	require.Equal(byte('\n'), buf.Bytes()[buf.Len()-1], "output ends with a newline")

	var decoded pool.Genesis
	require.NoError(json.Unmarshal(buf.Bytes(), &decoded), "output is valid JSON")
	require.Equal(doc.Roles, decoded.Roles)

	require.Error(WriteJSON(&buf, make(chan int)), "unsupported type")
}
