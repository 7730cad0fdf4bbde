// Package common implements common nest-pool command options and utilities.
package common

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/config"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	db "github.com/MLY0813/NEST-Oracle-V3.5/pool/db/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/badger"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/memory"
)

const (
	// CfgConfigFile is the flag used to specify a config file.
	CfgConfigFile = "config"
	// CfgDataDir is the flag used to specify the data directory.
	CfgDataDir = "datadir"
	// CfgStorageBackend is the flag used to select the storage backend.
	CfgStorageBackend = "storage.backend"

	// StoreDirName is the name of the ledger database directory under the
	// data directory.
	StoreDirName = "pool"
)

var (
	cfgFile string

	// RootFlags has the flags that are common across all commands.
	RootFlags = flag.NewFlagSet("", flag.ContinueOnError)

	rootLog = logging.GetLogger("nest-pool")
)

// DataDir returns the data directory iff one is set.
func DataDir() string {
	return config.GlobalConfig.Common.DataDir
}

// EarlyLogAndExit logs the error and exits.
//
// Note: This routine should only be used prior to the logging system
// being initialized.
func EarlyLogAndExit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// InitConfig initializes the command configuration.
//
// WARNING: This is exposed for the benefit of tests and the interface
// is not guaranteed to be stable.
func InitConfig() {
	if cfgFile != "" {
		if err := config.InitConfig(cfgFile); err != nil {
			EarlyLogAndExit(err)
		}
	}

	// Command line flags take precedence over the config file.
	applyFlagOverrides(&config.GlobalConfig)
	if err := config.GlobalConfig.Validate(); err != nil {
		EarlyLogAndExit(fmt.Errorf("invalid configuration: %w", err))
	}

	if dataDir := DataDir(); dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			EarlyLogAndExit(fmt.Errorf("failed to create data directory: %w", err))
		}
	}

	if err := initLogging(); err != nil {
		EarlyLogAndExit(err)
	}
}

func applyFlagOverrides(cfg *config.Config) {
	if viper.IsSet(CfgDataDir) {
		cfg.Common.DataDir = normalizePath(viper.GetString(CfgDataDir))
	}
	if viper.IsSet(cfgLogFile) {
		cfg.Common.Log.File = viper.GetString(cfgLogFile)
	}
	if viper.IsSet(cfgLogFmt) {
		cfg.Common.Log.Format = viper.GetString(cfgLogFmt)
	}
	if viper.IsSet(cfgLogLevel) {
		if cfg.Common.Log.Level == nil {
			cfg.Common.Log.Level = make(map[string]string)
		}
		cfg.Common.Log.Level["default"] = viper.GetString(cfgLogLevel)
	}
	if viper.IsSet(CfgStorageBackend) {
		cfg.Storage.Backend = viper.GetString(CfgStorageBackend)
	}
}

// Init initializes the common environment across all commands.
func Init() error {
	rootLog.Debug("common initialization complete",
		"data_dir", DataDir(),
		"storage_backend", config.GlobalConfig.Storage.Backend,
	)
	return nil
}

// LoadGenesis reads and sanity checks a JSON pool genesis document.
func LoadGenesis(fn string) (*pool.Genesis, error) {
	raw, err := os.ReadFile(normalizePath(fn))
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file '%s': %w", fn, err)
	}

	var doc pool.Genesis
	if err = json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse genesis file '%s': %w", fn, err)
	}
	if err = doc.SanityCheck(); err != nil {
		return nil, fmt.Errorf("genesis file '%s' failed sanity check: %w", fn, err)
	}
	return &doc, nil
}

// OpenStore opens the configured ledger storage backend.
func OpenStore(ctx context.Context) (db.DB, error) {
	cfg := config.GlobalConfig.Storage

	switch cfg.Backend {
	case config.StorageBackendMemory:
		rootLog.Warn("using the in-memory storage backend, state will not persist")
		return memory.New(), nil
	case config.StorageBackendBadger:
		dataDir := DataDir()
		if dataDir == "" {
			return nil, fmt.Errorf("data directory must be set for the %s backend", cfg.Backend)
		}
		return badger.New(&badger.Config{
			Dir:         filepath.Join(dataDir, StoreDirName),
			SyncWrites:  cfg.SyncWrites,
			Compression: cfg.Compression,
			GCInterval:  cfg.GCInterval,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// normalizePath expands a leading ~ and makes relative paths absolute.
func normalizePath(f string) string {
	if strings.HasPrefix(f, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			f = filepath.Join(home, f[2:])
		}
	}
	if !filepath.IsAbs(f) {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
	}
	return filepath.Clean(f)
}

func init() {
	initLoggingFlags()

	RootFlags.StringVar(&cfgFile, CfgConfigFile, "", "config file")
	RootFlags.String(CfgDataDir, "", "data directory")
	RootFlags.String(CfgStorageBackend, config.StorageBackendBadger, "ledger storage backend (memory, badger)")
	_ = viper.BindPFlags(RootFlags)
	RootFlags.AddFlagSet(loggingFlags)
}
