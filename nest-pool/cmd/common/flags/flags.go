// Package flags implements common flags used across multiple commands.
package flags

import (
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// CfgGenesisFile is the flag used to specify a genesis file.
	CfgGenesisFile = "genesis.file"

	cfgVerbose = "verbose"
	cfgForce   = "force"

	// CfgDryRun is the flag used to specify a dry-run of an operation.
	CfgDryRun = "dry_run"
)

var (
	// VerboseFlags has the verbose flag.
	VerboseFlags = flag.NewFlagSet("", flag.ContinueOnError)
	// ForceFlags has the force flag.
	ForceFlags = flag.NewFlagSet("", flag.ContinueOnError)

	// GenesisFileFlags has the genesis file flag.
	GenesisFileFlags = flag.NewFlagSet("", flag.ContinueOnError)

	// DryRunFlag has the dry-run flag.
	DryRunFlag = flag.NewFlagSet("", flag.ContinueOnError)
)

// Verbose returns true iff the verbose flag is set.
func Verbose() bool {
	return viper.GetBool(cfgVerbose)
}

// Force returns true iff the force flag is set.
func Force() bool {
	return viper.GetBool(cfgForce)
}

// GenesisFile returns the set genesis file, falling back to def when the
// flag was not given.
func GenesisFile(def string) string {
	if viper.IsSet(CfgGenesisFile) {
		return viper.GetString(CfgGenesisFile)
	}
	return def
}

// DryRun returns true iff the dry-run flag is set.
func DryRun() bool {
	return viper.GetBool(CfgDryRun)
}

func init() {
	VerboseFlags.BoolP(cfgVerbose, "v", false, "verbose output")

	ForceFlags.Bool(cfgForce, false, "force")

	GenesisFileFlags.StringP(CfgGenesisFile, "g", "genesis.json", "path to genesis file")

	DryRunFlag.BoolP(CfgDryRun, "n", false, "don't actually do anything, just show what will be done")

	for _, v := range []*flag.FlagSet{
		VerboseFlags,
		ForceFlags,
		GenesisFileFlags,
		DryRunFlag,
	} {
		_ = viper.BindPFlags(v)
	}
}
