// Package cmd implements the commands for the nest-pool executable.
package cmd

import (
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/version"
	"github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/account"
	"github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/audit"
	cmdCommon "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common"
	"github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/events"
	"github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/genesis"
	"github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/serve"
)

var rootCmd = &cobra.Command{
	Use:     "nest-pool",
	Short:   "Nest pool ledger",
	Version: version.SoftwareVersion,
}

// RootCommand returns the root (top level) cobra.Command.
func RootCommand() *cobra.Command {
	return rootCmd
}

// Execute spawns the main entry point after handling the config file
// and command line arguments.
func Execute() {
	// Only the owner should have read/write/execute permissions for
	// anything created by the nest-pool binary.
	syscall.Umask(0o077)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initVersions() {
	cobra.AddTemplateFunc("poolVersion", func() interface{} { return version.Versions })

	rootCmd.SetVersionTemplate(`Software version: {{.Version}}
{{- with poolVersion }}
Ledger protocol version: {{ .LedgerProtocol }}
Go toolchain version:    {{ .Toolchain }}
{{ end -}}
`)
}

func init() {
	cobra.OnInitialize(cmdCommon.InitConfig)
	initVersions()

	rootCmd.PersistentFlags().AddFlagSet(cmdCommon.RootFlags)

	// Register all of the sub-commands.
	for _, v := range []func(*cobra.Command){
		account.Register,
		audit.Register,
		events.Register,
		genesis.Register,
		serve.Register,
	} {
		v(rootCmd)
	}
}
