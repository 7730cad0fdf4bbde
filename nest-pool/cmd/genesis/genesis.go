// Package genesis implements the ledger initialization and genesis
// document sub-commands.
package genesis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/config"
	cmdCommon "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common"
	cmdFlags "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common/flags"
	cmdGrpc "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common/grpc"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/ledger"
)

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "initialize the ledger database from a genesis document",
		Run:   doInit,
	}

	genesisCmd = &cobra.Command{
		Use:   "genesis",
		Short: "genesis document utilities",
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "sanity check a genesis document",
		Run:   doCheck,
	}

	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "dump the current ledger state as a genesis document",
		Run:   doDump,
	}

	initFlags  = flag.NewFlagSet("", flag.ContinueOnError)
	checkFlags = flag.NewFlagSet("", flag.ContinueOnError)

	logger = logging.GetLogger("cmd/genesis")
)

func genesisFile() string {
	return cmdFlags.GenesisFile(config.GlobalConfig.Genesis.File)
}

func loadGenesis() *pool.Genesis {
	fn := genesisFile()
	doc, err := cmdCommon.LoadGenesis(fn)
	if err != nil {
		logger.Error("failed to load genesis document",
			"file", fn,
			"err", err,
		)
		os.Exit(1)
	}
	return doc
}

func printSummary(doc *pool.Genesis) {
	fmt.Printf("Accounts:              %d\n", len(doc.Ledger))
	fmt.Printf("Registered assets:     %d\n", len(doc.Assets))
	fmt.Printf("Protocol token:        %s\n", doc.Parameters.ProtocolToken)
	fmt.Printf("Mined protocol tokens: %s\n", doc.MinedProtocolTokens)
	if cmdFlags.Verbose() {
		for role := pool.RoleMining; role <= pool.RoleMax; role++ {
			fmt.Printf("  %-18s %s\n", role.String()+":", doc.Roles.Identity(role))
		}
	}
}

func doInit(cmd *cobra.Command, args []string) {
	if err := cmdCommon.Init(); err != nil {
		cmdCommon.EarlyLogAndExit(err)
	}

	doc := loadGenesis()
	if cmdFlags.DryRun() {
		printSummary(doc)
		return
	}

	if config.GlobalConfig.Storage.Backend == config.StorageBackendMemory {
		logger.Error("refusing to initialize a non-persistent ledger")
		os.Exit(1)
	}

	if cmdFlags.Force() {
		dir := filepath.Join(cmdCommon.DataDir(), cmdCommon.StoreDirName)
		logger.Warn("removing existing ledger database",
			"dir", dir,
		)
		if err := os.RemoveAll(dir); err != nil {
			logger.Error("failed to remove existing ledger database",
				"err", err,
			)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	store, err := cmdCommon.OpenStore(ctx)
	if err != nil {
		logger.Error("failed to open ledger database",
			"err", err,
		)
		os.Exit(1)
	}
	defer store.Close()

	l, err := ledger.New(ctx, store, doc)
	if err != nil {
		logger.Error("failed to initialize ledger",
			"err", err,
		)
		os.Exit(1)
	}
	defer l.Cleanup()

	// An existing database keeps its state, report what it holds.
	current, err := l.StateToGenesis(ctx)
	if err != nil {
		logger.Error("failed to query ledger state",
			"err", err,
		)
		os.Exit(1)
	}
	printSummary(current)
}

func doCheck(cmd *cobra.Command, args []string) {
	if err := cmdCommon.Init(); err != nil {
		cmdCommon.EarlyLogAndExit(err)
	}

	doc := loadGenesis()
	if cmdFlags.Verbose() {
		cmdCommon.PrintJSONOrExit(logger, doc)
	}
	printSummary(doc)
}

func doDump(cmd *cobra.Command, args []string) {
	if err := cmdCommon.Init(); err != nil {
		cmdCommon.EarlyLogAndExit(err)
	}

	conn, err := cmdGrpc.NewClient(cmd)
	if err != nil {
		logger.Error("failed to establish connection with pool",
			"err", err,
		)
		os.Exit(1)
	}
	defer conn.Close()

	client := pool.NewPoolClient(conn)
	doc, err := client.StateToGenesis(context.Background())
	if err != nil {
		logger.Error("failed to dump ledger state",
			"err", err,
		)
		os.Exit(1)
	}

	cmdCommon.PrintJSONOrExit(logger, doc)
}

// Register registers the genesis sub-commands and the init command.
func Register(parentCmd *cobra.Command) {
	initFlags.AddFlagSet(cmdFlags.GenesisFileFlags)
	initFlags.AddFlagSet(cmdFlags.ForceFlags)
	initFlags.AddFlagSet(cmdFlags.DryRunFlag)
	initFlags.AddFlagSet(cmdFlags.VerboseFlags)
	initCmd.Flags().AddFlagSet(initFlags)

	checkFlags.AddFlagSet(cmdFlags.GenesisFileFlags)
	checkFlags.AddFlagSet(cmdFlags.VerboseFlags)
	checkCmd.Flags().AddFlagSet(checkFlags)

	dumpCmd.Flags().AddFlagSet(cmdGrpc.ClientFlags)

	for _, v := range []*cobra.Command{
		checkCmd,
		dumpCmd,
	} {
		genesisCmd.AddCommand(v)
	}

	parentCmd.AddCommand(initCmd)
	parentCmd.AddCommand(genesisCmd)
}
