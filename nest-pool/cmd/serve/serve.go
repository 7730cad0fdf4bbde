// Package serve implements the pool query service sub-command.
package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/service"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/version"
	"github.com/MLY0813/NEST-Oracle-V3.5/config"
	cmdCommon "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common"
	cmdFlags "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common/flags"
	cmdGrpc "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common/grpc"
	"github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common/metrics"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/ledger"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "open the ledger and serve the query API",
		Run:   doServe,
	}

	serveFlags = flag.NewFlagSet("", flag.ContinueOnError)

	logger = logging.GetLogger("cmd/serve")
)

// loadGenesisIfPresent returns the configured genesis document, or nil when
// there is no such file and the ledger is expected to be initialized.
func loadGenesisIfPresent() (*pool.Genesis, error) {
	fn := cmdFlags.GenesisFile(config.GlobalConfig.Genesis.File)
	if _, err := os.Stat(fn); os.IsNotExist(err) {
		logger.Info("no genesis document, expecting an initialized ledger",
			"file", fn,
		)
		return nil, nil
	}
	return cmdCommon.LoadGenesis(fn)
}

func doServe(cmd *cobra.Command, args []string) {
	if err := cmdCommon.Init(); err != nil {
		cmdCommon.EarlyLogAndExit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := loadGenesisIfPresent()
	if err != nil {
		logger.Error("failed to load genesis document",
			"err", err,
		)
		os.Exit(1)
	}

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
		logger.Error("failed to open ledger",
			"err", err,
		)
		return
	}
	defer l.Cleanup()

	grpcSrv, err := cmdGrpc.NewServer()
	if err != nil {
		logger.Error("failed to initialize gRPC server",
			"err", err,
		)
		return
	}
	pool.RegisterService(grpcSrv.Server(), l)

	metricsSvc, err := metrics.New()
	if err != nil {
		logger.Error("failed to initialize metrics service",
			"err", err,
		)
		return
	}

	group := service.NewGroup("nest-pool")
	group.Register(metricsSvc)
	group.Register(grpcSrv)
	if err = group.Start(); err != nil {
		logger.Error("failed to start services",
			"err", err,
		)
		return
	}

	logger.Info("nest-pool started",
		"version", version.SoftwareVersion,
		"data_dir", cmdCommon.DataDir(),
		"storage_backend", config.GlobalConfig.Storage.Backend,
	)

	group.Wait(ctx)
	group.Stop()

	logger.Info("nest-pool stopped")
}

// Register registers the serve sub-command.
func Register(parentCmd *cobra.Command) {
	serveFlags.AddFlagSet(cmdFlags.GenesisFileFlags)
	serveFlags.AddFlagSet(cmdGrpc.ServerFlags)
	serveCmd.Flags().AddFlagSet(serveFlags)

	parentCmd.AddCommand(serveCmd)
}
