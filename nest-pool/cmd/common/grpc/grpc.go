// Package grpc implements common gRPC command-line flags.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/backoff"
	cmnGrpc "github.com/MLY0813/NEST-Oracle-V3.5/common/grpc"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/config"
	"github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common"
)

const (
	// CfgServerAddress configures the server TCP listen address.
	CfgServerAddress = "grpc.address"
	// CfgAddress configures the remote address.
	CfgAddress = "address"
	// CfgWait waits for the remote address to become available.
	CfgWait = "wait"
	// CfgWaitTimeout bounds how long CfgWait waits.
	CfgWaitTimeout = "wait_timeout"

	// LocalSocketFilename is the name of the internal socket in the data
	// directory.
	LocalSocketFilename = "internal.sock"

	defaultAddress = "unix:" + LocalSocketFilename
)

var (
	// ServerFlags has the flags used by the gRPC server.
	ServerFlags = flag.NewFlagSet("", flag.ContinueOnError)
	// ClientFlags has the flags for a gRPC client.
	ClientFlags = flag.NewFlagSet("", flag.ContinueOnError)

	logger = logging.GetLogger("cmd/grpc")
)

// NewServer constructs a new gRPC server service listening on the
// configured TCP address, or on the internal socket in the data directory
// when no address is configured.
func NewServer() (*cmnGrpc.Server, error) {
	addr := config.GlobalConfig.GRPC.Address
	if viper.IsSet(CfgServerAddress) {
		addr = viper.GetString(CfgServerAddress)
	}

	cfg := &cmnGrpc.ServerConfig{
		Name:    "internal",
		Address: addr,
	}
	if addr == "" {
		dataDir := common.DataDir()
		if dataDir == "" {
			return nil, errors.New("data directory must be set")
		}
		cfg.Path = filepath.Join(dataDir, LocalSocketFilename)
	}

	return cmnGrpc.NewServer(cfg)
}

// NewClient dials the remote address given on the command line.
func NewClient(cmd *cobra.Command) (*grpc.ClientConn, error) {
	addr, _ := cmd.Flags().GetString(CfgAddress)

	if _, err := os.Stat(addr); err == nil {
		logger.Warn(fmt.Sprintf("'%s' is a file name. Assuming 'unix:%s'.", addr, addr))
		addr = "unix:" + addr
	}

	var opts []grpc.DialOption
	if viper.GetBool(CfgWait) {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.WaitForReady(true)))
	}

	conn, err := cmnGrpc.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}

	if viper.GetBool(CfgWait) {
		if err = waitReady(cmd.Context(), conn, viper.GetDuration(CfgWaitTimeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}

	return backoff.Retry(ctx, timeout, func() error {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return backoff.Permanent(fmt.Errorf("connection shut down"))
		default:
			conn.Connect()
			logger.Debug("waiting for gRPC connection", "state", state)
			return fmt.Errorf("connection not ready: %s", state)
		}
	})
}

func init() {
	ServerFlags.String(CfgServerAddress, "", "gRPC server TCP address (default: internal socket)")
	_ = viper.BindPFlags(ServerFlags)
	ServerFlags.AddFlagSet(cmnGrpc.Flags)

	ClientFlags.StringP(CfgAddress, "a", defaultAddress, "remote gRPC address")
	ClientFlags.Bool(CfgWait, false, "wait for gRPC address to become available")
	ClientFlags.Duration(CfgWaitTimeout, time.Minute, "how long to wait for the gRPC address")
	_ = viper.BindPFlags(ClientFlags)
}
