// Package events implements the ledger event streaming sub-command.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/backoff"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	cmdCommon "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common"
	cmdGrpc "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common/grpc"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
)

// CfgReconnect configures how long to keep reconnecting after the event
// stream is lost, zero to exit instead.
const CfgReconnect = "events.reconnect"

var (
	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "stream committed ledger events as JSON lines",
		Run:   doEvents,
	}

	eventsFlags = flag.NewFlagSet("", flag.ContinueOnError)

	logger = logging.GetLogger("cmd/events")
)

func watch(ctx context.Context, cmd *cobra.Command, lastSeq *uint64) error {
	conn, err := cmdGrpc.NewClient(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, sub, err := pool.NewPoolClient(conn).WatchEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	enc := json.NewEncoder(os.Stdout)
	for ev := range ch {
		if *lastSeq != 0 && ev.Seq <= *lastSeq {
			// Sequence numbers restart with the service.
			logger.Warn("event sequence went backwards",
				"last_seq", *lastSeq,
				"seq", ev.Seq,
			)
		}
		*lastSeq = ev.Seq
		if err = enc.Encode(ev); err != nil {
			return backoff.Permanent(err)
		}
	}

	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	return fmt.Errorf("event stream closed")
}

func doEvents(cmd *cobra.Command, args []string) {
	if err := cmdCommon.Init(); err != nil {
		cmdCommon.EarlyLogAndExit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var lastSeq uint64
	var err error
	if reconnect := viper.GetDuration(CfgReconnect); reconnect > 0 {
		err = backoff.Retry(ctx, reconnect, func() error {
			werr := watch(ctx, cmd, &lastSeq)
			if werr != nil && ctx.Err() == nil {
				logger.Warn("event stream lost, reconnecting",
					"err", werr,
				)
			}
			return werr
		})
	} else {
		err = watch(ctx, cmd, &lastSeq)
	}

	if err != nil && ctx.Err() == nil {
		logger.Error("failed to stream events",
			"err", err,
		)
		os.Exit(1)
	}
}

// Register registers the events sub-command.
func Register(parentCmd *cobra.Command) {
	eventsFlags.Duration(CfgReconnect, 0, "keep reconnecting for this long after the stream is lost")
	_ = viper.BindPFlags(eventsFlags)
	eventsFlags.AddFlagSet(cmdGrpc.ClientFlags)
	eventsCmd.Flags().AddFlagSet(eventsFlags)

	parentCmd.AddCommand(eventsCmd)
}
