// Package account implements the ledger account query sub-commands.
package account

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	cmdCommon "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common"
	cmdFlags "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common/flags"
	cmdGrpc "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common/grpc"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
)

const (
	// CfgAccountAddr configures the account address.
	CfgAccountAddr = "account.addr"
	// CfgAsset configures the asset id.
	CfgAsset = "account.asset"
)

var (
	accountCmd = &cobra.Command{
		Use:   "account",
		Short: "ledger account queries",
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "list accounts with a non-zero balance",
		Run:   doList,
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "show the balances of an account",
		Run:   doInfo,
	}

	listFlags = flag.NewFlagSet("", flag.ContinueOnError)
	infoFlags = flag.NewFlagSet("", flag.ContinueOnError)

	logger = logging.GetLogger("cmd/account")
)

func doConnect(cmd *cobra.Command) (*grpc.ClientConn, pool.Backend) {
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

	return conn, pool.NewPoolClient(conn)
}

func getAccount(ctx context.Context, addr pool.Address, client pool.Backend) *pool.Account {
	acct, err := client.Account(ctx, &pool.OwnerQuery{Owner: addr})
	if err != nil {
		logger.Error("failed to query account",
			"address", addr,
			"err", err,
		)
		os.Exit(1)
	}
	return acct
}

func sortedAssets(acct *pool.Account) []pool.AssetID {
	assets := make([]pool.AssetID, 0, len(acct.Balances))
	for asset := range acct.Balances {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].String() < assets[j].String()
	})
	return assets
}

func writeBalances(w io.Writer, rows map[pool.Address]*pool.Account, order []pool.Address) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Account", "Asset", "Available", "Frozen"})
	for _, addr := range order {
		acct := rows[addr]
		for _, asset := range sortedAssets(acct) {
			b := acct.Balances[asset]
			table.Append([]string{addr.String(), asset.String(), b.Available.String(), b.Frozen.String()})
		}
	}
	table.Render()
}

func doList(cmd *cobra.Command, args []string) {
	conn, client := doConnect(cmd)
	defer conn.Close()

	ctx := context.Background()
	addrs, err := client.Accounts(ctx)
	if err != nil {
		logger.Error("failed to query accounts",
			"err", err,
		)
		os.Exit(1)
	}

	if !cmdFlags.Verbose() {
		for _, addr := range addrs {
			fmt.Println(addr)
		}
		return
	}

	rows := make(map[pool.Address]*pool.Account, len(addrs))
	for _, addr := range addrs {
		rows[addr] = getAccount(ctx, addr, client)
	}
	writeBalances(os.Stdout, rows, addrs)
}

func doInfo(cmd *cobra.Command, args []string) {
	var addr pool.Address
	if err := addr.UnmarshalText([]byte(viper.GetString(CfgAccountAddr))); err != nil {
		logger.Error("failed to parse account address",
			"err", err,
		)
		os.Exit(1)
	}

	conn, client := doConnect(cmd)
	defer conn.Close()

	ctx := context.Background()
	if s := viper.GetString(CfgAsset); s != "" {
		var asset pool.AssetID
		if err := asset.UnmarshalText([]byte(s)); err != nil {
			logger.Error("failed to parse asset id",
				"err", err,
			)
			os.Exit(1)
		}

		query := &pool.BalanceQuery{Owner: addr, Asset: asset}
		available, err := client.BalanceOf(ctx, query)
		if err != nil {
			logger.Error("failed to query balance",
				"err", err,
			)
			os.Exit(1)
		}
		frozen, err := client.FrozenBalanceOf(ctx, query)
		if err != nil {
			logger.Error("failed to query frozen balance",
				"err", err,
			)
			os.Exit(1)
		}
		fmt.Printf("Available: %s\n", available)
		fmt.Printf("Frozen:    %s\n", frozen)
		return
	}

	acct := getAccount(ctx, addr, client)
	if cmdFlags.Verbose() {
		cmdCommon.PrintJSONOrExit(logger, acct)
		return
	}
	writeBalances(os.Stdout, map[pool.Address]*pool.Account{addr: acct}, []pool.Address{addr})
}

// Register registers the account sub-command and all of its children.
func Register(parentCmd *cobra.Command) {
	listFlags.AddFlagSet(cmdGrpc.ClientFlags)
	listFlags.AddFlagSet(cmdFlags.VerboseFlags)
	listCmd.Flags().AddFlagSet(listFlags)

	infoFlags.String(CfgAccountAddr, "", "account address (Bech32 or 0x-prefixed hex)")
	infoFlags.String(CfgAsset, "", "restrict to a single asset")
	_ = viper.BindPFlags(infoFlags)
	infoFlags.AddFlagSet(cmdGrpc.ClientFlags)
	infoFlags.AddFlagSet(cmdFlags.VerboseFlags)
	infoCmd.Flags().AddFlagSet(infoFlags)

	for _, v := range []*cobra.Command{
		listCmd,
		infoCmd,
	} {
		accountCmd.AddCommand(v)
	}

	parentCmd.AddCommand(accountCmd)
}
