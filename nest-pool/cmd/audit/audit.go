// Package audit implements the ledger audit sub-command.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
	cmdCommon "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common"
	cmdGrpc "github.com/MLY0813/NEST-Oracle-V3.5/nest-pool/cmd/common/grpc"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/db/memory"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/gateway"
	"github.com/MLY0813/NEST-Oracle-V3.5/pool/ledger"
	token "github.com/MLY0813/NEST-Oracle-V3.5/token/api"
	tokenMemory "github.com/MLY0813/NEST-Oracle-V3.5/token/memory"
)

const (
	// CfgState configures a genesis document to audit instead of querying
	// a running pool.
	CfgState = "audit.state"
	// CfgCustody configures a JSON document with the pool's custody per
	// asset, used to reconcile the ledger against.
	CfgCustody = "audit.custody"
)

var (
	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "check ledger invariants and reconcile against custody",
		Run:   doAudit,
	}

	auditFlags = flag.NewFlagSet("", flag.ContinueOnError)

	logger = logging.GetLogger("cmd/audit")
)

func fetchState(cmd *cobra.Command) (*pool.Genesis, error) {
	if fn := viper.GetString(CfgState); fn != "" {
		return cmdCommon.LoadGenesis(fn)
	}

	conn, err := cmdGrpc.NewClient(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to establish connection with pool: %w", err)
	}
	defer conn.Close()

	doc, err := pool.NewPoolClient(conn).StateToGenesis(context.Background())
	if err != nil {
		return nil, err
	}
	if err = doc.SanityCheck(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Claims sums the available and frozen balances of every account per
// asset.
func Claims(doc *pool.Genesis) (map[pool.AssetID]*quantity.Quantity, error) {
	totals := make(map[pool.AssetID]*quantity.Quantity)
	for id, acct := range doc.Ledger {
		if acct == nil {
			continue
		}
		if err := pool.SanityCheckAccount(totals, id, acct); err != nil {
			return nil, err
		}
	}
	return totals, nil
}

func loadCustody(fn string) (map[pool.AssetID]*quantity.Quantity, error) {
	raw, err := os.ReadFile(fn)
	if err != nil {
		return nil, fmt.Errorf("failed to read custody file '%s': %w", fn, err)
	}
	var custody map[pool.AssetID]*quantity.Quantity
	if err = json.Unmarshal(raw, &custody); err != nil {
		return nil, fmt.Errorf("failed to parse custody file '%s': %w", fn, err)
	}
	return custody, nil
}

// Reconcile replays the genesis document into a scratch ledger and
// reconciles it against contracts holding the given custody.
func Reconcile(ctx context.Context, doc *pool.Genesis, custody map[pool.AssetID]*quantity.Quantity) (*gateway.Report, error) {
	store := memory.New()
	defer store.Close()

	l, err := ledger.New(ctx, store, doc)
	if err != nil {
		return nil, err
	}
	defer l.Cleanup()

	var contracts []token.Contract
	for asset, amount := range custody {
		c := tokenMemory.New(asset)
		if err = c.Mint(pool.PoolAddress, amount); err != nil {
			return nil, fmt.Errorf("custody of %s: %w", asset, err)
		}
		contracts = append(contracts, c)
	}

	g, err := gateway.New(l, contracts...)
	if err != nil {
		return nil, err
	}
	return g.Reconcile(ctx)
}

func printClaims(claims map[pool.AssetID]*quantity.Quantity) {
	assets := make([]pool.AssetID, 0, len(claims))
	for asset := range claims {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].String() < assets[j].String()
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Asset", "Claims"})
	for _, asset := range assets {
		table.Append([]string{asset.String(), claims[asset].String()})
	}
	table.Render()
}

func printReport(report *gateway.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Asset", "Custody", "Claims", "Shortfall"})
	for _, ar := range report.Assets {
		table.Append([]string{ar.Asset.String(), ar.Custody.String(), ar.Claims.String(), ar.Shortfall.String()})
	}
	table.Render()

	for _, asset := range report.Unbacked {
		fmt.Printf("No custody information for %s\n", asset)
	}
}

func doAudit(cmd *cobra.Command, args []string) {
	if err := cmdCommon.Init(); err != nil {
		cmdCommon.EarlyLogAndExit(err)
	}

	doc, err := fetchState(cmd)
	if err != nil {
		logger.Error("failed to obtain ledger state",
			"err", err,
		)
		os.Exit(1)
	}

	claims, err := Claims(doc)
	if err != nil {
		logger.Error("ledger state is inconsistent",
			"err", err,
		)
		os.Exit(1)
	}
	fmt.Printf("Accounts:              %d\n", len(doc.Ledger))
	fmt.Printf("Mined protocol tokens: %s\n", doc.MinedProtocolTokens)
	printClaims(claims)

	fn := viper.GetString(CfgCustody)
	if fn == "" {
		return
	}
	custody, err := loadCustody(fn)
	if err != nil {
		logger.Error("failed to load custody",
			"err", err,
		)
		os.Exit(1)
	}

	report, err := Reconcile(context.Background(), doc, custody)
	if report != nil {
		printReport(report)
	}
	switch {
	case err == nil:
		fmt.Println("Custody covers all claims.")
	case errors.Is(err, pool.ErrReconciliation):
		fmt.Println("Custody does NOT cover all claims.")
		os.Exit(1)
	default:
		logger.Error("failed to reconcile",
			"err", err,
		)
		os.Exit(1)
	}
}

// Register registers the audit sub-command.
func Register(parentCmd *cobra.Command) {
	auditFlags.String(CfgState, "", "audit a genesis document instead of a running pool")
	auditFlags.String(CfgCustody, "", "JSON map of asset to pool custody to reconcile against")
	_ = viper.BindPFlags(auditFlags)
	auditFlags.AddFlagSet(cmdGrpc.ClientFlags)
	auditCmd.Flags().AddFlagSet(auditFlags)

	parentCmd.AddCommand(auditCmd)
}
