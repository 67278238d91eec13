package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/krypt/internal/output"
)

// StatusResponse is the JSON shape of `krypt status`.
type StatusResponse struct {
	Account         string `json:"account"`
	Connected       bool   `json:"connected"`
	State           string `json:"state"`
	CachedCount     uint64 `json:"cachedCount"`
	HasCachedCount  bool   `json:"hasCachedCount"`
	HasTransfers    bool   `json:"hasTransfers"`
	LoadedTransfers int    `json:"loadedTransfers"`
	Contract        string `json:"contract"`
	WalletMode      string `json:"walletMode"`
}

// statusCmd shows the coordinator state after startup discovery.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet and ledger status",
	Long: `Discover an already-authorized wallet account and read the transfer
ledger, then print what was found. Nothing is requested from the wallet.

Example:
  krypt status
  krypt status -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		initialize(ctx, cmd, s)

		hasTransfers, err := s.Coordinator.HasTransactions(ctx)
		if err != nil {
			warnf(cmd, "checking transfer count: %v", err)
		}

		snap := s.Coordinator.Snapshot()
		resp := StatusResponse{
			Account:         snap.Account,
			Connected:       snap.Account != "",
			State:           snap.State.String(),
			CachedCount:     snap.CachedCount,
			HasCachedCount:  snap.HasCachedCount,
			HasTransfers:    hasTransfers,
			LoadedTransfers: len(snap.Transactions),
			Contract:        cfg.GetContract(),
			WalletMode:      cfg.Wallet.Mode,
		}

		return commandFormatter(cmd).Result(resp, func(w io.Writer) error {
			return writeStatusText(w, resp)
		})
	})
}

func writeStatusText(w io.Writer, resp StatusResponse) error {
	account := resp.Account
	if account == "" {
		account = "(not connected)"
	}
	cached := "unknown"
	if resp.HasCachedCount {
		cached = formatCount(resp.CachedCount)
	}

	onLedger := "no"
	if resp.HasTransfers {
		onLedger = "yes"
	}

	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("Account", account)
	t.AddRow("Wallet", resp.WalletMode)
	t.AddRow("Contract", resp.Contract)
	t.AddRow("State", resp.State)
	t.AddRow("Transfers on ledger", onLedger)
	t.AddRow("Loaded transfers", formatCount(uint64(resp.LoadedTransfers))) //nolint:gosec // G115: len is non-negative
	t.AddRow("Cached count", cached)
	return t.Render(w)
}
