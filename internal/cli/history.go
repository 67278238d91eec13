package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/krypt/internal/coordinator"
	"github.com/mrz1836/krypt/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var historyWidth int

// HistoryResponse is the JSON shape of `krypt history`.
type HistoryResponse struct {
	Count        int                          `json:"count"`
	Transactions []coordinator.TransferRecord `json:"transactions"`
}

// historyCmd lists the recorded transfers.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded transfers",
	Long: `Read every transfer recorded on the ledger contract and print them
oldest first.

Example:
  krypt history
  krypt history -o json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyWidth, "width", 0, "truncate cells to this many characters (0 = no limit)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		if err := s.Coordinator.RefreshHistory(ctx); err != nil {
			return err
		}

		records := s.Coordinator.Transactions()
		resp := HistoryResponse{Count: len(records), Transactions: records}
		return commandFormatter(cmd).Result(resp, func(w io.Writer) error {
			return writeHistoryText(w, records, historyWidth)
		})
	})
}

func writeHistoryText(w io.Writer, records []coordinator.TransferRecord, width int) error {
	if len(records) == 0 {
		output.Infof(w, "No transfers recorded yet")
		return nil
	}

	t := output.NewTable("TIME (UTC)", "FROM", "TO", "AMOUNT (ETH)", "KEYWORD", "MESSAGE")
	t.AlignRight(3)
	t.SetMaxWidth(width)
	for _, r := range records {
		t.AddRow(formatTimestamp(r.Timestamp), r.AddressFrom, r.AddressTo, r.Amount, r.Keyword, r.Message)
	}
	return t.Render(w)
}
