package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/krypt/internal/coordinator"
	"github.com/mrz1836/krypt/internal/output"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// sendTo is the recipient address.
	sendTo string
	// sendAmount is the amount in ether.
	sendAmount string
	// sendMessage is the note recorded with the transfer.
	sendMessage string
	// sendKeyword is the keyword recorded with the transfer.
	sendKeyword string
)

// SendResponse is the JSON shape of `krypt send`.
type SendResponse struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Amount       string `json:"amount"`
	TransferHash string `json:"transferHash"`
	RecordHash   string `json:"recordHash"`
	Count        uint64 `json:"count"`
}

// sendCmd transfers value and records it on the ledger.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send ether and record the transfer",
	Long: `Send ether to a recipient, then record the transfer with its message
and keyword on the ledger contract and wait for the record to be mined.

The wallet is asked twice: once for the value transfer and once for the
ledger record. If the value transfer succeeds but the record does not
confirm, the command exits with code 6 and prints both hashes.

Examples:
  krypt send --to 0x8ba1f109551bD432803012645Ac136ddd64DBA72 --amount 0.01
  krypt send --to 0x8ba1... --amount 0.5 --message "rent" --keyword house`,
	Args: cobra.NoArgs,
	RunE: runSend,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient address (required)")
	sendCmd.Flags().StringVar(&sendAmount, "amount", "", "amount in ETH (required)")
	sendCmd.Flags().StringVarP(&sendMessage, "message", "m", "", "message recorded with the transfer")
	sendCmd.Flags().StringVarP(&sendKeyword, "keyword", "k", "", "keyword recorded with the transfer")

	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("amount")
}

func runSend(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		coord := s.Coordinator
		initialize(ctx, cmd, s)

		if coord.Snapshot().Account == "" {
			if _, err := coord.Connect(ctx); err != nil {
				return err
			}
		}

		fields := []struct{ name, value string }{
			{coordinator.FieldAddressTo, sendTo},
			{coordinator.FieldAmount, sendAmount},
			{coordinator.FieldMessage, sendMessage},
			{coordinator.FieldKeyword, sendKeyword},
		}
		for _, f := range fields {
			if err := coord.UpdateField(f.name, f.value); err != nil {
				return err
			}
		}

		f := commandFormatter(cmd)
		_ = f.Printf("Sending %s ETH to %s...\n", sendAmount, sendTo)

		result, err := coord.Submit(ctx)
		if err != nil {
			if krypterr.Is(err, krypterr.ErrConfirmationFailed) {
				warnf(cmd, "the value transfer was sent; check the hashes below before retrying")
			}
			return err
		}

		resp := SendResponse{
			From:         coord.Snapshot().Account,
			To:           sendTo,
			Amount:       sendAmount,
			TransferHash: result.TransferHash.Hex(),
			RecordHash:   result.RecordHash.Hex(),
			Count:        result.Count,
		}
		return f.Result(resp, func(w io.Writer) error {
			output.Successf(w, "Transfer recorded (#%d)", resp.Count)
			out(w, "  Transfer tx: %s\n", resp.TransferHash)
			out(w, "  Record tx:   %s\n", resp.RecordHash)
			return nil
		})
	})
}
