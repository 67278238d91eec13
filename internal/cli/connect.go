package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/krypt/internal/output"
)

// ConnectResponse is the JSON shape of `krypt connect`.
type ConnectResponse struct {
	Account string `json:"account"`
}

// connectCmd asks the wallet for account authorization.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Authorize an account with the wallet",
	Long: `Ask the wallet to share an account. A provider wallet shows its own
approval dialog; a keystore wallet asks for its passphrase.

Example:
  krypt connect`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *Session) error {
		account, err := s.Coordinator.Connect(ctx)
		if err != nil {
			return err
		}

		resp := ConnectResponse{Account: account}
		return commandFormatter(cmd).Result(resp, func(w io.Writer) error {
			output.Successf(w, "Connected %s", account)
			return nil
		})
	})
}
