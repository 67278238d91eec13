package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/krypt/internal/config"
	"github.com/mrz1836/krypt/internal/crypto"
	"github.com/mrz1836/krypt/internal/output"
	"github.com/mrz1836/krypt/internal/wallet"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// createWords is the number of words for mnemonic generation.
	createWords int
	// addressQR renders the address as a QR code.
	addressQR bool
)

// nowFn is the clock used for keystore metadata.
//
//nolint:gochecknoglobals // Swappable for testing
var nowFn = time.Now

// WalletResponse is the JSON shape of the wallet commands.
type WalletResponse struct {
	Address   string    `json:"address"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Mnemonic  string    `json:"mnemonic,omitempty"`
	URI       string    `json:"uri,omitempty"`
}

// walletCmd is the parent command for keystore operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the local keystore wallet",
	Long: `Create, import and inspect the local keystore used when wallet.mode
is "keystore". The recovery phrase is stored encrypted with age.`,
}

// walletCreateCmd creates a new keystore.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new keystore",
	Long: `Generate a new BIP39 recovery phrase, encrypt it under a passphrase and
derive the account at m/44'/60'/0'/0/0.

Write the recovery phrase down. It is shown only once.

Example:
  krypt wallet create
  krypt wallet create --words 24`,
	Args: cobra.NoArgs,
	RunE: runWalletCreate,
}

// walletImportCmd imports an existing recovery phrase.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a recovery phrase",
	Long: `Import an existing 12 or 24 word BIP39 recovery phrase into the keystore.
The phrase is read from the terminal without echo.

Example:
  krypt wallet import`,
	Args: cobra.NoArgs,
	RunE: runWalletImport,
}

// walletAddressCmd prints the keystore account.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Show the keystore address",
	Long: `Show the keystore account address. No passphrase is needed.

Example:
  krypt wallet address
  krypt wallet address --qr`,
	Args: cobra.NoArgs,
	RunE: runWalletAddress,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletCreateCmd, walletImportCmd, walletAddressCmd)

	walletCreateCmd.Flags().IntVar(&createWords, "words", 12, "number of words: 12 or 24")
	walletAddressCmd.Flags().BoolVar(&addressQR, "qr", false, "also render a payment QR code")
}

func runWalletCreate(cmd *cobra.Command, _ []string) error {
	mnemonic, err := wallet.GenerateMnemonic(createWords)
	if err != nil {
		return err
	}
	return storeKeystore(cmd, mnemonic, true)
}

func runWalletImport(cmd *cobra.Command, _ []string) error {
	mnemonic, err := promptMnemonicFn()
	if err != nil {
		return err
	}
	if err := wallet.ValidateMnemonic(mnemonic); err != nil {
		return err
	}
	return storeKeystore(cmd, mnemonic, false)
}

// storeKeystore encrypts mnemonic into the configured keystore directory.
func storeKeystore(cmd *cobra.Command, mnemonic string, reveal bool) error {
	dir := cfg.KeystorePath()
	if _, err := wallet.ReadMetadata(dir); err == nil {
		return krypterr.WithDetails(krypterr.ErrWalletExists, map[string]string{"dir": dir})
	}

	passphrase, err := promptNewPasswordFn()
	if err != nil {
		return err
	}
	defer crypto.Zero(passphrase)

	meta, err := wallet.CreateKeystore(dir, mnemonic, passphrase, nowFn())
	if err != nil {
		return err
	}
	logger.Debug("keystore written to %s for %s", dir, meta.Address)

	resp := WalletResponse{Address: meta.Address, Path: meta.Path, CreatedAt: meta.CreatedAt}
	if reveal {
		resp.Mnemonic = mnemonic
	}

	return commandFormatter(cmd).Result(resp, func(w io.Writer) error {
		output.Successf(w, "Keystore saved to %s", dir)
		out(w, "  Address: %s\n", resp.Address)
		out(w, "  Path:    %s\n", resp.Path)
		if reveal {
			outln(w)
			outln(w, "Recovery phrase (write it down, it will not be shown again):")
			outln(w)
			out(w, "  %s\n", mnemonic)
			outln(w)
		}
		if cfg.Wallet.Mode != config.WalletModeKeystore {
			output.Infof(w, "Set wallet.mode to \"keystore\" to sign with this wallet")
		}
		return nil
	})
}

func runWalletAddress(cmd *cobra.Command, _ []string) error {
	meta, err := wallet.ReadMetadata(cfg.KeystorePath())
	if err != nil {
		return krypterr.WithSuggestion(err, "create one with 'krypt wallet create' or 'krypt wallet import'")
	}

	resp := WalletResponse{
		Address:   meta.Address,
		Path:      meta.Path,
		CreatedAt: meta.CreatedAt,
		URI:       output.PaymentURI(meta.Address, cfg.Network.ChainID),
	}

	return commandFormatter(cmd).Result(resp, func(w io.Writer) error {
		outln(w, resp.Address)
		if addressQR {
			if output.CanRenderQR(w) {
				output.RenderQR(w, resp.URI)
			} else {
				outln(w, resp.URI)
			}
		}
		return nil
	})
}
