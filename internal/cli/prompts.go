package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/mrz1836/krypt/internal/chain"
	"github.com/mrz1836/krypt/internal/crypto"
	"github.com/mrz1836/krypt/internal/wallet"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// minPassphraseLength is the shortest accepted keystore passphrase.
const minPassphraseLength = 8

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // Swappable for testing
var (
	promptPasswordFn    = promptPassword
	promptNewPasswordFn = promptNewPassword
	promptTxConfirmFn   = promptTxConfirm
	promptMnemonicFn    = promptMnemonic
)

// promptPassword prompts for a password with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(syscall.Stdin)
	outln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// promptNewPassword prompts for a new passphrase with confirmation.
// The caller is responsible for zeroing the returned bytes after use.
func promptNewPassword() ([]byte, error) {
	password, err := promptPasswordFn("Enter keystore passphrase: ")
	if err != nil {
		return nil, err
	}

	if len(password) < minPassphraseLength {
		crypto.Zero(password)
		return nil, krypterr.WithSuggestion(
			krypterr.ErrInvalidInput,
			fmt.Sprintf("passphrase must be at least %d characters", minPassphraseLength),
		)
	}

	confirm, err := promptPasswordFn("Confirm passphrase: ")
	if err != nil {
		crypto.Zero(password)
		return nil, err
	}
	defer crypto.Zero(confirm)

	if string(password) != string(confirm) {
		crypto.Zero(password)
		return nil, krypterr.WithSuggestion(krypterr.ErrInvalidInput, "passphrases do not match")
	}
	return password, nil
}

// promptTxConfirm shows a transaction and asks the user to approve it.
func promptTxConfirm(tx wallet.TxSummary) bool {
	outln(os.Stderr)
	out(os.Stderr, "  From:      %s\n", tx.From.Hex())
	out(os.Stderr, "  To:        %s\n", tx.To.Hex())
	out(os.Stderr, "  Value:     %s ETH\n", chain.FormatEther(tx.ValueWei))
	out(os.Stderr, "  Gas limit: %d\n", tx.Gas)
	if tx.GasPrice != nil {
		out(os.Stderr, "  Gas price: %s wei\n", tx.GasPrice)
	}
	if tx.HasData {
		outln(os.Stderr, "  (contract call)")
	}
	out(os.Stderr, "Sign and send? [y/N]: ")

	return readYes(bufio.NewReader(os.Stdin))
}

// promptMnemonic reads a recovery phrase from the terminal without echo.
func promptMnemonic() (string, error) {
	outln(os.Stderr, "Enter your recovery phrase, words separated by spaces.")
	phrase, err := promptPasswordFn("Recovery phrase: ")
	if err != nil {
		return "", err
	}
	defer crypto.Zero(phrase)
	return wallet.NormalizeMnemonic(string(phrase)), nil
}

func readYes(r *bufio.Reader) bool {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
