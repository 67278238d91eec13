// Package errors provides structured error handling for Krypt.
// It defines sentinel errors for every failure kind the transfer
// coordinator can surface, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitAuth       = 3 // Authentication failed or user denied
	ExitNotFound   = 4 // Resource not found
	ExitPermission = 5 // Permission denied or insufficient funds
	ExitPartial    = 6 // Value moved but the metadata record did not confirm
)

// KryptError is the structured error type for Krypt.
type KryptError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *KryptError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *KryptError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for KryptError.
func (e *KryptError) Is(target error) bool {
	var t *KryptError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Transfer lifecycle errors.
var (
	ErrWalletUnavailable = &KryptError{
		Code:       "WALLET_UNAVAILABLE",
		Message:    "no wallet detected",
		Suggestion: "install a wallet or configure one with 'krypt wallet create'",
		ExitCode:   ExitNotFound,
	}

	ErrNotConnected = &KryptError{
		Code:       "NOT_CONNECTED",
		Message:    "no wallet account is connected",
		Suggestion: "run 'krypt connect' first",
		ExitCode:   ExitAuth,
	}

	ErrUserDenied = &KryptError{
		Code:     "USER_DENIED",
		Message:  "request was rejected by the user",
		ExitCode: ExitAuth,
	}

	ErrInvalidAmount = &KryptError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount format",
		ExitCode: ExitInput,
	}

	ErrInsufficientFunds = &KryptError{
		Code:     "INSUFFICIENT_FUNDS",
		Message:  "insufficient funds for transaction",
		ExitCode: ExitPermission,
	}

	ErrTransferRejected = &KryptError{
		Code:     "TRANSFER_REJECTED",
		Message:  "value transfer was not sent",
		ExitCode: ExitGeneral,
	}

	ErrConfirmationFailed = &KryptError{
		Code:       "CONFIRMATION_FAILED",
		Message:    "value was sent but the transfer record did not confirm",
		Suggestion: "the value transfer is on chain; check the record transaction before retrying",
		ExitCode:   ExitPartial,
	}

	ErrAlreadySubmitting = &KryptError{
		Code:     "ALREADY_SUBMITTING",
		Message:  "a transfer submission is already in flight",
		ExitCode: ExitGeneral,
	}
)

// Ambient errors.
var (
	ErrGeneral = &KryptError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &KryptError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrUnknownField = &KryptError{
		Code:     "UNKNOWN_FIELD",
		Message:  "unknown transfer field",
		ExitCode: ExitInput,
	}

	ErrInvalidAddress = &KryptError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrNetworkError = &KryptError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrTxReverted = &KryptError{
		Code:     "TX_REVERTED",
		Message:  "transaction reverted on chain",
		ExitCode: ExitGeneral,
	}

	ErrConfigNotFound = &KryptError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &KryptError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration is invalid",
		ExitCode: ExitInput,
	}

	ErrCacheCorrupted = &KryptError{
		Code:     "CACHE_CORRUPTED",
		Message:  "counter cache is corrupted",
		ExitCode: ExitGeneral,
	}

	// Keystore errors.
	ErrWalletNotFound = &KryptError{
		Code:       "WALLET_NOT_FOUND",
		Message:    "wallet not found",
		Suggestion: "create one with 'krypt wallet create' or import with 'krypt wallet import'",
		ExitCode:   ExitNotFound,
	}

	ErrWalletExists = &KryptError{
		Code:     "WALLET_EXISTS",
		Message:  "wallet already exists",
		ExitCode: ExitInput,
	}

	ErrInvalidMnemonic = &KryptError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrDecryptionFailed = &KryptError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong passphrase or corrupted file",
		ExitCode: ExitAuth,
	}
)

// New creates a new KryptError with the given code and message.
func New(code, message string) *KryptError {
	return &KryptError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Translate returns an error of the given kind caused by cause.
// The result matches kind with errors.Is, and still matches any kind
// carried by cause through the unwrap chain.
func Translate(kind *KryptError, cause error) error {
	return &KryptError{
		Code:       kind.Code,
		Message:    kind.Message,
		Suggestion: kind.Suggestion,
		Cause:      cause,
		ExitCode:   kind.ExitCode,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ke *KryptError
	if errors.As(err, &ke) {
		return &KryptError{
			Code:       ke.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ke.Message),
			Details:    ke.Details,
			Suggestion: ke.Suggestion,
			Cause:      err,
			ExitCode:   ke.ExitCode,
		}
	}

	return &KryptError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ke *KryptError
	if errors.As(err, &ke) {
		return &KryptError{
			Code:       ke.Code,
			Message:    ke.Message,
			Details:    details,
			Suggestion: ke.Suggestion,
			Cause:      ke.Cause,
			ExitCode:   ke.ExitCode,
		}
	}

	return &KryptError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ke *KryptError
	if errors.As(err, &ke) {
		return &KryptError{
			Code:       ke.Code,
			Message:    ke.Message,
			Details:    ke.Details,
			Suggestion: suggestion,
			Cause:      ke.Cause,
			ExitCode:   ke.ExitCode,
		}
	}

	return &KryptError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ke *KryptError
	if errors.As(err, &ke) {
		return ke.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ke *KryptError
	if errors.As(err, &ke) {
		return ke.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
