// Package chain provides amount arithmetic and resilience helpers shared by
// the node, wallet, and ledger clients.
package chain

import (
	"math/big"
	"regexp"

	"github.com/shopspring/decimal"

	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// EtherDecimals is the number of decimal places between wei and ether.
const EtherDecimals = 18

// decimalPattern accepts plain non-negative decimals such as "1", "1.5", ".5" or "2.".
// Signs, exponents and whitespace are rejected.
var decimalPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// ParseDecimalAmount parses a decimal amount string to big.Int with the given decimal places.
// For example, "1.5" with 18 decimals returns 1500000000000000000.
// Amounts carrying more fractional digits than decimalPlaces are rejected
// rather than truncated.
func ParseDecimalAmount(amount string, decimalPlaces int, invalidAmountErr error) (*big.Int, error) {
	if !decimalPattern.MatchString(amount) {
		return nil, invalidAmountErr
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, invalidAmountErr
	}

	scaled := d.Shift(int32(decimalPlaces)) //nolint:gosec // G115: decimal places are small constants
	if !scaled.IsInteger() {
		return nil, invalidAmountErr
	}

	return scaled.BigInt(), nil
}

// FormatDecimalAmount converts a big.Int to a human-readable string with the given decimal places.
// Trailing zeros after the decimal point are removed.
// For example, 1500000000000000000 with 18 decimals returns "1.5".
func FormatDecimalAmount(amount *big.Int, decimalPlaces int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimalPlaces)).String() //nolint:gosec // G115: decimal places are small constants
}

// ParseEther converts a human-readable ether amount to wei.
func ParseEther(amount string) (*big.Int, error) {
	wei, err := ParseDecimalAmount(amount, EtherDecimals, krypterr.ErrInvalidAmount)
	if err != nil {
		return nil, krypterr.WithDetails(err, map[string]string{"amount": amount})
	}
	return wei, nil
}

// FormatEther converts wei to a human-readable ether amount.
func FormatEther(wei *big.Int) string {
	return FormatDecimalAmount(wei, EtherDecimals)
}
