package wallet

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip39"

	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// MaxTypoDistance is the maximum Levenshtein distance to consider a suggestion.
const MaxTypoDistance = 2

var (
	// whitespaceRegex matches one or more whitespace characters.
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// numberedListRegex matches numbered list prefixes like "1." "2)" "3:"
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)
)

// GenerateMnemonic creates a new BIP39 mnemonic of 12 or 24 words.
func GenerateMnemonic(wordCount int) (string, error) {
	var bitSize int
	switch wordCount {
	case 12:
		bitSize = 128
	case 24:
		bitSize = 256
	default:
		return "", krypterr.WithDetails(krypterr.ErrInvalidInput, map[string]string{"words": fmt.Sprint(wordCount)})
	}

	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// NormalizeMnemonic lowercases the phrase, strips list numbering and commas,
// and collapses whitespace.
func NormalizeMnemonic(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateMnemonic checks word count, word validity, and checksum. Misspelled
// words come back as a suggestion on the error.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonic(mnemonic)
	words := strings.Fields(normalized)
	if len(words) != 12 && len(words) != 24 {
		return krypterr.WithDetails(krypterr.ErrInvalidMnemonic, map[string]string{"words": fmt.Sprint(len(words))})
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		if hint := typoHint(words); hint != "" {
			return krypterr.WithSuggestion(krypterr.ErrInvalidMnemonic, hint)
		}
		return krypterr.ErrInvalidMnemonic
	}
	return nil
}

// MnemonicToSeed validates the phrase and derives its 64-byte BIP39 seed.
// The caller should zero the seed after use.
func MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	return bip39.NewSeed(NormalizeMnemonic(mnemonic), passphrase), nil
}

// SuggestWord returns the closest BIP39 word within MaxTypoDistance, or "".
func SuggestWord(input string) string {
	input = strings.ToLower(input)

	minDist := math.MaxInt
	var suggestion string
	for _, word := range bip39.GetWordList() {
		dist := levenshtein.ComputeDistance(input, word)
		if dist == 0 {
			return word
		}
		if dist < minDist {
			minDist, suggestion = dist, word
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

func typoHint(words []string) string {
	var hints []string
	for i, w := range words {
		if _, ok := bip39.GetWordIndex(w); ok {
			continue
		}
		if s := SuggestWord(w); s != "" {
			hints = append(hints, fmt.Sprintf("word %d: '%s' - did you mean '%s'?", i+1, w, s))
		} else {
			hints = append(hints, fmt.Sprintf("word %d: '%s' is not a valid BIP39 word", i+1, w))
		}
	}
	return strings.Join(hints, "; ")
}
