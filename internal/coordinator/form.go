package coordinator

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// Form field names.
const (
	FieldAddressTo = "addressTo"
	FieldAmount    = "amount"
	FieldKeyword   = "keyword"
	FieldMessage   = "message"
)

// maxFieldDistance bounds the "did you mean" suggestion for field names.
const maxFieldDistance = 3

var fieldNames = []string{FieldAddressTo, FieldAmount, FieldKeyword, FieldMessage}

// fieldAliases maps folded spellings to field names.
var fieldAliases = map[string]string{
	"addressto": FieldAddressTo,
	"to":        FieldAddressTo,
	"amount":    FieldAmount,
	"keyword":   FieldKeyword,
	"message":   FieldMessage,
}

// UpdateField sets one form field. Snake and kebab spellings of the field
// names are accepted.
func (c *Coordinator) UpdateField(name, value string) error {
	field, err := resolveField(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch field {
	case FieldAddressTo:
		c.form.AddressTo = value
	case FieldAmount:
		c.form.Amount = value
	case FieldKeyword:
		c.form.Keyword = value
	case FieldMessage:
		c.form.Message = value
	}
	return nil
}

// SetForm replaces the whole form.
func (c *Coordinator) SetForm(req TransferRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = req
}

// ResetForm clears the form.
func (c *Coordinator) ResetForm() {
	c.SetForm(TransferRequest{})
}

// resetFormIf clears the form when it still equals submitted.
func (c *Coordinator) resetFormIf(submitted TransferRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form == submitted {
		c.form = TransferRequest{}
	}
}

// Form returns the current form.
func (c *Coordinator) Form() TransferRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.form
}

func resolveField(name string) (string, error) {
	folded := foldFieldName(name)
	if field, ok := fieldAliases[folded]; ok {
		return field, nil
	}

	err := krypterr.WithDetails(krypterr.ErrUnknownField, map[string]string{"field": name})
	if s := suggestField(folded); s != "" {
		err = krypterr.WithSuggestion(err, fmt.Sprintf("did you mean '%s'?", s))
	}
	return "", err
}

func foldFieldName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "", "-", "").Replace(name)
}

func suggestField(folded string) string {
	best, bestDist := "", maxFieldDistance+1
	for _, f := range fieldNames {
		if d := levenshtein.ComputeDistance(folded, strings.ToLower(f)); d < bestDist {
			best, bestDist = f, d
		}
	}
	return best
}
