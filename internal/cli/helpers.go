package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/krypt/internal/output"
)

// historyTimeLayout renders transfer timestamps in the history table.
const historyTimeLayout = "2006-01-02 15:04:05"

func warnf(cmd *cobra.Command, format string, args ...any) {
	output.Warnf(cmd.ErrOrStderr(), format, args...)
}

func formatCount(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(historyTimeLayout)
}
