package coordinator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/krypt/internal/ledger"
)

// Ledger is the transfer ledger contract.
type Ledger interface {
	FetchAll(ctx context.Context) ([]ledger.RawTransfer, error)
	FetchCount(ctx context.Context) (uint64, error)
	RecordTransfer(ctx context.Context, from, to string, amountWei *big.Int, message, keyword string) (*ledger.PendingTx, error)
	ParseTransferEvents(receipt *types.Receipt) ([]ledger.TransferEvent, error)
}

// CounterCache holds the advisory transaction count.
type CounterCache interface {
	Get() (uint64, bool, error)
	Set(n uint64) error
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
