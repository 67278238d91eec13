package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/krypt/internal/chain"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// ReceiptSource looks up transaction receipts.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// PendingTx is a submitted record write awaiting inclusion.
type PendingTx struct {
	hash    common.Hash
	backend ReceiptSource
	poll    time.Duration
}

// NewPendingTx returns a handle for an already submitted transaction.
func NewPendingTx(hash common.Hash, backend ReceiptSource, poll time.Duration) *PendingTx {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &PendingTx{hash: hash, backend: backend, poll: poll}
}

// Hash returns the transaction hash.
func (p *PendingTx) Hash() common.Hash {
	return p.hash
}

// Wait blocks until the transaction is mined. A reverted transaction fails
// with ErrTxReverted. Transient node errors keep the wait going; only ctx
// bounds it.
func (p *PendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		receipt, err := p.backend.TransactionReceipt(ctx, p.hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, krypterr.WithDetails(krypterr.ErrTxReverted, map[string]string{
					"tx":       p.hash.Hex(),
					"gas_used": strconv.FormatUint(receipt.GasUsed, 10),
				})
			}
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound), chain.IsRetryable(err):
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
