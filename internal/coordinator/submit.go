package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/krypt/internal/chain"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// recipientPattern accepts a 0x-prefixed hex address of up to 20 bytes.
// Shorter values are left-padded by the wallet.
var recipientPattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]{1,40}$`)

// errRecordMismatch reports a mined record whose Transfer log does not match
// the submitted recipient and amount.
var errRecordMismatch = errors.New("recorded transfer does not match submission")

// Submit sends the form's value to the recipient and then records the
// transfer's metadata on the ledger, waiting for the record to be mined.
//
// The record is written only after the value transfer was accepted. A failed
// value transfer returns ErrTransferRejected; any failure after it returns
// ErrConfirmationFailed, since value has already moved. Only one submission
// runs at a time; others fail with ErrAlreadySubmitting. The state is back to
// StateIdle when Submit returns. The form is left as it was.
func (c *Coordinator) Submit(ctx context.Context) (*SubmitResult, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, krypterr.ErrAlreadySubmitting
	}
	defer c.finishSubmit()

	return c.run(ctx, c.Form())
}

// SubmitRequest submits req, or the current form when req is nil. A rejected
// call changes nothing: the form is replaced only once this submission holds
// the in-flight slot. After a success the form is cleared unless it was
// edited while the submission ran.
func (c *Coordinator) SubmitRequest(ctx context.Context, req *TransferRequest) (*SubmitResult, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, krypterr.ErrAlreadySubmitting
	}
	defer c.finishSubmit()

	if req != nil {
		c.SetForm(*req)
	}
	form := c.Form()

	result, err := c.run(ctx, form)
	if err == nil {
		c.resetFormIf(form)
	}
	return result, err
}

func (c *Coordinator) finishSubmit() {
	c.setState(StateIdle)
	c.inFlight.Store(false)
}

func (c *Coordinator) run(ctx context.Context, form TransferRequest) (*SubmitResult, error) {
	start := time.Now()
	result, err := c.submit(ctx, form)
	c.metrics.RecordSubmission(time.Since(start), err)
	if err != nil {
		c.logger.Error("submit: %v", err)
	}
	return result, err
}

func (c *Coordinator) submit(ctx context.Context, form TransferRequest) (*SubmitResult, error) {
	if !c.wallet.IsAvailable(ctx) {
		return nil, krypterr.ErrWalletUnavailable
	}
	from := c.Account()
	if from == "" {
		return nil, krypterr.ErrNotConnected
	}

	to := strings.TrimSpace(form.AddressTo)
	if !recipientPattern.MatchString(to) {
		return nil, krypterr.WithDetails(krypterr.ErrInvalidAddress, map[string]string{"addressTo": form.AddressTo})
	}
	wei, err := chain.ParseEther(strings.TrimSpace(form.Amount))
	if err != nil {
		return nil, err
	}

	transferHash, err := c.wallet.SendNativeTransfer(ctx, from, to, wei)
	if err != nil {
		return nil, krypterr.Translate(krypterr.ErrTransferRejected, err)
	}
	c.logger.Debug("value transfer sent: %s", transferHash.Hex())

	partial := func(stage string, cause error, record common.Hash) error {
		details := map[string]string{"stage": stage, "transfer_tx": transferHash.Hex()}
		if record != (common.Hash{}) {
			details["record_tx"] = record.Hex()
		}
		return krypterr.WithDetails(krypterr.Translate(krypterr.ErrConfirmationFailed, cause), details)
	}

	c.setState(StateAwaitingWalletSignature)
	pending, err := c.ledger.RecordTransfer(ctx, from, to, wei, form.Message, form.Keyword)
	if err != nil {
		return nil, partial("record", err, common.Hash{})
	}
	recordHash := pending.Hash()
	c.logger.Debug("record sent: %s", recordHash.Hex())

	c.setState(StateAwaitingChainConfirmation)
	receipt, err := pending.Wait(ctx)
	if err != nil {
		return nil, partial("confirm", err, recordHash)
	}
	if err := c.verifyRecord(receipt, to, wei); err != nil {
		return nil, partial("verify", err, recordHash)
	}

	count, err := c.ledger.FetchCount(ctx)
	if err != nil {
		return nil, partial("count", err, recordHash)
	}
	if err := c.cache.Set(count); err != nil {
		c.logger.Error("counter cache: %v", err)
	}

	if err := c.RefreshHistory(ctx); err != nil {
		return nil, partial("refresh", err, recordHash)
	}

	return &SubmitResult{TransferHash: transferHash, RecordHash: recordHash, Count: count}, nil
}

// verifyRecord checks the mined record against the submitted transfer. A
// receipt without decodable Transfer logs is accepted as is.
func (c *Coordinator) verifyRecord(receipt *types.Receipt, to string, wei *big.Int) error {
	events, err := c.ledger.ParseTransferEvents(receipt)
	if err != nil {
		c.logger.Error("decoding record events: %v", err)
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	receiver := common.HexToAddress(to)
	for _, ev := range events {
		if ev.Receiver == receiver && ev.Amount != nil && ev.Amount.Cmp(wei) == 0 {
			c.logger.Debug("recorded transfer %s -> %s (%s wei) at %s", ev.From.Hex(), ev.Receiver.Hex(), ev.Amount, ev.Timestamp)
			return nil
		}
	}
	return fmt.Errorf("%w: expected %s wei to %s", errRecordMismatch, wei, receiver.Hex())
}
