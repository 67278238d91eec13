package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/krypt/internal/chain"
	"github.com/mrz1836/krypt/internal/wallet"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// DefaultPollInterval is how often a pending record is checked for a receipt.
const DefaultPollInterval = 4 * time.Second

// ErrNoContract indicates the configured address has no contract code.
var ErrNoContract = &krypterr.KryptError{
	Code:       "LEDGER_NO_CONTRACT",
	Message:    "no ledger contract at the configured address",
	Suggestion: "check network.contract and network.rpc in the config",
	ExitCode:   krypterr.ExitGeneral,
}

// Backend is the node access the client needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// RawTransfer is one entry of the contract's transfer list as stored on chain.
// Field names match the ABI tuple components.
type RawTransfer struct {
	Sender    common.Address
	Receiver  common.Address
	Amount    *big.Int
	Message   string
	Timestamp *big.Int
	Keyword   string
}

// TransferEvent is the Transfer log emitted by addToBlockchain.
type TransferEvent struct {
	From      common.Address
	Receiver  common.Address
	Amount    *big.Int
	Message   string
	Timestamp *big.Int
	Keyword   string
}

// Options configures a Client.
type Options struct {
	// GasLimit for record writes. Zero lets the wallet estimate.
	GasLimit uint64
	// PollInterval between receipt checks. Zero uses DefaultPollInterval.
	PollInterval time.Duration
	// Retry applies to reads. The zero value uses chain.DefaultRetryConfig.
	Retry chain.RetryConfig
}

// Client reads and writes the ledger contract.
type Client struct {
	address  common.Address
	backend  Backend
	sender   wallet.Transactor
	gasLimit uint64
	poll     time.Duration
	retry    chain.RetryConfig
}

// NewClient creates a ledger client for the contract at address. sender
// signs record writes and may be nil for a read-only client.
func NewClient(address string, backend Backend, sender wallet.Transactor, opts *Options) (*Client, error) {
	if !common.IsHexAddress(address) {
		return nil, krypterr.WithDetails(krypterr.ErrConfigInvalid, map[string]string{"contract": address})
	}

	c := &Client{
		address: common.HexToAddress(address),
		backend: backend,
		sender:  sender,
		poll:    DefaultPollInterval,
		retry:   chain.DefaultRetryConfig(),
	}
	if opts != nil {
		c.gasLimit = opts.GasLimit
		if opts.PollInterval > 0 {
			c.poll = opts.PollInterval
		}
		if opts.Retry.MaxAttempts > 0 {
			c.retry = opts.Retry
		}
	}
	return c, nil
}

// Address returns the contract address.
func (c *Client) Address() common.Address {
	return c.address
}

// FetchAll returns every recorded transfer in contract order.
func (c *Client) FetchAll(ctx context.Context) ([]RawTransfer, error) {
	out, err := c.read(ctx, methodAll)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]RawTransfer)).(*[]RawTransfer), nil
}

// FetchCount returns the number of recorded transfers.
func (c *Client) FetchCount(ctx context.Context) (uint64, error) {
	out, err := c.read(ctx, methodCount)
	if err != nil {
		return 0, err
	}
	n := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !n.IsUint64() {
		return 0, fmt.Errorf("%s: count %s out of range", methodCount, n)
	}
	return n.Uint64(), nil
}

// RecordTransfer writes a transfer record from the given account and
// returns a handle to await its confirmation.
func (c *Client) RecordTransfer(ctx context.Context, from, to string, amountWei *big.Int, message, keyword string) (*PendingTx, error) {
	if c.sender == nil {
		return nil, krypterr.ErrNotConnected
	}

	data, err := contractABI.Pack(methodRecord, common.HexToAddress(to), amountWei, message, keyword)
	if err != nil {
		return nil, krypterr.Translate(krypterr.ErrInvalidInput, fmt.Errorf("packing %s: %w", methodRecord, err))
	}

	hash, err := c.sender.SendTransaction(ctx, wallet.TxRequest{
		From: common.HexToAddress(from),
		To:   c.address,
		Gas:  c.gasLimit,
		Data: data,
	})
	if err != nil {
		return nil, err
	}

	return &PendingTx{hash: hash, backend: c.backend, poll: c.poll}, nil
}

func (c *Client) read(ctx context.Context, method string) ([]any, error) {
	data, err := contractABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: data}
	result, err := chain.RetryWithConfig(ctx, c.retry, func() ([]byte, error) {
		return c.backend.CallContract(ctx, msg, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	if len(result) == 0 {
		return nil, krypterr.WithDetails(ErrNoContract, map[string]string{"contract": c.address.Hex()})
	}

	out, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decoding %s: empty result", method)
	}
	return out, nil
}

// ParseTransferEvents decodes the Transfer logs a receipt carries.
// Logs from other contracts are skipped.
func (c *Client) ParseTransferEvents(receipt *types.Receipt) ([]TransferEvent, error) {
	if receipt == nil {
		return nil, nil
	}

	id := contractABI.Events[eventTransfer].ID
	var events []TransferEvent
	for _, log := range receipt.Logs {
		if log == nil || log.Address != c.address || len(log.Topics) == 0 || log.Topics[0] != id {
			continue
		}
		var ev TransferEvent
		if err := contractABI.UnpackIntoInterface(&ev, eventTransfer, log.Data); err != nil {
			return nil, fmt.Errorf("decoding %s log: %w", eventTransfer, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
