// Package eth provides the node client used for contract reads, receipts,
// and broadcasting locally signed transactions.
package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mrz1836/krypt/internal/chain"
	"github.com/mrz1836/krypt/internal/metrics"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// ErrRPCURLRequired indicates the RPC URL was not provided.
var ErrRPCURLRequired = &krypterr.KryptError{
	Code:     "ETH_RPC_URL_REQUIRED",
	Message:  "RPC URL is required",
	ExitCode: krypterr.ExitInput,
}

// ClientOptions contains optional configuration for the node client.
type ClientOptions struct {
	// ChainID skips chain id detection on first use.
	ChainID *big.Int
	// HTTPClient overrides the transport used for the RPC connection.
	HTTPClient *http.Client
	// Limiter throttles outgoing calls. Nil disables throttling.
	Limiter *chain.RateLimiter
	// Metrics receives per-call observations. Nil disables recording.
	Metrics *metrics.Metrics
}

// Client provides node access over JSON-RPC.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	limiter    *chain.RateLimiter
	metrics    *metrics.Metrics

	mu      sync.Mutex
	rc      *rpc.Client
	ec      *ethclient.Client
	chainID *big.Int
	initErr error
}

// NewClient creates a node client. The connection is dialled lazily.
func NewClient(rpcURL string, opts *ClientOptions) (*Client, error) {
	if rpcURL == "" {
		return nil, ErrRPCURLRequired
	}

	c := &Client{rpcURL: rpcURL}
	if opts != nil {
		c.chainID = opts.ChainID
		c.httpClient = opts.HTTPClient
		c.limiter = opts.Limiter
		c.metrics = opts.Metrics
	}
	return c, nil
}

// URL returns the node endpoint.
func (c *Client) URL() string {
	return c.rpcURL
}

// ChainID returns the chain id, detecting it on first use.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if _, err := c.connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.chainID), nil
}

// CallContract executes a read-only contract call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, "eth_call", func(ec *ethclient.Client) ([]byte, error) {
		return ec.CallContract(ctx, msg, blockNumber)
	})
}

// TransactionReceipt returns the receipt of a mined transaction.
// ethereum.NotFound is returned unchanged while the transaction is pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return call(ctx, c, "eth_getTransactionReceipt", func(ec *ethclient.Client) (*types.Receipt, error) {
		return ec.TransactionReceipt(ctx, hash)
	})
}

// BalanceAt returns the latest balance of account in wei.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return call(ctx, c, "eth_getBalance", func(ec *ethclient.Client) (*big.Int, error) {
		return ec.BalanceAt(ctx, account, nil)
	})
}

// PendingNonceAt returns the next nonce for account.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(ctx, c, "eth_getTransactionCount", func(ec *ethclient.Client) (uint64, error) {
		return ec.PendingNonceAt(ctx, account)
	})
}

// SuggestGasPrice returns the node's legacy gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, "eth_gasPrice", func(ec *ethclient.Client) (*big.Int, error) {
		return ec.SuggestGasPrice(ctx)
	})
}

// EstimateGas estimates the gas needed to execute msg.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(ctx, c, "eth_estimateGas", func(ec *ethclient.Client) (uint64, error) {
		return ec.EstimateGas(ctx, msg)
	})
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := call(ctx, c, "eth_sendRawTransaction", func(ec *ethclient.Client) (struct{}, error) {
		return struct{}{}, ec.SendTransaction(ctx, tx)
	})
	return err
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rc != nil {
		c.rc.Close()
		c.rc = nil
		c.ec = nil
	}
}

func call[T any](ctx context.Context, c *Client, method string, fn func(*ethclient.Client) (T, error)) (T, error) {
	var zero T

	ec, err := c.connect(ctx)
	if err != nil {
		return zero, err
	}

	if err := c.limiter.Wait(ctx, c.rpcURL); err != nil {
		return zero, err
	}

	start := time.Now()
	result, err := fn(ec)
	c.metrics.RecordRPCCall(method, time.Since(start), ignoreNotFound(err))
	if err != nil {
		return zero, classify(err)
	}
	return result, nil
}

// connect establishes the RPC connection if not already connected.
// This method is thread-safe and allows retries after transient failures.
func (c *Client) connect(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ec != nil && c.initErr == nil {
		return c.ec, nil
	}

	var opts []rpc.ClientOption
	if c.httpClient != nil {
		opts = append(opts, rpc.WithHTTPClient(c.httpClient))
	}
	rc, err := rpc.DialOptions(ctx, c.rpcURL, opts...)
	if err != nil {
		c.initErr = krypterr.Translate(krypterr.ErrNetworkError, fmt.Errorf("dialing %s: %w", c.rpcURL, err))
		return nil, c.initErr
	}
	ec := ethclient.NewClient(rc)

	if c.chainID == nil {
		id, err := ec.ChainID(ctx)
		if err != nil {
			rc.Close()
			c.initErr = classify(fmt.Errorf("getting chain ID: %w", err))
			return nil, c.initErr
		}
		c.chainID = id
	}

	c.rc, c.ec, c.initErr = rc, ec, nil
	return ec, nil
}

// classify marks transport failures as network errors, retryable where a
// second attempt may succeed. Errors answered by the node pass through.
func classify(err error) error {
	if err == nil || errors.Is(err, ethereum.NotFound) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", chain.ErrRateLimited, krypterr.Translate(krypterr.ErrNetworkError, err))
		case httpErr.StatusCode >= http.StatusInternalServerError:
			return chain.WrapRetryable(krypterr.Translate(krypterr.ErrNetworkError, err))
		default:
			return krypterr.Translate(krypterr.ErrNetworkError, err)
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return chain.WrapRetryable(krypterr.Translate(krypterr.ErrNetworkError, err))
	}

	return err
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ethereum.NotFound) {
		return nil
	}
	return err
}
