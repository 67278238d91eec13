package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mrz1836/krypt/internal/metrics"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected = 4001
	codeUnauthorized = 4100
)

// DefaultProbeTimeout bounds the availability probe.
const DefaultProbeTimeout = 1500 * time.Millisecond

// ProviderOptions contains optional configuration for the provider adapter.
type ProviderOptions struct {
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
	Metrics      *metrics.Metrics
}

// Provider talks to an external wallet exposing the EIP-1193 request
// methods over JSON-RPC.
type Provider struct {
	url          string
	probeTimeout time.Duration
	httpClient   *http.Client
	metrics      *metrics.Metrics

	mu sync.Mutex
	rc *rpc.Client
}

// Compile-time interface check
var _ Wallet = (*Provider)(nil)

// NewProvider creates a provider adapter for the wallet at url.
func NewProvider(url string, opts *ProviderOptions) *Provider {
	p := &Provider{url: url, probeTimeout: DefaultProbeTimeout}
	if opts != nil {
		if opts.ProbeTimeout > 0 {
			p.probeTimeout = opts.ProbeTimeout
		}
		p.httpClient = opts.HTTPClient
		p.metrics = opts.Metrics
	}
	return p
}

// IsAvailable probes the wallet with web3_clientVersion. Any JSON-RPC
// answer, including an error object, means a wallet is listening.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	if p.url == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	var version string
	err := p.call(ctx, &version, "web3_clientVersion")
	if err == nil {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

// Accounts returns the accounts the wallet has already authorized.
func (p *Provider) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, mapProviderError(err)
	}
	return normalizeAccounts(accounts), nil
}

// RequestAccounts asks the wallet to prompt the user for authorization.
func (p *Provider) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := p.call(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, mapProviderError(err)
	}
	accounts = normalizeAccounts(accounts)
	if len(accounts) == 0 {
		return nil, krypterr.ErrUserDenied
	}
	return accounts, nil
}

// SendNativeTransfer sends a plain value transfer with the fixed gas allowance.
func (p *Provider) SendNativeTransfer(ctx context.Context, from, to string, valueWei *big.Int) (common.Hash, error) {
	return p.SendTransaction(ctx, transferRequest(from, to, valueWei))
}

// sendTxArgs is the eth_sendTransaction parameter object.
type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    common.Address  `json:"to"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

// SendTransaction asks the wallet to sign and broadcast req.
func (p *Provider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	args := sendTxArgs{From: req.From, To: req.To, Data: req.Data}
	if req.Gas > 0 {
		gas := hexutil.Uint64(req.Gas)
		args.Gas = &gas
	}
	if req.Value != nil {
		args.Value = (*hexutil.Big)(req.Value)
	}

	var hash common.Hash
	if err := p.call(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, mapProviderError(err)
	}
	return hash, nil
}

// Close closes the connection to the wallet.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rc != nil {
		p.rc.Close()
		p.rc = nil
	}
}

func (p *Provider) call(ctx context.Context, result any, method string, args ...any) error {
	rc, err := p.client(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	err = rc.CallContext(ctx, result, method, args...)
	p.metrics.RecordRPCCall(method, time.Since(start), err)
	return err
}

func (p *Provider) client(ctx context.Context) (*rpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rc != nil {
		return p.rc, nil
	}

	var opts []rpc.ClientOption
	if p.httpClient != nil {
		opts = append(opts, rpc.WithHTTPClient(p.httpClient))
	}
	rc, err := rpc.DialOptions(ctx, p.url, opts...)
	if err != nil {
		return nil, fmt.Errorf("dialing wallet: %w", err)
	}
	p.rc = rc
	return rc, nil
}

// mapProviderError translates wallet failures into the lifecycle taxonomy.
func mapProviderError(err error) error {
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch {
		case rpcErr.ErrorCode() == codeUserRejected:
			return krypterr.Translate(krypterr.ErrUserDenied, err)
		case rpcErr.ErrorCode() == codeUnauthorized:
			return krypterr.Translate(krypterr.ErrNotConnected, err)
		case isInsufficientFunds(err):
			return krypterr.Translate(krypterr.ErrInsufficientFunds, err)
		default:
			return krypterr.Wrap(err, "wallet request failed")
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return krypterr.Translate(krypterr.ErrNetworkError, err)
}

func isInsufficientFunds(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}

func normalizeAccounts(accounts []string) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if common.IsHexAddress(a) {
			out = append(out, common.HexToAddress(a).Hex())
		}
	}
	return out
}
