// Package coordinator drives the transfer lifecycle: wallet connection,
// the two-step submit protocol, and mirroring of the on-chain ledger.
package coordinator

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/krypt/internal/cache"
	"github.com/mrz1836/krypt/internal/chain"
	"github.com/mrz1836/krypt/internal/ledger"
	"github.com/mrz1836/krypt/internal/metrics"
	"github.com/mrz1836/krypt/internal/wallet"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// Config holds dependencies for the coordinator.
type Config struct {
	Wallet  wallet.Gateway
	Ledger  Ledger
	Cache   CounterCache
	Logger  LogWriter
	Metrics *metrics.Metrics
}

// Coordinator owns the connected account, the transfer form, the mirrored
// transfer list and the submission state. It is safe for concurrent use.
type Coordinator struct {
	wallet  wallet.Gateway
	ledger  Ledger
	cache   CounterCache
	logger  LogWriter
	metrics *metrics.Metrics

	mu      sync.RWMutex
	account string
	form    TransferRequest

	records  atomic.Pointer[[]TransferRecord]
	state    atomic.Int32
	inFlight atomic.Bool
}

// New creates a coordinator. A nil cache uses an in-memory store.
func New(cfg *Config) *Coordinator {
	c := &Coordinator{
		wallet:  cfg.Wallet,
		ledger:  cfg.Ledger,
		cache:   cfg.Cache,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if c.cache == nil {
		c.cache = cache.NewMemoryStore()
	}
	if c.logger == nil {
		c.logger = nopLogger{}
	}
	empty := []TransferRecord{}
	c.records.Store(&empty)
	return c
}

// Initialize discovers an already authorized account without prompting,
// refreshing history when one is found, and mirrors the on-chain count into
// the counter cache. The two steps run independently; a failure in one does
// not stop the other. Failures are logged and returned joined for reporting,
// and never leave the coordinator unusable.
func (c *Coordinator) Initialize(ctx context.Context) error {
	var accountErr, countErr error

	var g errgroup.Group
	g.Go(func() error {
		accountErr = c.discoverAccount(ctx)
		if accountErr != nil {
			c.logger.Error("initialize: account discovery: %v", accountErr)
		}
		return nil
	})
	g.Go(func() error {
		countErr = c.syncCount(ctx)
		if countErr != nil {
			c.logger.Error("initialize: count sync: %v", countErr)
		}
		return nil
	})
	_ = g.Wait()

	return errors.Join(accountErr, countErr)
}

func (c *Coordinator) discoverAccount(ctx context.Context) error {
	if !c.wallet.IsAvailable(ctx) {
		return krypterr.ErrWalletUnavailable
	}

	accounts, err := c.wallet.Accounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		c.logger.Debug("initialize: no authorized accounts")
		return nil
	}

	c.setAccount(accounts[0])
	return c.RefreshHistory(ctx)
}

func (c *Coordinator) syncCount(ctx context.Context) error {
	n, err := c.ledger.FetchCount(ctx)
	if err != nil {
		return err
	}
	return c.cache.Set(n)
}

// Connect asks the wallet to authorize an account and makes the first one
// current. Without a wallet it fails with ErrWalletUnavailable and changes
// nothing.
func (c *Coordinator) Connect(ctx context.Context) (string, error) {
	if !c.wallet.IsAvailable(ctx) {
		return "", krypterr.ErrWalletUnavailable
	}

	accounts, err := c.wallet.RequestAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", krypterr.ErrUserDenied
	}

	c.setAccount(accounts[0])
	return accounts[0], nil
}

// RefreshHistory replaces the transfer list with the ledger's full list.
// On failure the current list is kept.
func (c *Coordinator) RefreshHistory(ctx context.Context) error {
	raws, err := c.ledger.FetchAll(ctx)
	c.metrics.RecordRefresh(err)
	if err != nil {
		return err
	}

	records := make([]TransferRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, toRecord(raw))
	}
	c.records.Store(&records)
	c.logger.Debug("history refreshed: %d transfers", len(records))
	return nil
}

// HasTransactions reports whether the ledger holds any transfer. A positive
// cached count answers without a chain call.
func (c *Coordinator) HasTransactions(ctx context.Context) (bool, error) {
	n, ok, err := c.cache.Get()
	if err != nil {
		c.logger.Error("counter cache: %v", err)
	}
	if err == nil && ok && n > 0 {
		c.metrics.RecordCacheHit()
		return true, nil
	}
	c.metrics.RecordCacheMiss()

	count, err := c.ledger.FetchCount(ctx)
	if err != nil {
		return false, err
	}
	if err := c.cache.Set(count); err != nil {
		c.logger.Error("counter cache: %v", err)
	}
	return count > 0, nil
}

// Account returns the current account, or "" when none is connected.
func (c *Coordinator) Account() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// Transactions returns a copy of the current transfer list. The stored
// records are never shared with callers.
func (c *Coordinator) Transactions() []TransferRecord {
	stored := *c.records.Load()
	out := make([]TransferRecord, len(stored))
	for i, rec := range stored {
		out[i] = rec.clone()
	}
	return out
}

// State returns the submission state.
func (c *Coordinator) State() SubmissionState {
	return SubmissionState(c.state.Load())
}

// InFlight reports whether a submission is running.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Snapshot returns the exposed state in one value.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	account, form := c.account, c.form
	c.mu.RUnlock()

	snap := Snapshot{
		Account:      account,
		Form:         form,
		InFlight:     c.InFlight(),
		State:        c.State(),
		Transactions: c.Transactions(),
	}
	if n, ok, err := c.cache.Get(); err == nil && ok {
		snap.CachedCount, snap.HasCachedCount = n, true
	}
	return snap
}

func (c *Coordinator) setAccount(account string) {
	c.mu.Lock()
	prev := c.account
	c.account = account
	c.mu.Unlock()

	if prev != account {
		c.logger.Debug("account %q -> %q", prev, account)
	}
}

func (c *Coordinator) setState(next SubmissionState) {
	prev := SubmissionState(c.state.Swap(int32(next)))
	if prev != next {
		c.logger.Debug("state %s -> %s", prev, next)
	}
}

func toRecord(raw ledger.RawTransfer) TransferRecord {
	wei := new(big.Int)
	if raw.Amount != nil {
		wei.Set(raw.Amount)
	}

	var ts time.Time
	if raw.Timestamp != nil && raw.Timestamp.IsInt64() {
		ts = time.Unix(raw.Timestamp.Int64(), 0).UTC()
	}

	return TransferRecord{
		AddressFrom: raw.Sender.Hex(),
		AddressTo:   raw.Receiver.Hex(),
		AmountWei:   wei,
		Amount:      chain.FormatEther(wei),
		Message:     raw.Message,
		Keyword:     raw.Keyword,
		Timestamp:   ts,
	}
}
