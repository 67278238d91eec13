package cli

import (
	"context"
	"errors"
	"math/big"

	"github.com/mrz1836/krypt/internal/api"
	"github.com/mrz1836/krypt/internal/cache"
	"github.com/mrz1836/krypt/internal/chain"
	"github.com/mrz1836/krypt/internal/chain/eth"
	"github.com/mrz1836/krypt/internal/config"
	"github.com/mrz1836/krypt/internal/coordinator"
	"github.com/mrz1836/krypt/internal/ledger"
	"github.com/mrz1836/krypt/internal/metrics"
	"github.com/mrz1836/krypt/internal/wallet"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

// Coordinator is the coordinator surface used by commands.
type Coordinator interface {
	api.Coordinator
	Initialize(ctx context.Context) error
}

// Session is a wired coordinator plus the resources it holds.
type Session struct {
	Coordinator Coordinator
	closers     []func() error
}

// Close releases the session's resources in reverse order of acquisition.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// openSessionFn builds the session for a command; tests replace it.
//
//nolint:gochecknoglobals // Swappable for testing
var openSessionFn = openSession

// openSession wires node client, wallet gateway, ledger client and counter
// cache into a coordinator.
func openSession(_ context.Context, c *config.Config, log *config.Logger, m *metrics.Metrics) (*Session, error) {
	if c.GetContract() == "" {
		return nil, krypterr.WithSuggestion(
			krypterr.WithDetails(krypterr.ErrConfigInvalid, map[string]string{"network.contract": ""}),
			"set network.contract in config.yaml or "+config.EnvContract,
		)
	}

	s := &Session{}

	opts := &eth.ClientOptions{
		Limiter: chain.NewRateLimiter(c.Network.RateLimit, c.Network.RateBurst),
		Metrics: m,
	}
	if c.Network.ChainID > 0 {
		opts.ChainID = big.NewInt(c.Network.ChainID)
	}
	node, err := eth.NewClient(c.GetRPC(), opts)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() error { node.Close(); return nil })

	gateway := newGateway(c, node, m)
	if closer, ok := gateway.(interface{ Close() }); ok {
		s.closers = append(s.closers, func() error { closer.Close(); return nil })
	}
	if locker, ok := gateway.(interface{ Lock() }); ok {
		s.closers = append(s.closers, func() error { locker.Lock(); return nil })
	}

	ledgerClient, err := ledger.NewClient(c.GetContract(), node, gateway, &ledger.Options{
		GasLimit:     c.Network.RecordGasLimit,
		PollInterval: c.ConfirmPoll(),
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	store, err := cache.Open(c.Cache.Backend, c.CachePath())
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.closers = append(s.closers, store.Close)

	s.Coordinator = coordinator.New(&coordinator.Config{
		Wallet:  gateway,
		Ledger:  ledgerClient,
		Cache:   store,
		Logger:  log,
		Metrics: m,
	})
	return s, nil
}

// newGateway returns the wallet adapter for the configured mode.
func newGateway(c *config.Config, node *eth.Client, m *metrics.Metrics) wallet.Wallet {
	if c.Wallet.Mode == config.WalletModeKeystore {
		return wallet.NewKeystore(c.KeystorePath(), node, &wallet.KeystoreOptions{
			Passphrase: func(context.Context) ([]byte, error) {
				return promptPasswordFn("Keystore passphrase: ")
			},
			Confirm: func(_ context.Context, tx wallet.TxSummary) (bool, error) {
				return promptTxConfirmFn(tx), nil
			},
		})
	}
	return wallet.NewProvider(c.Wallet.ProviderURL, &wallet.ProviderOptions{
		ProbeTimeout: c.ProbeTimeout(),
		Metrics:      m,
	})
}
