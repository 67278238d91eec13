package eth

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/krypt/internal/chain"
	"github.com/mrz1836/krypt/internal/chain/eth/ethtest"
	"github.com/mrz1836/krypt/internal/metrics"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

const testAccount = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

func newTestClient(t *testing.T, srv *ethtest.Server, m *metrics.Metrics) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, &ClientOptions{Metrics: m})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("creates client with valid URL", func(t *testing.T) {
		t.Parallel()
		client, err := NewClient("http://localhost:8545", nil)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8545", client.URL())
	})

	t.Run("returns error for empty URL", func(t *testing.T) {
		t.Parallel()
		_, err := NewClient("", nil)
		require.ErrorIs(t, err, ErrRPCURLRequired)
	})
}

func TestClient_ChainIDDetectedOnce(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.Result("eth_chainId", "0xaa36a7")
	srv.Result("eth_gasPrice", "0x3b9aca00")

	c := newTestClient(t, srv, nil)
	ctx := testCtx(t)

	id, err := c.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(11155111), id)

	price, err := c.SuggestGasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000_000), price)

	assert.Len(t, srv.Calls("eth_chainId"), 1)
}

func TestClient_ConfiguredChainIDSkipsDetection(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.Result("eth_getBalance", "0xde0b6b3a7640000")

	c, err := NewClient(srv.URL, &ClientOptions{ChainID: big.NewInt(31337)})
	require.NoError(t, err)
	defer c.Close()

	balance, err := c.BalanceAt(testCtx(t), common.HexToAddress(testAccount))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())
	assert.Empty(t, srv.Calls("eth_chainId"))
}

func TestClient_CallContract(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.Result("eth_chainId", "0x1")
	srv.Handle("eth_call", func(params []json.RawMessage) (any, error) {
		var msg map[string]any
		if err := json.Unmarshal(params[0], &msg); err != nil {
			return nil, err
		}
		assert.Equal(t, "0x5fbdb2315678afecb367f032d93f642f64180aa3", msg["to"])
		return "0x000000000000000000000000000000000000000000000000000000000000002a", nil
	})

	m := metrics.New()
	c := newTestClient(t, srv, m)
	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

	out, err := c.CallContract(testCtx(t), ethereum.CallMsg{To: &to, Data: []byte{0x01}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), new(big.Int).SetBytes(out).Int64())
	series, err := testutil.GatherAndCount(m.Registry(), "krypt_rpc_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestClient_ReceiptPendingIsNotFound(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.Result("eth_chainId", "0x1")
	srv.Result("eth_getTransactionReceipt", nil)

	c := newTestClient(t, srv, metrics.New())

	_, err := c.TransactionReceipt(testCtx(t), common.HexToHash("0x01"))
	require.ErrorIs(t, err, ethereum.NotFound)
	assert.False(t, chain.IsRetryable(err))
}

func TestClient_NodeErrorPassesThrough(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.Result("eth_chainId", "0x1")
	srv.Fail("eth_estimateGas", 3, "execution reverted")

	c := newTestClient(t, srv, nil)

	_, err := c.EstimateGas(testCtx(t), ethereum.CallMsg{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
	assert.False(t, chain.IsRetryable(err))
	assert.NotErrorIs(t, err, krypterr.ErrNetworkError)
}

func TestClient_HTTPStatusClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"forbidden", http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := ethtest.NewServer(t)
			srv.SetHTTPStatus(tt.status)

			c, err := NewClient(srv.URL, &ClientOptions{ChainID: big.NewInt(1)})
			require.NoError(t, err)
			defer c.Close()

			_, err = c.PendingNonceAt(testCtx(t), common.HexToAddress(testAccount))
			require.ErrorIs(t, err, krypterr.ErrNetworkError)
			assert.Equal(t, tt.retryable, chain.IsRetryable(err))
			if tt.status == http.StatusTooManyRequests {
				assert.ErrorIs(t, err, chain.ErrRateLimited)
			}
		})
	}
}

func TestClient_ChainIDFailureAllowsRetry(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.SetHTTPStatus(http.StatusServiceUnavailable)

	c := newTestClient(t, srv, nil)
	ctx := testCtx(t)

	_, err := c.ChainID(ctx)
	require.ErrorIs(t, err, krypterr.ErrNetworkError)

	srv.SetHTTPStatus(0)
	srv.Result("eth_chainId", "0x5")

	id, err := c.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id.Int64())
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)

	limiter := chain.NewRateLimiter(0.001, 1)
	c, err := NewClient(srv.URL, &ClientOptions{ChainID: big.NewInt(1), Limiter: limiter})
	require.NoError(t, err)
	defer c.Close()

	require.True(t, limiter.Allow(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.SuggestGasPrice(ctx)
	require.Error(t, err)
	assert.Empty(t, srv.Calls("eth_gasPrice"))
}
