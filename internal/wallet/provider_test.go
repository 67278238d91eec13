package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/krypt/internal/chain/eth/ethtest"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

const (
	testAccount = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	testPayee   = "0x00000000000000000000000000000000000aBc00"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestProvider(t *testing.T, srv *ethtest.Server) *Provider {
	t.Helper()
	p := NewProvider(srv.URL, &ProviderOptions{ProbeTimeout: time.Second})
	t.Cleanup(p.Close)
	return p
}

func TestProvider_IsAvailable(t *testing.T) {
	t.Parallel()

	t.Run("answers client version", func(t *testing.T) {
		t.Parallel()
		srv := ethtest.NewServer(t)
		srv.Result("web3_clientVersion", "Frame/v0.6")
		assert.True(t, newTestProvider(t, srv).IsAvailable(testCtx(t)))
	})

	t.Run("json-rpc error still counts", func(t *testing.T) {
		t.Parallel()
		srv := ethtest.NewServer(t)
		assert.True(t, newTestProvider(t, srv).IsAvailable(testCtx(t)))
	})

	t.Run("http failure is unavailable", func(t *testing.T) {
		t.Parallel()
		srv := ethtest.NewServer(t)
		srv.SetHTTPStatus(http.StatusNotFound)
		assert.False(t, newTestProvider(t, srv).IsAvailable(testCtx(t)))
	})

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()
		srv := ethtest.NewServer(t)
		url := srv.URL
		srv.Close()
		p := NewProvider(url, nil)
		defer p.Close()
		assert.False(t, p.IsAvailable(testCtx(t)))
	})

	t.Run("no url configured", func(t *testing.T) {
		t.Parallel()
		assert.False(t, NewProvider("", nil).IsAvailable(testCtx(t)))
	})
}

func TestProvider_Accounts(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.Result("eth_accounts", []string{"0x9858effd232b4033e47d90003d41ec34ecaeda94", "not-an-address"})

	accounts, err := newTestProvider(t, srv).Accounts(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, []string{testAccount}, accounts)
}

func TestProvider_AccountsEmpty(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.Result("eth_accounts", []string{})

	accounts, err := newTestProvider(t, srv).Accounts(testCtx(t))
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestProvider_RequestAccounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(*ethtest.Server)
		want    []string
		wantErr error
	}{
		{
			name:  "approved",
			setup: func(s *ethtest.Server) { s.Result("eth_requestAccounts", []string{testAccount, testPayee}) },
			want:  []string{testAccount, common.HexToAddress(testPayee).Hex()},
		},
		{
			name:    "user rejected",
			setup:   func(s *ethtest.Server) { s.Fail("eth_requestAccounts", 4001, "User rejected the request.") },
			wantErr: krypterr.ErrUserDenied,
		},
		{
			name:    "empty list",
			setup:   func(s *ethtest.Server) { s.Result("eth_requestAccounts", []string{}) },
			wantErr: krypterr.ErrUserDenied,
		},
		{
			name:    "unauthorized",
			setup:   func(s *ethtest.Server) { s.Fail("eth_requestAccounts", 4100, "Unauthorized") },
			wantErr: krypterr.ErrNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := ethtest.NewServer(t)
			tt.setup(srv)

			got, err := newTestProvider(t, srv).RequestAccounts(testCtx(t))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_SendNativeTransfer(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	txHash := "0x3b1a7e7a9e1c8f5f2e9b0f1d2c3b4a5968778695a4b3c2d1e0f1e2d3c4b5a697"
	srv.Result("eth_sendTransaction", txHash)

	hash, err := newTestProvider(t, srv).SendNativeTransfer(testCtx(t), testAccount, testPayee, big.NewInt(10_000_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash(txHash), hash)

	calls := srv.Calls("eth_sendTransaction")
	require.Len(t, calls, 1)
	var args map[string]string
	require.NoError(t, json.Unmarshal(calls[0].Params[0], &args))
	assert.Equal(t, "0x5208", args["gas"])
	assert.Equal(t, "0x2386f26fc10000", args["value"])
	assert.Equal(t, "0x9858effd232b4033e47d90003d41ec34ecaeda94", args["from"])
	assert.Equal(t, "0x00000000000000000000000000000000000abc00", args["to"])
	assert.NotContains(t, args, "data")
}

func TestProvider_SendTransactionWithData(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.Result("eth_sendTransaction", "0x01")

	_, err := newTestProvider(t, srv).SendTransaction(testCtx(t), TxRequest{
		From: common.HexToAddress(testAccount),
		To:   common.HexToAddress(testPayee),
		Data: []byte{0xde, 0xad},
	})
	require.NoError(t, err)

	var args map[string]string
	require.NoError(t, json.Unmarshal(srv.Calls("eth_sendTransaction")[0].Params[0], &args))
	assert.Equal(t, "0xdead", args["data"])
	assert.NotContains(t, args, "gas")
	assert.NotContains(t, args, "value")
}

func TestProvider_SendErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		code    int
		message string
		want    error
	}{
		{"denied", 4001, "MetaMask Tx Signature: User denied transaction signature.", krypterr.ErrUserDenied},
		{"insufficient funds", -32000, "insufficient funds for gas * price + value", krypterr.ErrInsufficientFunds},
		{"other wallet error", -32603, "internal error", krypterr.ErrGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := ethtest.NewServer(t)
			srv.Fail("eth_sendTransaction", tt.code, tt.message)

			_, err := newTestProvider(t, srv).SendNativeTransfer(testCtx(t), testAccount, testPayee, big.NewInt(1))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProvider_TransportFailureIsNetworkError(t *testing.T) {
	t.Parallel()
	srv := ethtest.NewServer(t)
	srv.SetHTTPStatus(http.StatusBadGateway)

	_, err := newTestProvider(t, srv).Accounts(testCtx(t))
	require.ErrorIs(t, err, krypterr.ErrNetworkError)
}
