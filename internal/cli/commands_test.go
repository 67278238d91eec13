package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/krypt/internal/config"
	"github.com/mrz1836/krypt/internal/coordinator"
	"github.com/mrz1836/krypt/internal/metrics"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

func TestStatus(t *testing.T) {
	coord := &fakeCoordinator{discovered: testAccount, cached: 3}
	withSessionFake(t, coord)

	stdout, _, err := execute(t, "--home", t.TempDir(), "-o", "json", "status")
	require.NoError(t, err)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, testAccount, resp.Account)
	assert.True(t, resp.Connected)
	assert.True(t, resp.HasTransfers)
	assert.Equal(t, uint64(3), resp.CachedCount)
	assert.Equal(t, "idle", resp.State)
	assert.Equal(t, config.WalletModeProvider, resp.WalletMode)
}

func TestStatus_LedgerTransfersWithoutAccount(t *testing.T) {
	coord := &fakeCoordinator{cached: 2}
	withSessionFake(t, coord)

	stdout, _, err := execute(t, "--home", t.TempDir(), "-o", "text", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(not connected)")
	assert.Regexp(t, `Transfers on ledger\s+yes`, stdout)
	assert.Regexp(t, `Loaded transfers\s+0`, stdout)
}

func TestStatus_InitializeFailureIsWarning(t *testing.T) {
	coord := &fakeCoordinator{initErr: krypterr.ErrWalletUnavailable}
	withSessionFake(t, coord)

	stdout, stderr, err := execute(t, "--home", t.TempDir(), "-o", "text", "status")
	require.NoError(t, err)
	assert.Contains(t, stderr, "no wallet")
	assert.Contains(t, stdout, "(not connected)")
}

func TestConnect(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		coord := &fakeCoordinator{}
		withSessionFake(t, coord)

		stdout, _, err := execute(t, "--home", t.TempDir(), "-o", "text", "connect")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Connected "+testAccount)
	})

	t.Run("denied", func(t *testing.T) {
		withSessionFake(t, &fakeCoordinator{connectErr: krypterr.ErrUserDenied})

		_, _, err := execute(t, "--home", t.TempDir(), "connect")
		require.ErrorIs(t, err, krypterr.ErrUserDenied)
		assert.Equal(t, krypterr.ExitAuth, ExitCode(err))
	})
}

func TestSend(t *testing.T) {
	coord := &fakeCoordinator{discovered: testAccount}
	withSessionFake(t, coord)

	stdout, _, err := execute(t, "--home", t.TempDir(), "-o", "json", "send",
		"--to", "0xabc", "--amount", "0.5", "--message", "hi", "--keyword", "cat")
	require.NoError(t, err)

	assert.Equal(t, coordinator.TransferRequest{AddressTo: "0xabc", Amount: "0.5", Keyword: "cat", Message: "hi"}, coord.submittedForm)
	assert.Zero(t, coord.connects, "already connected")

	var resp SendResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, testAccount, resp.From)
	assert.Equal(t, uint64(1), resp.Count)
	assert.True(t, strings.HasSuffix(resp.RecordHash, "beef"))
}

func TestSend_ConnectsWhenNoAccount(t *testing.T) {
	coord := &fakeCoordinator{}
	withSessionFake(t, coord)

	_, _, err := execute(t, "--home", t.TempDir(), "-o", "json", "send", "--to", "0xabc", "--amount", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, coord.connects)
}

func TestSend_Errors(t *testing.T) {
	partial := krypterr.WithDetails(
		krypterr.Translate(krypterr.ErrConfirmationFailed, krypterr.ErrTxReverted),
		map[string]string{"stage": "confirm"},
	)

	tests := []struct {
		name     string
		coord    *fakeCoordinator
		args     []string
		wantErr  error
		exitCode int
		warning  bool
	}{
		{
			name:     "partial failure",
			coord:    &fakeCoordinator{discovered: testAccount, submitErr: partial},
			args:     []string{"--to", "0xabc", "--amount", "1"},
			wantErr:  krypterr.ErrConfirmationFailed,
			exitCode: krypterr.ExitPartial,
			warning:  true,
		},
		{
			name:     "rejected",
			coord:    &fakeCoordinator{discovered: testAccount, submitErr: krypterr.Translate(krypterr.ErrTransferRejected, krypterr.ErrInsufficientFunds)},
			args:     []string{"--to", "0xabc", "--amount", "1"},
			wantErr:  krypterr.ErrInsufficientFunds,
			exitCode: krypterr.ExitGeneral,
		},
		{
			name:     "connect denied",
			coord:    &fakeCoordinator{connectErr: krypterr.ErrUserDenied},
			args:     []string{"--to", "0xabc", "--amount", "1"},
			wantErr:  krypterr.ErrUserDenied,
			exitCode: krypterr.ExitAuth,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			withSessionFake(t, tc.coord)

			args := append([]string{"--home", t.TempDir(), "send"}, tc.args...)
			_, stderr, err := execute(t, args...)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.exitCode, ExitCode(err))
			assert.Equal(t, tc.warning, strings.Contains(stderr, "value transfer was sent"))
		})
	}
}

func TestSend_RequiredFlags(t *testing.T) {
	withSessionFake(t, &fakeCoordinator{})

	_, _, err := execute(t, "--home", t.TempDir(), "send", "--amount", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to")
}

func TestHistory(t *testing.T) {
	coord := &fakeCoordinator{records: []coordinator.TransferRecord{
		{
			AddressFrom: testAccount,
			AddressTo:   "0x0000000000000000000000000000000000000ABC",
			Amount:      "0.5",
			Keyword:     "cat",
			Message:     "hi",
			Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			AddressFrom: testAccount,
			AddressTo:   "0x0000000000000000000000000000000000000ABC",
			Amount:      "12",
		},
	}}
	withSessionFake(t, coord)

	stdout, _, err := execute(t, "--home", t.TempDir(), "-o", "text", "history")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "TIME (UTC)"))
	assert.Contains(t, lines[2], "2026-03-01 12:00:00")
	assert.Contains(t, lines[2], " 0.5  cat")
	assert.Contains(t, lines[3], "  12")
}

func TestHistory_Empty(t *testing.T) {
	withSessionFake(t, &fakeCoordinator{})

	stdout, _, err := execute(t, "--home", t.TempDir(), "-o", "text", "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No transfers recorded yet")
}

func TestHistory_RefreshFailure(t *testing.T) {
	withSessionFake(t, &fakeCoordinator{refreshErr: krypterr.ErrNetworkError})

	_, _, err := execute(t, "--home", t.TempDir(), "history")
	require.ErrorIs(t, err, krypterr.ErrNetworkError)
}

func TestOpenSession(t *testing.T) {
	t.Run("missing contract", func(t *testing.T) {
		c := config.Defaults()
		c.Home = t.TempDir()

		_, err := openSession(context.Background(), c, config.NullLogger(), metrics.New())
		require.ErrorIs(t, err, krypterr.ErrConfigInvalid)
	})

	backends := []string{config.CacheBackendFile, config.CacheBackendBadger}
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			c := config.Defaults()
			c.Home = t.TempDir()
			c.Network.Contract = testContract
			c.Cache.Backend = backend

			s, err := openSession(context.Background(), c, config.NullLogger(), metrics.New())
			require.NoError(t, err)
			require.NotNil(t, s.Coordinator)
			assert.Empty(t, s.Coordinator.Snapshot().Account)
			require.NoError(t, s.Close())
		})
	}

	t.Run("keystore mode", func(t *testing.T) {
		c := config.Defaults()
		c.Home = t.TempDir()
		c.Network.Contract = testContract
		c.Wallet.Mode = config.WalletModeKeystore

		s, err := openSession(context.Background(), c, config.NullLogger(), metrics.New())
		require.NoError(t, err)
		defer func() { require.NoError(t, s.Close()) }()

		_, err = s.Coordinator.Connect(context.Background())
		require.ErrorIs(t, err, krypterr.ErrWalletUnavailable)
	})
}
