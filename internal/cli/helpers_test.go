package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mrz1836/krypt/internal/config"
	"github.com/mrz1836/krypt/internal/coordinator"
	"github.com/mrz1836/krypt/internal/metrics"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

const (
	testAccount  = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

// execute runs the root command with args against a fresh home directory
// unless --home is given, and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvLogLevel, "off")
	t.Setenv(config.EnvContract, "")
	t.Setenv(config.EnvOutputFormat, "")

	resetFlags(rootCmd)
	t.Cleanup(func() {
		cfg, logger, formatter, registry = nil, nil, nil, nil
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	rootCmd.SetContext(context.Background())

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// withMockPrompts replaces prompt functions for testing and restores on cleanup.
func withMockPrompts(t *testing.T, password []byte, mnemonic string) {
	t.Helper()
	origPW := promptPasswordFn
	origNewPW := promptNewPasswordFn
	origMnemonic := promptMnemonicFn
	t.Cleanup(func() {
		promptPasswordFn = origPW
		promptNewPasswordFn = origNewPW
		promptMnemonicFn = origMnemonic
	})
	promptPasswordFn = func(_ string) ([]byte, error) {
		return append([]byte(nil), password...), nil
	}
	promptNewPasswordFn = func() ([]byte, error) {
		return append([]byte(nil), password...), nil
	}
	promptMnemonicFn = func() (string, error) {
		return mnemonic, nil
	}
}

// withSessionFake makes every command use coord.
func withSessionFake(t *testing.T, coord *fakeCoordinator) {
	t.Helper()
	orig := openSessionFn
	t.Cleanup(func() { openSessionFn = orig })
	openSessionFn = func(context.Context, *config.Config, *config.Logger, *metrics.Metrics) (*Session, error) {
		return &Session{Coordinator: coord}, nil
	}
}

type fakeCoordinator struct {
	mu            sync.Mutex
	account       string
	discovered    string
	form          coordinator.TransferRequest
	records       []coordinator.TransferRecord
	cached        uint64
	initErr       error
	connectErr    error
	submitErr     error
	refreshErr    error
	connects      int
	submittedForm coordinator.TransferRequest
}

func (f *fakeCoordinator) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account = f.discovered
	return f.initErr
}

func (f *fakeCoordinator) Snapshot() coordinator.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return coordinator.Snapshot{
		Account:        f.account,
		Form:           f.form,
		Transactions:   f.records,
		CachedCount:    f.cached,
		HasCachedCount: f.cached > 0,
	}
}

func (f *fakeCoordinator) Connect(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return "", f.connectErr
	}
	f.account = testAccount
	return f.account, nil
}

func (f *fakeCoordinator) Form() coordinator.TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

func (f *fakeCoordinator) UpdateField(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case coordinator.FieldAddressTo:
		f.form.AddressTo = value
	case coordinator.FieldAmount:
		f.form.Amount = value
	case coordinator.FieldKeyword:
		f.form.Keyword = value
	case coordinator.FieldMessage:
		f.form.Message = value
	default:
		return krypterr.ErrUnknownField
	}
	return nil
}

func (f *fakeCoordinator) SetForm(req coordinator.TransferRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form = req
}

func (f *fakeCoordinator) ResetForm() { f.SetForm(coordinator.TransferRequest{}) }

func (f *fakeCoordinator) Submit(context.Context) (*coordinator.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submittedForm = f.form
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &coordinator.SubmitResult{
		TransferHash: common.HexToHash("0xa001"),
		RecordHash:   common.HexToHash("0xbeef"),
		Count:        uint64(len(f.records) + 1),
	}, nil
}

func (f *fakeCoordinator) SubmitRequest(ctx context.Context, req *coordinator.TransferRequest) (*coordinator.SubmitResult, error) {
	if req != nil {
		f.SetForm(*req)
	}
	return f.Submit(ctx)
}

func (f *fakeCoordinator) Transactions() []coordinator.TransferRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]coordinator.TransferRecord(nil), f.records...)
}

func (f *fakeCoordinator) RefreshHistory(context.Context) error {
	return f.refreshErr
}

func (f *fakeCoordinator) HasTransactions(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached > 0 || len(f.records) > 0, nil
}
