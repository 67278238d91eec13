package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/krypt/internal/cache"
	"github.com/mrz1836/krypt/internal/ledger"
	"github.com/mrz1836/krypt/internal/metrics"
)

const (
	testAccount = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	testOther   = "0x00000000000000000000000000000000000aBc00"
)

var (
	errBoom        = errors.New("boom")
	testRecordedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// callLog records the order of external calls across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type nativeSend struct {
	from, to string
	value    *big.Int
}

type fakeWallet struct {
	mu         sync.Mutex
	log        *callLog
	available  bool
	accounts   []string
	accountErr error
	granted    []string
	requestErr error
	sendErr    error
	sends      []nativeSend

	// sendGate blocks SendNativeTransfer until closed; sendEntered is
	// signalled when a send starts.
	sendGate    chan struct{}
	sendEntered chan struct{}
}

func (w *fakeWallet) IsAvailable(context.Context) bool { return w.available }

func (w *fakeWallet) Accounts(context.Context) ([]string, error) {
	w.log.add("accounts")
	return w.accounts, w.accountErr
}

func (w *fakeWallet) RequestAccounts(context.Context) ([]string, error) {
	w.log.add("request_accounts")
	return w.granted, w.requestErr
}

func (w *fakeWallet) SendNativeTransfer(_ context.Context, from, to string, value *big.Int) (common.Hash, error) {
	w.log.add("native_transfer")
	signal(w.sendEntered)
	if w.sendGate != nil {
		<-w.sendGate
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sendErr != nil {
		return common.Hash{}, w.sendErr
	}
	w.sends = append(w.sends, nativeSend{from: from, to: to, value: value})
	return common.HexToHash(fmt.Sprintf("0x%x", 0xa000+len(w.sends))), nil
}

func (w *fakeWallet) sendCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sends)
}

type fakeLedger struct {
	mu         sync.Mutex
	log        *callLog
	transfers  []ledger.RawTransfer
	fetchErr   error
	countErr   error
	recordErr  error
	receiptErr error
	reverted   bool
	pending    *ledger.RawTransfer
	fetches    int
	events     []ledger.TransferEvent
	eventsErr  error

	// waitGate blocks confirmation until closed; waitEntered is signalled
	// when a confirmation wait starts.
	waitGate    chan struct{}
	waitEntered chan struct{}
}

func (l *fakeLedger) FetchAll(context.Context) ([]ledger.RawTransfer, error) {
	l.log.add("fetch_all")
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetches++
	if l.fetchErr != nil {
		return nil, l.fetchErr
	}
	return append([]ledger.RawTransfer(nil), l.transfers...), nil
}

func (l *fakeLedger) FetchCount(context.Context) (uint64, error) {
	l.log.add("fetch_count")
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.countErr != nil {
		return 0, l.countErr
	}
	return uint64(len(l.transfers)), nil
}

func (l *fakeLedger) RecordTransfer(_ context.Context, from, to string, amountWei *big.Int, message, keyword string) (*ledger.PendingTx, error) {
	l.log.add("record_transfer")
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return nil, l.recordErr
	}
	l.pending = &ledger.RawTransfer{
		Sender:    common.HexToAddress(from),
		Receiver:  common.HexToAddress(to),
		Amount:    new(big.Int).Set(amountWei),
		Message:   message,
		Timestamp: big.NewInt(testRecordedAt.Unix()),
		Keyword:   keyword,
	}
	return ledger.NewPendingTx(common.HexToHash("0xbeef"), l, time.Millisecond), nil
}

func (l *fakeLedger) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	signal(l.waitEntered)
	if l.waitGate != nil {
		<-l.waitGate
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.receiptErr != nil {
		return nil, l.receiptErr
	}
	if l.reverted {
		return &types.Receipt{Status: types.ReceiptStatusFailed}, nil
	}
	if l.pending != nil {
		l.transfers = append(l.transfers, *l.pending)
		l.pending = nil
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (l *fakeLedger) ParseTransferEvents(*types.Receipt) ([]ledger.TransferEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events, l.eventsErr
}

func (l *fakeLedger) fetchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetches
}

type fakeLogger struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeLogger) Debug(format string, args ...any) { f.add("DEBUG "+format, args...) }
func (f *fakeLogger) Error(format string, args ...any) { f.add("ERROR "+format, args...) }

func (f *fakeLogger) add(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, fmt.Sprintf(format, args...))
}

func (f *fakeLogger) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func signal(ch chan struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

type harness struct {
	log     *callLog
	wallet  *fakeWallet
	ledger  *fakeLedger
	cache   *cache.MemoryStore
	logger  *fakeLogger
	metrics *metrics.Metrics
	coord   *Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := &callLog{}
	h := &harness{
		log:     log,
		wallet:  &fakeWallet{log: log, available: true, accounts: []string{testAccount}, granted: []string{testAccount}},
		ledger:  &fakeLedger{log: log},
		cache:   cache.NewMemoryStore(),
		logger:  &fakeLogger{},
		metrics: metrics.New(),
	}
	h.coord = New(&Config{
		Wallet:  h.wallet,
		Ledger:  h.ledger,
		Cache:   h.cache,
		Logger:  h.logger,
		Metrics: h.metrics,
	})
	return h
}

func (h *harness) connected(t *testing.T) *harness {
	t.Helper()
	_, err := h.coord.Connect(testCtx(t))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return h
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func rawTransfer(from, to string, wei int64, message, keyword string, ts int64) ledger.RawTransfer {
	return ledger.RawTransfer{
		Sender:    common.HexToAddress(from),
		Receiver:  common.HexToAddress(to),
		Amount:    big.NewInt(wei),
		Message:   message,
		Timestamp: big.NewInt(ts),
		Keyword:   keyword,
	}
}
