package coordinator

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransferRequest is the form a transfer is built from. Amount is a decimal
// ether string until submission.
type TransferRequest struct {
	AddressTo string `json:"addressTo"`
	Amount    string `json:"amount"`
	Keyword   string `json:"keyword"`
	Message   string `json:"message"`
}

// TransferRecord is one confirmed ledger entry. Records are never modified
// after construction.
type TransferRecord struct {
	AddressFrom string    `json:"addressFrom"`
	AddressTo   string    `json:"addressTo"`
	AmountWei   *big.Int  `json:"amountWei"`
	Amount      string    `json:"amount"`
	Message     string    `json:"message"`
	Keyword     string    `json:"keyword"`
	Timestamp   time.Time `json:"timestamp"`
}

func (r TransferRecord) clone() TransferRecord {
	if r.AmountWei != nil {
		r.AmountWei = new(big.Int).Set(r.AmountWei)
	}
	return r
}

// SubmissionState is the phase of the in-flight submission.
type SubmissionState int32

// Submission states.
const (
	StateIdle SubmissionState = iota
	StateAwaitingWalletSignature
	StateAwaitingChainConfirmation
)

// String returns the snake_case name of the state.
func (s SubmissionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingWalletSignature:
		return "awaiting_wallet_signature"
	case StateAwaitingChainConfirmation:
		return "awaiting_chain_confirmation"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SubmissionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SubmitResult describes a completed submission.
type SubmitResult struct {
	TransferHash common.Hash `json:"transferHash"`
	RecordHash   common.Hash `json:"recordHash"`
	Count        uint64      `json:"count"`
}

// Snapshot is a point-in-time view of the coordinator. Each field is read
// atomically; the fields are not read under one lock.
type Snapshot struct {
	Account        string           `json:"account"`
	Form           TransferRequest  `json:"form"`
	InFlight       bool             `json:"inFlight"`
	State          SubmissionState  `json:"state"`
	Transactions   []TransferRecord `json:"transactions"`
	CachedCount    uint64           `json:"cachedCount"`
	HasCachedCount bool             `json:"hasCachedCount"`
}
