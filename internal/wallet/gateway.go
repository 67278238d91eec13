// Package wallet provides the wallet gateway: the capability surface the
// coordinator uses to discover accounts and move value, with a provider
// adapter for an external JSON-RPC wallet and a local keystore adapter.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransferGas is the fixed gas allowance of a plain value transfer (0x5208).
const TransferGas uint64 = 21000

// Gateway is the capability surface of a wallet.
type Gateway interface {
	// IsAvailable reports whether a wallet can be reached. It does not prompt.
	IsAvailable(ctx context.Context) bool

	// Accounts returns the already-authorized accounts without prompting.
	Accounts(ctx context.Context) ([]string, error)

	// RequestAccounts asks the user to authorize accounts. It returns at
	// least one account or fails with ErrUserDenied.
	RequestAccounts(ctx context.Context) ([]string, error)

	// SendNativeTransfer sends valueWei from one account to another with the
	// fixed TransferGas allowance and returns the transaction hash.
	SendNativeTransfer(ctx context.Context, from, to string, valueWei *big.Int) (common.Hash, error)
}

// TxRequest describes a transaction for the wallet to sign and send.
// Gas zero lets the wallet estimate.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Gas   uint64
	Data  []byte
}

// Transactor sends arbitrary transactions through the wallet. The ledger
// client uses it for contract writes.
type Transactor interface {
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
}

// Wallet is a gateway that can also sign contract writes.
type Wallet interface {
	Gateway
	Transactor
}

func transferRequest(from, to string, valueWei *big.Int) TxRequest {
	return TxRequest{
		From:  common.HexToAddress(from),
		To:    common.HexToAddress(to),
		Value: valueWei,
		Gas:   TransferGas,
	}
}
