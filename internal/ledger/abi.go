// Package ledger is the client of the on-chain transfer ledger contract. It
// reads the recorded transfers and writes new records through the wallet.
package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract method and event names.
const (
	methodRecord  = "addToBlockchain"
	methodAll     = "getAllTransactions"
	methodCount   = "getTransactionCount"
	eventTransfer = "Transfer"
)

// ContractABI is the interface of the deployed Transactions contract.
const ContractABI = `[
  {
    "type": "function",
    "name": "addToBlockchain",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "receiver", "type": "address"},
      {"name": "amount", "type": "uint256"},
      {"name": "message", "type": "string"},
      {"name": "keyword", "type": "string"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getAllTransactions",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "internalType": "struct Transactions.TransferStruct[]",
        "components": [
          {"name": "sender", "type": "address"},
          {"name": "receiver", "type": "address"},
          {"name": "amount", "type": "uint256"},
          {"name": "message", "type": "string"},
          {"name": "timestamp", "type": "uint256"},
          {"name": "keyword", "type": "string"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getTransactionCount",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "event",
    "name": "Transfer",
    "anonymous": false,
    "inputs": [
      {"name": "from", "type": "address", "indexed": false},
      {"name": "receiver", "type": "address", "indexed": false},
      {"name": "amount", "type": "uint256", "indexed": false},
      {"name": "message", "type": "string", "indexed": false},
      {"name": "timestamp", "type": "uint256", "indexed": false},
      {"name": "keyword", "type": "string", "indexed": false}
    ]
  }
]`

var contractABI = mustParseABI(ContractABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("ledger: invalid contract ABI: " + err.Error())
	}
	return parsed
}
