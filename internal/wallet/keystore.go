package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"

	"github.com/mrz1836/krypt/internal/chain"
	"github.com/mrz1836/krypt/internal/crypto"
	"github.com/mrz1836/krypt/internal/fileutil"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

const (
	// DerivationPath is the BIP44 path of the keystore account.
	DerivationPath = "m/44'/60'/0'/0/0"

	metadataFile = "keystore.json"
	mnemonicFile = "mnemonic.age"

	// walletFilePermissions is the permission mode for wallet files.
	walletFilePermissions = 0o600
)

// bip44Path is DerivationPath as child indexes.
//
//nolint:gochecknoglobals // Fixed derivation path
var bip44Path = []uint32{
	bip32.FirstHardenedChild + 44,
	bip32.FirstHardenedChild + 60,
	bip32.FirstHardenedChild,
	0,
	0,
}

// Metadata is the plaintext half of a keystore.
type Metadata struct {
	Address   string    `json:"address"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// NodeBackend is the node access the keystore needs to sign and broadcast.
type NodeBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TxSummary is what the user is asked to approve before signing.
type TxSummary struct {
	From     common.Address
	To       common.Address
	ValueWei *big.Int
	Gas      uint64
	GasPrice *big.Int
	HasData  bool
}

// PassphraseFunc asks the user for the keystore passphrase.
type PassphraseFunc func(ctx context.Context) ([]byte, error)

// ConfirmFunc asks the user to approve a transaction.
type ConfirmFunc func(ctx context.Context, tx TxSummary) (bool, error)

// KeystoreOptions configures the user interaction hooks. A nil Confirm
// approves every transaction; a nil Passphrase denies every unlock.
type KeystoreOptions struct {
	Passphrase PassphraseFunc
	Confirm    ConfirmFunc
}

// Keystore is a local HD signer: an age-encrypted mnemonic plus the derived
// account, unlocked once per process.
type Keystore struct {
	dir        string
	node       NodeBackend
	passphrase PassphraseFunc
	confirm    ConfirmFunc

	mu        sync.Mutex
	key       *ecdsa.PrivateKey
	address   common.Address
	nextNonce uint64
}

// Compile-time interface check
var _ Wallet = (*Keystore)(nil)

// NewKeystore creates a keystore adapter over dir.
func NewKeystore(dir string, node NodeBackend, opts *KeystoreOptions) *Keystore {
	k := &Keystore{dir: dir, node: node}
	if opts != nil {
		k.passphrase = opts.Passphrase
		k.confirm = opts.Confirm
	}
	return k
}

// CreateKeystore encrypts mnemonic under passphrase into dir and records the
// derived account. It refuses to overwrite an existing keystore.
func CreateKeystore(dir, mnemonic string, passphrase []byte, now time.Time) (*Metadata, error) {
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err == nil {
		return nil, krypterr.WithDetails(krypterr.ErrWalletExists, map[string]string{"dir": dir})
	}

	seed, err := MnemonicToSeed(mnemonic, "")
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(seed)

	_, address, err := DeriveAccount(seed)
	if err != nil {
		return nil, err
	}

	ciphertext, err := crypto.Encrypt([]byte(NormalizeMnemonic(mnemonic)), string(passphrase))
	if err != nil {
		return nil, fmt.Errorf("encrypting mnemonic: %w", err)
	}

	meta := &Metadata{Address: address.Hex(), Path: DerivationPath, CreatedAt: now.UTC()}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	if err := fileutil.WriteAtomic(filepath.Join(dir, mnemonicFile), ciphertext, walletFilePermissions); err != nil {
		return nil, err
	}
	if err := fileutil.WriteAtomic(filepath.Join(dir, metadataFile), data, walletFilePermissions); err != nil {
		return nil, err
	}
	return meta, nil
}

// ReadMetadata loads the plaintext keystore metadata from dir.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile)) //nolint:gosec // G304: keystore dir comes from config
	if errors.Is(err, os.ErrNotExist) {
		return nil, krypterr.WithDetails(krypterr.ErrWalletNotFound, map[string]string{"dir": dir})
	}
	if err != nil {
		return nil, fmt.Errorf("reading keystore metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing keystore metadata: %w", err)
	}
	return &meta, nil
}

// DeriveAccount derives the signing key at DerivationPath from a BIP39 seed.
func DeriveAccount(seed []byte) (*ecdsa.PrivateKey, common.Address, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("creating master key: %w", err)
	}
	for _, idx := range bip44Path {
		if key, err = key.NewChildKey(idx); err != nil {
			return nil, common.Address{}, fmt.Errorf("deriving child %d: %w", idx, err)
		}
	}

	priv, err := ethcrypto.ToECDSA(key.Key)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("converting key: %w", err)
	}
	return priv, ethcrypto.PubkeyToAddress(priv.PublicKey), nil
}

// IsAvailable reports whether a keystore exists in the configured directory.
func (k *Keystore) IsAvailable(_ context.Context) bool {
	_, err := os.Stat(filepath.Join(k.dir, metadataFile))
	return err == nil
}

// Accounts returns the account only once it has been unlocked in this process.
func (k *Keystore) Accounts(_ context.Context) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.key == nil {
		return []string{}, nil
	}
	return []string{k.address.Hex()}, nil
}

// RequestAccounts unlocks the keystore, prompting for the passphrase.
// A missing, empty, or wrong passphrase is ErrUserDenied.
func (k *Keystore) RequestAccounts(ctx context.Context) ([]string, error) {
	if accounts, _ := k.Accounts(ctx); len(accounts) > 0 {
		return accounts, nil
	}

	meta, err := ReadMetadata(k.dir)
	if err != nil {
		return nil, err
	}
	ciphertext, err := os.ReadFile(filepath.Join(k.dir, mnemonicFile)) //nolint:gosec // G304: keystore dir comes from config
	if err != nil {
		return nil, fmt.Errorf("reading keystore: %w", err)
	}

	if k.passphrase == nil {
		return nil, krypterr.ErrUserDenied
	}
	pass, err := k.passphrase(ctx)
	defer crypto.Zero(pass)
	if err != nil {
		return nil, krypterr.Translate(krypterr.ErrUserDenied, err)
	}
	if len(pass) == 0 {
		return nil, krypterr.ErrUserDenied
	}

	mnemonic, err := crypto.DecryptSecure(ciphertext, string(pass))
	if err != nil {
		return nil, krypterr.Translate(krypterr.ErrUserDenied, err)
	}
	defer mnemonic.Destroy()

	seed, err := MnemonicToSeed(string(mnemonic.Bytes()), "")
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(seed)

	key, address, err := DeriveAccount(seed)
	if err != nil {
		return nil, err
	}
	if address.Hex() != common.HexToAddress(meta.Address).Hex() {
		return nil, krypterr.WithDetails(krypterr.ErrDecryptionFailed, map[string]string{"address": meta.Address})
	}

	k.mu.Lock()
	k.key, k.address = key, address
	k.mu.Unlock()

	return []string{address.Hex()}, nil
}

// Lock forgets the unlocked key.
func (k *Keystore) Lock() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = nil
	k.address = common.Address{}
	k.nextNonce = 0
}

// SendNativeTransfer signs and broadcasts a plain value transfer.
func (k *Keystore) SendNativeTransfer(ctx context.Context, from, to string, valueWei *big.Int) (common.Hash, error) {
	return k.SendTransaction(ctx, transferRequest(from, to, valueWei))
}

// SendTransaction asks for approval, checks the balance, signs req with the
// unlocked key, and broadcasts it through the node.
func (k *Keystore) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	k.mu.Lock()
	key, address := k.key, k.address
	k.mu.Unlock()

	if key == nil || req.From != address {
		return common.Hash{}, krypterr.ErrNotConnected
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	chainID, err := k.node.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	gasPrice, err := k.node.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	gas := req.Gas
	if gas == 0 {
		to := req.To
		if gas, err = k.node.EstimateGas(ctx, ethereum.CallMsg{From: req.From, To: &to, Value: value, Data: req.Data}); err != nil {
			return common.Hash{}, fmt.Errorf("estimating gas: %w", err)
		}
	}

	if k.confirm != nil {
		ok, err := k.confirm(ctx, TxSummary{
			From: req.From, To: req.To, ValueWei: value,
			Gas: gas, GasPrice: gasPrice, HasData: len(req.Data) > 0,
		})
		if err != nil {
			return common.Hash{}, krypterr.Translate(krypterr.ErrUserDenied, err)
		}
		if !ok {
			return common.Hash{}, krypterr.ErrUserDenied
		}
	}

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gas))
	cost.Add(cost, value)
	balance, err := k.node.BalanceAt(ctx, address)
	if err != nil {
		return common.Hash{}, err
	}
	if balance.Cmp(cost) < 0 {
		return common.Hash{}, krypterr.WithDetails(krypterr.ErrInsufficientFunds, map[string]string{
			"balance": chain.FormatEther(balance),
			"needed":  chain.FormatEther(cost),
		})
	}

	nonce, err := k.nonce(ctx, address)
	if err != nil {
		return common.Hash{}, err
	}

	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing transaction: %w", err)
	}

	if err := k.node.SendTransaction(ctx, signed); err != nil {
		if isInsufficientFunds(err) {
			return common.Hash{}, krypterr.Translate(krypterr.ErrInsufficientFunds, err)
		}
		return common.Hash{}, err
	}

	k.mu.Lock()
	k.nextNonce = nonce + 1
	k.mu.Unlock()

	return signed.Hash(), nil
}

// nonce is the node's pending nonce, bumped past transactions this process
// already sent in case the node has not indexed them yet.
func (k *Keystore) nonce(ctx context.Context, address common.Address) (uint64, error) {
	pending, err := k.node.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return max(pending, k.nextNonce), nil
}
