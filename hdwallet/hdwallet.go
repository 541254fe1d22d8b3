// Package hdwallet derives BIP-44 Ethereum accounts from a BIP-39 recovery
// phrase, the way the chapool wallet service's seed manager and address
// service do together, but held in-process instead of behind a database
// and a keystore.
package hdwallet

import (
	"crypto/sha512"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"

	"github.com/chapool/usdc-wallet/account"
	"github.com/chapool/usdc-wallet/addrutil"
	"github.com/chapool/usdc-wallet/cryptoadapt"
	"github.com/chapool/usdc-wallet/erc20"
	"github.com/chapool/usdc-wallet/rpc"
	"github.com/chapool/usdc-wallet/walleterr"
)

func ensureAddress(s string) (string, error) {
	return addrutil.EnsureValidAddress(s)
}

// DefaultDerivationPath is the BIP-44 path prefix used when none is given;
// selectAccount/accountIndex append "/N" to it.
const DefaultDerivationPath = "m/44'/60'/0'/0"

const (
	bip39PBKDF2Iterations = 2048
	bip39SeedLength       = 64
)

// wordListMu serializes access to go-bip39's process-global word list:
// bip39.SetWordList has no per-call variant, so a custom wordList must be
// installed, used, and restored under a single lock.
var wordListMu sync.Mutex

// withWordList runs fn with bip39's global word list temporarily swapped
// to wordList, restoring whatever list was active beforehand. A nil/empty
// wordList runs fn against whatever list is already installed (English,
// unless a caller elsewhere changed it).
func withWordList(wordList []string, fn func() error) error {
	if len(wordList) == 0 {
		return fn()
	}

	wordListMu.Lock()
	defer wordListMu.Unlock()

	previous := bip39.GetWordList()
	bip39.SetWordList(wordList)
	defer bip39.SetWordList(previous)

	return fn()
}

// Wallet owns one master key derived from a recovery phrase (or supplied
// directly), and memoizes one Account per account index plus one ERC-20
// client per contract address.
type Wallet struct {
	mu sync.Mutex

	masterKey        *bip32.Key
	phrase           string // empty if constructed without one
	derivationPath   string
	rpcURL           string
	rpcClient        *rpc.Client
	accounts         map[uint32]*account.Account
	erc20Clients     map[string]*erc20.Client
}

// Generate samples wordCount*4/3 bytes of entropy (wordCount must be one of
// 12, 15, 18, 21, 24), converts it to a BIP-39 mnemonic using wordList (the
// installed default, usually English, when wordList is nil), and derives
// the master key from it.
func Generate(wordCount int, derivationPath string, wordList []string, rpcURL string) (*Wallet, error) {
	entropyBits, err := entropyBitsForWordCount(wordCount)
	if err != nil {
		return nil, err
	}

	var phrase string
	err = withWordList(wordList, func() error {
		entropy, err := bip39.NewEntropy(entropyBits)
		if err != nil {
			return errors.Wrap(err, "hdwallet: generate entropy")
		}

		phrase, err = bip39.NewMnemonic(entropy)
		if err != nil {
			return errors.Wrap(err, "hdwallet: build mnemonic")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return FromPhrase(phrase, derivationPath, wordList, rpcURL)
}

// FromPhrase parses an existing BIP-39 recovery phrase against wordList
// (the installed default, usually English, when wordList is nil) and
// derives the master key from it.
func FromPhrase(phrase string, derivationPath string, wordList []string, rpcURL string) (*Wallet, error) {
	var valid bool
	if err := withWordList(wordList, func() error {
		valid = bip39.IsMnemonicValid(phrase)
		return nil
	}); err != nil {
		return nil, err
	}
	if !valid {
		return nil, &walleterr.InvalidPhraseError{Detail: "mnemonic failed checksum validation"}
	}

	seed := pbkdf2.Key([]byte(phrase), []byte("mnemonic"), bip39PBKDF2Iterations, bip39SeedLength, sha512.New)

	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "hdwallet: derive master key")
	}

	if derivationPath == "" {
		derivationPath = DefaultDerivationPath
	}

	w := &Wallet{
		masterKey:      masterKey,
		phrase:         phrase,
		derivationPath: derivationPath,
		rpcURL:         rpcURL,
		accounts:       make(map[uint32]*account.Account),
		erc20Clients:   make(map[string]*erc20.Client),
	}
	if rpcURL != "" {
		w.rpcClient = rpc.NewClient(rpcURL)
	}
	return w, nil
}

// Phrase returns the stored recovery phrase, or "" if the wallet was not
// constructed from one.
func (w *Wallet) Phrase() string {
	return w.phrase
}

// DerivationPath returns the base BIP-44 path this wallet derives accounts
// under (without the trailing account index).
func (w *Wallet) DerivationPath() string {
	return w.derivationPath
}

// RPC returns the wallet's RPC client, or nil if none was configured.
func (w *Wallet) RPC() *rpc.Client {
	return w.rpcClient
}

// Account derives (or returns the memoized) Account at accountIndex under
// the wallet's derivation path.
func (w *Wallet) Account(accountIndex uint32) (*account.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if acc, ok := w.accounts[accountIndex]; ok {
		return acc, nil
	}

	path := fmt.Sprintf("%s/%d", w.derivationPath, accountIndex)
	acc, err := deriveAccount(w.masterKey, path)
	if err != nil {
		return nil, err
	}

	w.accounts[accountIndex] = acc
	return acc, nil
}

// SelectAccount returns a new Wallet sharing this wallet's master key,
// stored phrase, and RPC URL (a fresh RPC client is constructed), and
// derives and memoizes the Account at accountIndex in it. The returned
// Wallet does not record accountIndex as a selected index: Account still
// takes the index as its argument. The receiver is left unchanged.
func (w *Wallet) SelectAccount(accountIndex uint32) (*Wallet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := &Wallet{
		masterKey:      w.masterKey,
		phrase:         w.phrase,
		derivationPath: w.derivationPath,
		rpcURL:         w.rpcURL,
		accounts:       make(map[uint32]*account.Account),
		erc20Clients:   make(map[string]*erc20.Client),
	}
	if w.rpcURL != "" {
		next.rpcClient = rpc.NewClient(w.rpcURL)
	}

	if _, err := next.Account(accountIndex); err != nil {
		return nil, err
	}
	return next, nil
}

// ERC20 returns the memoized ERC-20 client for contractAddress, creating
// one if this is the first request for that (checksum-normalized)
// contract.
func (w *Wallet) ERC20(contractAddress string) (*erc20.Client, error) {
	checksum, err := ensureAddress(contractAddress)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if client, ok := w.erc20Clients[checksum]; ok {
		return client, nil
	}
	if w.rpcClient == nil {
		return nil, errors.New("hdwallet: no RPC client configured")
	}

	client := erc20.NewClient(w.rpcClient, checksum)
	w.erc20Clients[checksum] = client
	return client, nil
}

func deriveAccount(masterKey *bip32.Key, path string) (*account.Account, error) {
	indices, err := parseBIP44Path(path)
	if err != nil {
		return nil, err
	}

	key := masterKey
	for _, index := range indices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "hdwallet: derive child key at index %d", index)
		}
	}

	privKeyBytes := key.Key
	defer zero(privKeyBytes)

	var privKey [32]byte
	copy(privKey[:], privKeyBytes)

	ecdsaKey, err := cryptoadapt.PrivateKeyFromBytes(privKeyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "hdwallet: parse derived key")
	}
	pubKey := cryptoadapt.UncompressedPubkeyBytes(ecdsaKey)

	acc, err := account.New(privKey, pubKey)
	if err != nil {
		return nil, errors.Wrap(err, "hdwallet: build account")
	}

	log.Debug().Str("path", path).Str("address", acc.Address()).Msg("derived account")
	return acc, nil
}

// parseBIP44Path parses "m/44'/60'/0'/0/0" into hardened/non-hardened
// child-key indices.
func parseBIP44Path(path string) ([]uint32, error) {
	if len(path) == 0 || path[0] != 'm' {
		return nil, &walleterr.InvalidParameterError{Field: "path", Detail: fmt.Sprintf("invalid BIP-44 path %q", path)}
	}

	trimmed := strings.TrimPrefix(path, "m")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, "/")
	indices := make([]uint32, 0, len(parts))
	for _, part := range parts {
		hardened := strings.HasSuffix(part, "'")
		if hardened {
			part = part[:len(part)-1]
		}

		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, &walleterr.InvalidParameterError{Field: "path", Detail: fmt.Sprintf("invalid path segment %q", part)}
		}

		index := uint32(n)
		if hardened {
			index += bip32.FirstHardenedChild
		}
		indices = append(indices, index)
	}
	return indices, nil
}

func entropyBitsForWordCount(wordCount int) (int, error) {
	switch wordCount {
	case 12:
		return 128, nil
	case 15:
		return 160, nil
	case 18:
		return 192, nil
	case 21:
		return 224, nil
	case 24:
		return 256, nil
	default:
		return 0, &walleterr.InvalidParameterError{Field: "wordCount", Detail: "must be one of 12, 15, 18, 21, 24"}
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
