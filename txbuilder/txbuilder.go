// Package txbuilder constructs, signs, and submits legacy EIP-155
// Ethereum transactions: a mutable builder with validated setters, gas/
// price/nonce defaulting, RLP signing, and receipt-polling submission.
package txbuilder

import (
	"context"
	"math/big"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/chapool/usdc-wallet/account"
	"github.com/chapool/usdc-wallet/addrutil"
	"github.com/chapool/usdc-wallet/cryptoadapt"
	"github.com/chapool/usdc-wallet/hexutil"
	"github.com/chapool/usdc-wallet/rlp"
	"github.com/chapool/usdc-wallet/rpc"
	"github.com/chapool/usdc-wallet/walleterr"
)

// maxValueWei is the upper bound on transaction value: 10^6 ether.
var maxValueWei = new(big.Int).Mul(big.NewInt(1_000_000), weiPerEther())

func weiPerEther() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

// maxGasPriceWei is the upper bound on gas price: 1000 Gwei.
var maxGasPriceWei = big.NewInt(1_000_000_000_000)

const (
	minGasLimit = 21000
	maxGasLimit = 20_000_000
)

// DeferredValue resolves a `to` or `data` field asynchronously at sign
// time, the way the transaction builder's lazy value resolution is
// modeled in the specification.
type DeferredValue func(ctx context.Context) (string, error)

// Builder accumulates transaction fields under validated setters, then
// signs and submits the resulting legacy transaction.
type Builder struct {
	account *account.Account
	rpc     *rpc.Client

	to         *string
	toDeferred DeferredValue

	weiValue *big.Int

	gasLimit    *big.Int
	gasPriceWei *big.Int

	data         []byte
	dataDeferred DeferredValue

	nonce *big.Int
}

// New builds a Builder signing from account and submitting through
// rpcClient.
func New(acc *account.Account, rpcClient *rpc.Client) *Builder {
	return &Builder{account: acc, rpc: rpcClient}
}

// SetTo validates addr and stores its checksum form. An empty string
// clears the field.
func (b *Builder) SetTo(addr string) error {
	if addr == "" {
		b.to = nil
		return nil
	}
	checksum, err := addrutil.EnsureValidAddress(addr)
	if err != nil {
		return &walleterr.InvalidParameterError{Field: "to", Detail: err.Error()}
	}
	b.to = &checksum
	return nil
}

// SetToDeferred registers a deferred resolver for `to`, consulted during
// Sign if no immediate value has been set.
func (b *Builder) SetToDeferred(fn DeferredValue) {
	b.toDeferred = fn
}

// To returns the currently stored `to` address, or "" if unset.
func (b *Builder) To() string {
	if b.to == nil {
		return ""
	}
	return *b.to
}

// SetWeiValue validates weiDecimal as a non-negative integer string below
// 10^6 ether and stores it.
func (b *Builder) SetWeiValue(weiDecimal string) error {
	n, ok := new(big.Int).SetString(weiDecimal, 10)
	if !ok || n.Sign() < 0 {
		return &walleterr.InvalidParameterError{Field: "weiValue", Detail: "must be a non-negative integer string"}
	}
	if n.Cmp(maxValueWei) >= 0 {
		return &walleterr.InvalidParameterError{Field: "weiValue", Detail: "must be less than 10^6 ether"}
	}
	b.weiValue = n
	return nil
}

// SetEthValue validates ethDecimal as a positive decimal string below 10^6
// ether and stores its wei equivalent.
func (b *Builder) SetEthValue(ethDecimal string) error {
	wei, err := hexutil.BigIntFromDecimalString(ethDecimal, 18)
	if err != nil {
		return &walleterr.InvalidParameterError{Field: "ethValue", Detail: err.Error()}
	}
	if wei.Sign() <= 0 {
		return &walleterr.InvalidParameterError{Field: "ethValue", Detail: "must be positive"}
	}
	if wei.Cmp(maxValueWei) >= 0 {
		return &walleterr.InvalidParameterError{Field: "ethValue", Detail: "must be less than 10^6 ether"}
	}
	b.weiValue = wei
	return nil
}

// WeiValue returns the stored value in wei (zero if unset).
func (b *Builder) WeiValue() *big.Int {
	if b.weiValue == nil {
		return big.NewInt(0)
	}
	return b.weiValue
}

// EthValue returns the stored value converted to a decimal ether string.
func (b *Builder) EthValue() (string, error) {
	return hexutil.DecimalStringFromBigInt(b.WeiValue(), 18)
}

// SetGasLimit validates n is within [21000, 20000000] and stores it.
func (b *Builder) SetGasLimit(n uint64) error {
	if n < minGasLimit || n > maxGasLimit {
		return &walleterr.InvalidParameterError{Field: "gasLimit", Detail: "must be between 21000 and 20000000"}
	}
	b.gasLimit = new(big.Int).SetUint64(n)
	return nil
}

// GasLimit returns the stored gas limit (set by SetGasLimit, or by Sign
// from the buffered node estimate), or nil if unset.
func (b *Builder) GasLimit() *big.Int {
	return b.gasLimit
}

// SetGasPriceWei validates n is within [0, 10^12] wei and stores it.
func (b *Builder) SetGasPriceWei(n *big.Int) error {
	if n.Sign() < 0 || n.Cmp(maxGasPriceWei) > 0 {
		return &walleterr.InvalidParameterError{Field: "gasPriceWei", Detail: "must be between 0 and 10^12 wei"}
	}
	b.gasPriceWei = new(big.Int).Set(n)
	return nil
}

// SetGasPriceGwei validates gwei is within [0, 1000] and stores
// floor(gwei * 10^9) wei.
func (b *Builder) SetGasPriceGwei(gwei float64) error {
	if gwei < 0 || gwei > 1000 {
		return &walleterr.InvalidParameterError{Field: "gasPriceGwei", Detail: "must be between 0 and 1000"}
	}
	wei := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(1e9))
	n, _ := wei.Int(nil)
	return b.SetGasPriceWei(n)
}

// GasPriceWei returns the stored gas price in wei, or nil if unset.
func (b *Builder) GasPriceWei() *big.Int {
	return b.gasPriceWei
}

// GasPriceGwei returns the stored gas price as wei/10^9.
func (b *Builder) GasPriceGwei() float64 {
	if b.gasPriceWei == nil {
		return 0
	}
	gwei := new(big.Float).Quo(new(big.Float).SetInt(b.gasPriceWei), big.NewFloat(1e9))
	f, _ := gwei.Float64()
	return f
}

// SetData normalizes hexData to a 0x-prefixed hex string and stores the
// decoded bytes.
func (b *Builder) SetData(hexData string) error {
	b.data = nil
	if hexData == "" {
		return nil
	}
	decoded, err := hexutil.BytesFromHex(hexData)
	if err != nil {
		return &walleterr.InvalidParameterError{Field: "data", Detail: err.Error()}
	}
	b.data = decoded
	return nil
}

// SetDataDeferred registers a deferred resolver for `data`, consulted
// during Sign if no immediate value has been set.
func (b *Builder) SetDataDeferred(fn DeferredValue) {
	b.dataDeferred = fn
}

// Data returns the stored calldata.
func (b *Builder) Data() []byte {
	return b.data
}

// SetNonce stores a non-negative transaction nonce.
func (b *Builder) SetNonce(n uint64) {
	b.nonce = new(big.Int).SetUint64(n)
}

// Nonce returns the stored nonce, or nil if unset.
func (b *Builder) Nonce() *big.Int {
	return b.nonce
}

var knownOrImportedPattern = regexp.MustCompile(`(?i)known|imported`)

// Submission is the handle returned by Submit: the RPC client the
// transaction was sent through, and the hash the signer computed
// locally.
type Submission struct {
	RPC    *rpc.Client
	TxHash string
}

// Sign resolves deferred fields, fills in missing nonce/gasPrice/chainId/
// gasLimit, RLP-encodes the legacy transaction, and signs it with
// EIP-155 replay protection. It returns the signed transaction bytes.
func (b *Builder) Sign(ctx context.Context) ([]byte, error) {
	if err := b.resolveDeferred(ctx); err != nil {
		return nil, err
	}

	nonce := b.nonce
	if nonce == nil {
		n, err := b.rpc.GetTransactionCount(ctx, b.account.Address(), "latest")
		if err != nil {
			return nil, err
		}
		nonce = n
	}

	gasPrice := b.gasPriceWei
	if gasPrice == nil {
		p, err := b.rpc.GetGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		gasPrice = p
	}

	chainIDBig, err := b.rpc.GetChainID(ctx)
	if err != nil {
		return nil, err
	}

	gasLimit := b.gasLimit
	if gasLimit == nil {
		estimate, err := b.rpc.EstimateGas(ctx, b.account.Address(), b.To(), b.WeiValue(), b.data)
		if err != nil {
			return nil, err
		}
		gasLimit = applyGasBuffer(estimate)
		b.gasLimit = gasLimit
	}

	toBytes := []byte{}
	if b.to != nil {
		toBytes, err = hexutil.BytesFromHex(*b.to)
		if err != nil {
			return nil, err
		}
	}

	fields := rlp.List(
		rlp.Uint(nonce),
		rlp.Uint(gasPrice),
		rlp.Uint(gasLimit),
		rlp.String(toBytes),
		rlp.Uint(b.WeiValue()),
		rlp.String(b.data),
		rlp.Uint(chainIDBig),
		rlp.String(nil),
		rlp.String(nil),
	)

	h := cryptoadapt.Keccak256(rlp.Encode(fields))
	var digest [32]byte
	copy(digest[:], h)

	sig, err := b.account.Sign(digest)
	if err != nil {
		return nil, err
	}

	v := new(big.Int).SetInt64(int64(sig.V) - 27)
	v.Add(v, new(big.Int).Mul(chainIDBig, big.NewInt(2)))
	v.Add(v, big.NewInt(35))

	signedFields := rlp.List(
		rlp.Uint(nonce),
		rlp.Uint(gasPrice),
		rlp.Uint(gasLimit),
		rlp.String(toBytes),
		rlp.Uint(b.WeiValue()),
		rlp.String(b.data),
		rlp.Uint(v),
		rlp.Uint(new(big.Int).SetBytes(sig.R[:])),
		rlp.Uint(new(big.Int).SetBytes(sig.S[:])),
	)

	return rlp.Encode(signedFields), nil
}

func applyGasBuffer(estimate *big.Int) *big.Int {
	if estimate.Cmp(big.NewInt(minGasLimit)) == 0 {
		return estimate
	}
	buffered := new(big.Int).Mul(estimate, big.NewInt(3))
	return buffered.Div(buffered, big.NewInt(2))
}

func (b *Builder) resolveDeferred(ctx context.Context) error {
	if b.toDeferred != nil && b.to == nil {
		resolved, err := b.toDeferred(ctx)
		if err != nil {
			return errors.Wrap(err, "txbuilder: resolve deferred to")
		}
		if err := b.SetTo(resolved); err != nil {
			return err
		}
	}
	if b.dataDeferred != nil && b.data == nil {
		resolved, err := b.dataDeferred(ctx)
		if err != nil {
			return errors.Wrap(err, "txbuilder: resolve deferred data")
		}
		if err := b.SetData(resolved); err != nil {
			return err
		}
	}
	return nil
}

// Submit computes the locally-derived transaction hash and broadcasts
// signedTx. An RPC error whose message matches /known|imported/i is
// treated as a successful duplicate send rather than a failure.
func (b *Builder) Submit(ctx context.Context, signedTx []byte) (*Submission, error) {
	txHash := hexutil.HexFromBytes(cryptoadapt.Keccak256(signedTx), true)
	requestID := uuid.New().String()
	logger := log.With().Str("requestId", requestID).Str("txHash", txHash).Logger()

	_, err := b.rpc.SendRawTransaction(ctx, signedTx)
	if err != nil {
		var rpcErr *walleterr.RpcError
		if errors.As(err, &rpcErr) && knownOrImportedPattern.MatchString(rpcErr.Message) {
			logger.Debug().Msg("duplicate submit treated as success")
		} else {
			logger.Debug().Err(err).Msg("submit failed")
			return nil, err
		}
	} else {
		logger.Info().Msg("transaction submitted")
	}

	return &Submission{RPC: b.rpc, TxHash: txHash}, nil
}

// SubmitAndWait submits signedTx and then polls for its receipt with the
// given polling parameters.
func (b *Builder) SubmitAndWait(ctx context.Context, signedTx []byte, ignoreErrors bool, intervalSec int, timeoutSec int) (*rpc.Receipt, error) {
	submission, err := b.Submit(ctx, signedTx)
	if err != nil {
		return nil, err
	}
	return submission.RPC.WaitForReceipt(ctx, submission.TxHash, ignoreErrors, intervalSec, timeoutSec)
}
