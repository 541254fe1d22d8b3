// Package usdc extends the ERC-20 client with USD Coin's EIP-2612 permit
// and EIP-3009 transfer-authorization signing, resolving the USDC
// contract address from the node's reported chain id.
package usdc

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/chapool/usdc-wallet/account"
	"github.com/chapool/usdc-wallet/addrutil"
	"github.com/chapool/usdc-wallet/eip712"
	"github.com/chapool/usdc-wallet/erc20"
	"github.com/chapool/usdc-wallet/hexutil"
	"github.com/chapool/usdc-wallet/rpc"
	"github.com/chapool/usdc-wallet/txbuilder"
	"github.com/chapool/usdc-wallet/walleterr"
)

// knownContractAddresses maps chain id to the canonical USDC contract
// address on that chain.
var knownContractAddresses = map[uint64]string{
	1:     "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	3:     "0x07865c6E87B9F70255377e024ace6630C1Eaa37F",
	4:     "0x705de9dc3ad85e072ab34cf6850e6b2bd317ccc1",
	5:     "0x2f3a40a3db8a7e3d09b0adfefbce4f6f81927557",
	137:   "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
	80001: "0xe6b8a5CF854791412c1f6EFC7CAf629f5Df1c747",
}

// maxUint256 is the default permit deadline / transfer-authorization
// validBefore when the caller does not supply one.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const permitTypeSig = "Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"
const transferAuthTypeSig = "TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"

// Client wraps an ERC-20 client bound to the USDC contract on whatever
// chain the RPC client reports, adding permit and transfer-authorization
// support.
type Client struct {
	erc20    *erc20.Client
	rpc      *rpc.Client
	override string

	mu               sync.Mutex
	cachedChainID    *uint64
	cachedAddress    string
	domainSeparator  *[32]byte
}

// NewClient builds a USDC client. overrideAddress, if non-empty, takes
// precedence over the chain-id-derived contract address lookup.
func NewClient(rpcClient *rpc.Client, overrideAddress string) *Client {
	return &Client{rpc: rpcClient, override: overrideAddress}
}

// ContractAddress resolves the USDC contract address for the node's
// current chain id, consulting the override first. The result is cached
// and invalidated when the chain id changes.
func (c *Client) ContractAddress(ctx context.Context) (string, error) {
	if c.override != "" {
		return addrutil.EnsureValidAddress(c.override)
	}

	chainIDBig, err := c.rpc.GetChainID(ctx)
	if err != nil {
		return "", err
	}
	// knownContractAddresses is keyed by uint64; every chain USDC is
	// actually deployed on fits easily, so this narrowing only ever
	// rejects a chain id that couldn't be in the map anyway.
	if !chainIDBig.IsUint64() {
		return "", &walleterr.UnsupportedChainError{ChainID: 0}
	}
	chainID := chainIDBig.Uint64()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedChainID != nil && *c.cachedChainID == chainID && c.cachedAddress != "" {
		return c.cachedAddress, nil
	}

	address, ok := knownContractAddresses[chainID]
	if !ok {
		return "", &walleterr.UnsupportedChainError{ChainID: chainID}
	}

	checksum, err := addrutil.EnsureValidAddress(address)
	if err != nil {
		return "", err
	}

	c.cachedChainID = &chainID
	c.cachedAddress = checksum
	c.domainSeparator = nil
	return checksum, nil
}

func (c *Client) erc20Client(ctx context.Context) (*erc20.Client, error) {
	address, err := c.ContractAddress(ctx)
	if err != nil {
		return nil, err
	}
	if c.erc20 == nil || c.erc20.ContractAddress() != address {
		c.erc20 = erc20.NewClient(c.rpc, address)
	}
	return c.erc20, nil
}

// BalanceOf delegates to the underlying ERC-20 client.
func (c *Client) BalanceOf(ctx context.Context, owner string) (string, error) {
	client, err := c.erc20Client(ctx)
	if err != nil {
		return "", err
	}
	return client.BalanceOf(ctx, owner)
}

// Allowance delegates to the underlying ERC-20 client.
func (c *Client) Allowance(ctx context.Context, owner, spender string) (string, error) {
	client, err := c.erc20Client(ctx)
	if err != nil {
		return "", err
	}
	return client.Allowance(ctx, owner, spender)
}

// DomainSeparator calls DOMAIN_SEPARATOR() and caches the 32-byte result
// for the client's lifetime (until the chain id changes).
func (c *Client) DomainSeparator(ctx context.Context) ([32]byte, error) {
	if _, err := c.ContractAddress(ctx); err != nil {
		return [32]byte{}, err
	}

	c.mu.Lock()
	if c.domainSeparator != nil {
		d := *c.domainSeparator
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	address, err := c.ContractAddress(ctx)
	if err != nil {
		return [32]byte{}, err
	}

	values, err := c.rpc.EthCall(ctx, address, "DOMAIN_SEPARATOR()", nil, nil, []string{"bytes32"}, "latest")
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "usdc: fetch DOMAIN_SEPARATOR")
	}
	raw, ok := values[0].([]byte)
	if !ok || len(raw) != 32 {
		return [32]byte{}, errors.New("usdc: DOMAIN_SEPARATOR did not return 32 bytes")
	}

	var out [32]byte
	copy(out[:], raw)

	c.mu.Lock()
	c.domainSeparator = &out
	c.mu.Unlock()
	return out, nil
}

// GetNextPermitNonce calls nonces(address) for owner. The returned value
// does not account for permits that have been signed but not yet mined.
func (c *Client) GetNextPermitNonce(ctx context.Context, owner string) (*big.Int, error) {
	owner, err := addrutil.EnsureValidAddress(owner)
	if err != nil {
		return nil, err
	}
	address, err := c.ContractAddress(ctx)
	if err != nil {
		return nil, err
	}

	values, err := c.rpc.EthCall(ctx, address, "nonces(address)", []string{"address"}, []any{owner}, []string{"uint256"}, "latest")
	if err != nil {
		return nil, errors.Wrap(err, "usdc: fetch nonces")
	}
	nonce, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.New("usdc: unexpected nonces() result type")
	}
	return nonce, nil
}

// SignedPermit is a signed EIP-2612 permit ready for submission.
type SignedPermit struct {
	Owner     string
	Spender   string
	Allowance *big.Int
	Nonce     *big.Int
	Deadline  *big.Int
	V         byte
	R         [32]byte
	S         [32]byte
}

// SignPermit signs an EIP-2612 permit granting spender an allowance of
// amount (a decimal string scaled by the token's decimals). nonce
// defaults to GetNextPermitNonce; deadline defaults to MAX_UINT256.
func (c *Client) SignPermit(ctx context.Context, signer *account.Account, spender string, amount string, nonce *big.Int, deadline *big.Int) (*SignedPermit, error) {
	spender, err := addrutil.EnsureValidAddress(spender)
	if err != nil {
		return nil, err
	}

	client, err := c.erc20Client(ctx)
	if err != nil {
		return nil, err
	}
	decimals, err := client.Decimals(ctx)
	if err != nil {
		return nil, err
	}
	scaledAmount, err := hexutil.BigIntFromDecimalString(amount, decimals)
	if err != nil {
		return nil, err
	}

	if nonce == nil {
		nonce, err = c.GetNextPermitNonce(ctx, signer.Address())
		if err != nil {
			return nil, err
		}
	}
	if deadline == nil {
		deadline = maxUint256
	}

	domainSeparator, err := c.DomainSeparator(ctx)
	if err != nil {
		return nil, err
	}

	digest, err := eip712.Hash(
		domainSeparator,
		permitTypeSig,
		[]string{"address", "address", "uint256", "uint256", "uint256"},
		[]any{signer.Address(), spender, scaledAmount, nonce, deadline},
		true,
	)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(digest)
	if err != nil {
		return nil, err
	}

	return &SignedPermit{
		Owner:     signer.Address(),
		Spender:   spender,
		Allowance: scaledAmount,
		Nonce:     nonce,
		Deadline:  deadline,
		V:         sig.V,
		R:         sig.R,
		S:         sig.S,
	}, nil
}

// SubmitPermit builds and submits a transaction invoking
// permit(address,address,uint256,uint256,uint8,bytes32,bytes32) on the
// USDC contract.
func (c *Client) SubmitPermit(ctx context.Context, signer *account.Account, permit *SignedPermit) (*txbuilder.Submission, error) {
	data, err := callData(
		"permit(address,address,uint256,uint256,uint8,bytes32,bytes32)",
		[]string{"address", "address", "uint256", "uint256", "uint8", "bytes32", "bytes32"},
		[]any{permit.Owner, permit.Spender, permit.Allowance, permit.Deadline, big.NewInt(int64(permit.V)), permit.R[:], permit.S[:]},
	)
	if err != nil {
		return nil, err
	}

	builder := txbuilder.New(signer, c.rpc)
	builder.SetToDeferred(c.ContractAddress)
	if err := builder.SetData(hexutil.HexFromBytes(data, true)); err != nil {
		return nil, err
	}

	signed, err := builder.Sign(ctx)
	if err != nil {
		return nil, err
	}
	return builder.Submit(ctx, signed)
}

// SignedTransferAuthorization is a signed EIP-3009
// transferWithAuthorization ready for submission.
type SignedTransferAuthorization struct {
	From         string
	To           string
	Value        *big.Int
	ValidAfter   *big.Int
	ValidBefore  *big.Int
	Nonce        [32]byte
	V            byte
	R            [32]byte
	S            [32]byte
}

// SignTransferAuthorization signs an EIP-3009 transfer-with-authorization.
// validAfter defaults to 0; validBefore defaults to MAX_UINT256; nonce
// defaults to 32 uniformly random bytes.
func (c *Client) SignTransferAuthorization(ctx context.Context, signer *account.Account, to string, amount string, validAfter *big.Int, validBefore *big.Int, nonce *[32]byte) (*SignedTransferAuthorization, error) {
	to, err := addrutil.EnsureValidAddress(to)
	if err != nil {
		return nil, err
	}

	client, err := c.erc20Client(ctx)
	if err != nil {
		return nil, err
	}
	decimals, err := client.Decimals(ctx)
	if err != nil {
		return nil, err
	}
	scaledAmount, err := hexutil.BigIntFromDecimalString(amount, decimals)
	if err != nil {
		return nil, err
	}

	if validAfter == nil {
		validAfter = big.NewInt(0)
	}
	if validBefore == nil {
		validBefore = maxUint256
	}

	var resolvedNonce [32]byte
	if nonce != nil {
		resolvedNonce = *nonce
	} else {
		if _, err := rand.Read(resolvedNonce[:]); err != nil {
			return nil, errors.Wrap(err, "usdc: generate transfer authorization nonce")
		}
	}

	domainSeparator, err := c.DomainSeparator(ctx)
	if err != nil {
		return nil, err
	}

	digest, err := eip712.Hash(
		domainSeparator,
		transferAuthTypeSig,
		[]string{"address", "address", "uint256", "uint256", "uint256", "bytes32"},
		[]any{signer.Address(), to, scaledAmount, validAfter, validBefore, resolvedNonce[:]},
		true,
	)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(digest)
	if err != nil {
		return nil, err
	}

	return &SignedTransferAuthorization{
		From:        signer.Address(),
		To:          to,
		Value:       scaledAmount,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       resolvedNonce,
		V:           sig.V,
		R:           sig.R,
		S:           sig.S,
	}, nil
}

// SubmitTransferAuthorization builds and submits a transaction invoking
// transferWithAuthorization(address,address,uint256,uint256,uint256,
// bytes32,uint8,bytes32,bytes32) on the USDC contract.
func (c *Client) SubmitTransferAuthorization(ctx context.Context, signer *account.Account, auth *SignedTransferAuthorization) (*txbuilder.Submission, error) {
	data, err := callData(
		"transferWithAuthorization(address,address,uint256,uint256,uint256,bytes32,uint8,bytes32,bytes32)",
		[]string{"address", "address", "uint256", "uint256", "uint256", "bytes32", "uint8", "bytes32", "bytes32"},
		[]any{auth.From, auth.To, auth.Value, auth.ValidAfter, auth.ValidBefore, auth.Nonce[:], big.NewInt(int64(auth.V)), auth.R[:], auth.S[:]},
	)
	if err != nil {
		return nil, err
	}

	builder := txbuilder.New(signer, c.rpc)
	builder.SetToDeferred(c.ContractAddress)
	if err := builder.SetData(hexutil.HexFromBytes(data, true)); err != nil {
		return nil, err
	}

	signed, err := builder.Sign(ctx)
	if err != nil {
		return nil, err
	}
	return builder.Submit(ctx, signed)
}

func callData(signature string, argTypes []string, args []any) ([]byte, error) {
	return rpc.EncodeCallData(signature, argTypes, args)
}
