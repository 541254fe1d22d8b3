// Package erc20 implements a thin client over the standard ERC-20
// interface (balanceOf, allowance, transfer, approve, transferFrom),
// resolving decimal places lazily and caching them for the client's
// lifetime.
package erc20

import (
	"context"
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/chapool/usdc-wallet/addrutil"
	"github.com/chapool/usdc-wallet/hexutil"
	"github.com/chapool/usdc-wallet/rpc"
)

// Client is an ERC-20 token client bound to one contract address.
type Client struct {
	rpc             *rpc.Client
	contractAddress string

	mu       sync.Mutex
	decimals *int
}

// NewClient builds a Client for contractAddress (expected already
// checksum-normalized by the caller, e.g. a Wallet's ERC20 cache).
func NewClient(rpcClient *rpc.Client, contractAddress string) *Client {
	return &Client{rpc: rpcClient, contractAddress: contractAddress}
}

// ContractAddress returns the checksum address this client targets.
func (c *Client) ContractAddress() string {
	return c.contractAddress
}

// Decimals returns the token's declared decimal places, fetching and
// caching it on first use.
func (c *Client) Decimals(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.decimals != nil {
		d := *c.decimals
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	values, err := c.rpc.EthCall(ctx, c.contractAddress, "decimals()", nil, nil, []string{"uint8"}, "latest")
	if err != nil {
		return 0, errors.Wrap(err, "erc20: fetch decimals")
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return 0, errors.New("erc20: unexpected decimals() result type")
	}
	decimals := int(n.Int64())

	c.mu.Lock()
	c.decimals = &decimals
	c.mu.Unlock()
	return decimals, nil
}

// BalanceOf returns the token balance of owner, as a decimal string scaled
// by the token's decimal places.
func (c *Client) BalanceOf(ctx context.Context, owner string) (string, error) {
	owner, err := addrutil.EnsureValidAddress(owner)
	if err != nil {
		return "", err
	}

	values, err := c.rpc.EthCall(ctx, c.contractAddress, "balanceOf(address)", []string{"address"}, []any{owner}, []string{"uint256"}, "latest")
	if err != nil {
		return "", errors.Wrap(err, "erc20: balanceOf")
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return "", errors.New("erc20: unexpected balanceOf result type")
	}

	decimals, err := c.Decimals(ctx)
	if err != nil {
		return "", err
	}
	return hexutil.DecimalStringFromBigInt(balance, decimals)
}

// Allowance returns the amount spender is allowed to spend on owner's
// behalf, as a decimal string.
func (c *Client) Allowance(ctx context.Context, owner, spender string) (string, error) {
	owner, err := addrutil.EnsureValidAddress(owner)
	if err != nil {
		return "", err
	}
	spender, err = addrutil.EnsureValidAddress(spender)
	if err != nil {
		return "", err
	}

	values, err := c.rpc.EthCall(ctx, c.contractAddress, "allowance(address,address)", []string{"address", "address"}, []any{owner, spender}, []string{"uint256"}, "latest")
	if err != nil {
		return "", errors.Wrap(err, "erc20: allowance")
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return "", errors.New("erc20: unexpected allowance result type")
	}

	decimals, err := c.Decimals(ctx)
	if err != nil {
		return "", err
	}
	return hexutil.DecimalStringFromBigInt(amount, decimals)
}

// CallData builders below produce the ABI-encoded calldata for the
// mutating ERC-20 methods; callers wire them into a transaction builder's
// `to`/`data` since this client performs no signing itself.

// TransferCallData builds calldata for transfer(address,uint256), with
// amount given as a decimal string scaled by the token's decimal places.
func (c *Client) TransferCallData(ctx context.Context, to string, amount string) ([]byte, error) {
	to, err := addrutil.EnsureValidAddress(to)
	if err != nil {
		return nil, err
	}
	scaled, err := c.scaleAmount(ctx, amount)
	if err != nil {
		return nil, err
	}
	return rpc.EncodeCallData("transfer(address,uint256)", []string{"address", "uint256"}, []any{to, scaled})
}

// ApproveCallData builds calldata for approve(address,uint256).
func (c *Client) ApproveCallData(ctx context.Context, spender string, amount string) ([]byte, error) {
	spender, err := addrutil.EnsureValidAddress(spender)
	if err != nil {
		return nil, err
	}
	scaled, err := c.scaleAmount(ctx, amount)
	if err != nil {
		return nil, err
	}
	return rpc.EncodeCallData("approve(address,uint256)", []string{"address", "uint256"}, []any{spender, scaled})
}

// TransferFromCallData builds calldata for
// transferFrom(address,address,uint256).
func (c *Client) TransferFromCallData(ctx context.Context, from, to string, amount string) ([]byte, error) {
	from, err := addrutil.EnsureValidAddress(from)
	if err != nil {
		return nil, err
	}
	to, err = addrutil.EnsureValidAddress(to)
	if err != nil {
		return nil, err
	}
	scaled, err := c.scaleAmount(ctx, amount)
	if err != nil {
		return nil, err
	}
	return rpc.EncodeCallData("transferFrom(address,address,uint256)", []string{"address", "address", "uint256"}, []any{from, to, scaled})
}

func (c *Client) scaleAmount(ctx context.Context, amount string) (*big.Int, error) {
	decimals, err := c.Decimals(ctx)
	if err != nil {
		return nil, err
	}
	return hexutil.BigIntFromDecimalString(amount, decimals)
}
