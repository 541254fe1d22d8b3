// Package rpc implements a minimal JSON-RPC 2.0 client over HTTP for the
// handful of Ethereum node methods the wallet library needs, in place of
// go-ethereum's ethclient so the exact error contract in the specification
// can be enforced.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/chapool/usdc-wallet/abi"
	"github.com/chapool/usdc-wallet/hexutil"
	"github.com/chapool/usdc-wallet/walleterr"
)

// EncodeCallData builds selector(funcSig) || encode(argTypes, args) for a
// contract call, using the ABI codec's shared selector cache.
func EncodeCallData(funcSig string, argTypes []string, args []any) ([]byte, error) {
	selector := abi.CachedFunctionSelector(funcSig)
	encoded, err := abi.Encode(argTypes, args)
	if err != nil {
		return nil, err
	}
	return append(selector[:], encoded...), nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcErrorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Data    any    `json:"data"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
}

// Client is a JSON-RPC client bound to a single node URL, with a chainId
// cache that is invalidated whenever the URL changes.
type Client struct {
	httpClient *http.Client

	mu      sync.Mutex
	url     string
	chainID *big.Int
}

// NewClient builds a Client bound to url.
func NewClient(url string) *Client {
	return &Client{
		httpClient: &http.Client{},
		url:        url,
	}
}

// URL returns the node URL this client currently targets.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// SetURL replaces the node URL and invalidates the cached chainId.
func (c *Client) SetURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = url
	c.chainID = nil
}

// CallMethod invokes a single JSON-RPC method and returns the raw result
// bytes, applying the error contract from the specification: a parseable
// error field always becomes an RpcError; a non-2xx response with no
// parseable error becomes an RpcError carrying the HTTP status text; a
// 2xx response with neither result nor error becomes RpcError("Result
// missing", ...).
func (c *Client) CallMethod(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	url := c.URL()

	body, err := json.Marshal(request{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, errors.Wrap(err, "rpc: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "rpc: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("method", method).Str("url", url).Msg("rpc call")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "rpc: do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "rpc: read response body")
	}

	var parsed response
	parseErr := json.Unmarshal(raw, &parsed)

	if parseErr == nil && parsed.Error != nil {
		return nil, &walleterr.RpcError{
			Message:    parsed.Error.Message,
			Code:       parsed.Error.Code,
			Data:       parsed.Error.Data,
			HTTPStatus: resp.StatusCode,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &walleterr.RpcError{
			Message:    http.StatusText(resp.StatusCode),
			Code:       0,
			Data:       nil,
			HTTPStatus: resp.StatusCode,
		}
	}

	if parseErr != nil || (len(parsed.Result) == 0 && parsed.Error == nil) {
		return nil, &walleterr.RpcError{
			Message:    "Result missing",
			Code:       0,
			Data:       nil,
			HTTPStatus: resp.StatusCode,
		}
	}

	return parsed.Result, nil
}

func (c *Client) callString(ctx context.Context, method string, params []any) (string, error) {
	raw, err := c.CallMethod(ctx, method, params)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", errors.Wrapf(err, "rpc: decode %s result", method)
	}
	return s, nil
}

// EthCall composes data = selector(funcSig) || encode(argTypes, args),
// invokes eth_call against to at block, and decodes the result under
// returnTypes. Selector derivation is handled by the abi package's shared
// cache.
func (c *Client) EthCall(ctx context.Context, to string, funcSig string, argTypes []string, args []any, returnTypes []string, block string) ([]any, error) {
	data, err := EncodeCallData(funcSig, argTypes, args)
	if err != nil {
		return nil, err
	}

	if block == "" {
		block = "latest"
	}

	callObj := map[string]any{
		"to":   to,
		"data": hexutil.HexFromBytes(data, true),
	}

	raw, err := c.CallMethod(ctx, "eth_call", []any{callObj, block})
	if err != nil {
		return nil, err
	}

	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return nil, errors.Wrap(err, "rpc: decode eth_call result")
	}
	resultBytes, err := hexutil.BytesFromHex(hexResult)
	if err != nil {
		return nil, err
	}
	if len(returnTypes) == 0 {
		return nil, nil
	}
	return abi.Decode(returnTypes, resultBytes)
}

// GetChainID returns the node's chain id, decoded as an unsigned big
// integer rather than narrowed to a fixed width here (some chains report
// ids beyond 2^53-1 or even uint64 range), caching the value until SetURL
// is called. Callers narrow at their own boundary if they need a fixed
// width.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	if c.chainID != nil {
		id := new(big.Int).Set(c.chainID)
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	hexResult, err := c.callString(ctx, "eth_chainId", []any{})
	if err != nil {
		return nil, err
	}
	chainID, err := hexutil.BigIntFromHex(hexResult)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.chainID = chainID
	c.mu.Unlock()
	return new(big.Int).Set(chainID), nil
}

// GetTransactionCount returns the account nonce at block.
func (c *Client) GetTransactionCount(ctx context.Context, address string, block string) (*big.Int, error) {
	if block == "" {
		block = "latest"
	}
	hexResult, err := c.callString(ctx, "eth_getTransactionCount", []any{address, block})
	if err != nil {
		return nil, err
	}
	return hexutil.BigIntFromHex(hexResult)
}

// GetGasPrice returns the node's suggested gas price in wei.
func (c *Client) GetGasPrice(ctx context.Context) (*big.Int, error) {
	hexResult, err := c.callString(ctx, "eth_gasPrice", []any{})
	if err != nil {
		return nil, err
	}
	return hexutil.BigIntFromHex(hexResult)
}

// EstimateGas calls eth_estimateGas with the given call parameters.
func (c *Client) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (*big.Int, error) {
	callObj := map[string]any{"from": from}
	if to != "" {
		callObj["to"] = to
	}
	if value != nil {
		callObj["value"] = hexutil.HexFromBytes(hexutil.BytesFromBigInt(value), true)
	}
	if len(data) > 0 {
		callObj["data"] = hexutil.HexFromBytes(data, true)
	}

	hexResult, err := c.callString(ctx, "eth_estimateGas", []any{callObj})
	if err != nil {
		return nil, err
	}
	return hexutil.BigIntFromHex(hexResult)
}

// GetBalance returns the wei balance of address at block.
func (c *Client) GetBalance(ctx context.Context, address string, block string) (*big.Int, error) {
	if block == "" {
		block = "latest"
	}
	hexResult, err := c.callString(ctx, "eth_getBalance", []any{address, block})
	if err != nil {
		return nil, err
	}
	return hexutil.BigIntFromHex(hexResult)
}

// SendRawTransaction submits a signed transaction and returns the hash the
// node echoes back.
func (c *Client) SendRawTransaction(ctx context.Context, signedTx []byte) (string, error) {
	return c.callString(ctx, "eth_sendRawTransaction", []any{hexutil.HexFromBytes(signedTx, true)})
}

// Receipt is the subset of eth_getTransactionReceipt fields the wallet
// library exposes.
type Receipt struct {
	TransactionHash   string          `json:"transactionHash"`
	TransactionIndex  string          `json:"transactionIndex"`
	BlockHash         string          `json:"blockHash"`
	BlockNumber       string          `json:"blockNumber"`
	From              string          `json:"from"`
	To                string          `json:"to"`
	GasUsed           string          `json:"gasUsed"`
	Status            string          `json:"status"`
	Logs              json.RawMessage `json:"logs"`
}

// GetTransactionReceipt returns the receipt for txHash, or nil if the
// transaction has not yet been included.
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	raw, err := c.CallMethod(ctx, "eth_getTransactionReceipt", []any{txHash})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, errors.Wrap(err, "rpc: decode receipt")
	}
	return &receipt, nil
}

// WaitForReceipt polls GetTransactionReceipt every intervalSec seconds
// until a receipt is available. If ignoreErrors is set, network/RPC
// errors between polls are swallowed and polling continues. If
// timeoutSec > 0, the call fails with TimeoutError once that much time
// has elapsed.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string, ignoreErrors bool, intervalSec int, timeoutSec int) (*Receipt, error) {
	if intervalSec <= 0 {
		intervalSec = 5
	}
	interval := time.Duration(intervalSec) * time.Second

	var deadline time.Time
	hasDeadline := timeoutSec > 0
	if hasDeadline {
		deadline = time.Now().Add(time.Duration(timeoutSec) * time.Second)
	}

	for {
		receipt, err := c.GetTransactionReceipt(ctx, txHash)
		if err != nil && !ignoreErrors {
			return nil, err
		}
		if err == nil && receipt != nil {
			return receipt, nil
		}

		if hasDeadline && !time.Now().Before(deadline) {
			return nil, &walleterr.TimeoutError{TxHash: txHash}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		if hasDeadline && !time.Now().Before(deadline) {
			return nil, &walleterr.TimeoutError{TxHash: txHash}
		}
	}
}
