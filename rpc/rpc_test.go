package rpc_test

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapool/usdc-wallet/rpc"
	"github.com/chapool/usdc-wallet/walleterr"
)

func TestCallMethodSurfacesParseableError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"message":"execution reverted","code":3}}`)
	}))
	defer server.Close()

	client := rpc.NewClient(server.URL)
	_, err := client.CallMethod(context.Background(), "eth_call", []any{})
	require.Error(t, err)

	var rpcErr *walleterr.RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "execution reverted", rpcErr.Message)
	assert.Equal(t, 3, rpcErr.Code)
}

func TestCallMethodNon2xxWithoutParseableError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream error")
	}))
	defer server.Close()

	client := rpc.NewClient(server.URL)
	_, err := client.CallMethod(context.Background(), "eth_call", []any{})
	require.Error(t, err)

	var rpcErr *walleterr.RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, http.StatusBadGateway, rpcErr.HTTPStatus)
}

func TestCallMethodMissingResultAndError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1}`)
	}))
	defer server.Close()

	client := rpc.NewClient(server.URL)
	_, err := client.CallMethod(context.Background(), "eth_call", []any{})
	require.Error(t, err)

	var rpcErr *walleterr.RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "Result missing", rpcErr.Message)
}

func TestGetChainIDIsCachedUntilURLChanges(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x89"}`)
	}))
	defer server.Close()

	client := rpc.NewClient(server.URL)
	id1, err := client.GetChainID(context.Background())
	require.NoError(t, err)
	id2, err := client.GetChainID(context.Background())
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(137), id1)
	assert.Equal(t, big.NewInt(137), id2)
	assert.Equal(t, 1, calls)

	client.SetURL(server.URL)
	_, err = client.GetChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetChainIDHandlesValuesBeyondSafeInteger(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x20000000000000"}`)
	}))
	defer server.Close()

	client := rpc.NewClient(server.URL)
	id, err := client.GetChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1<<53), id)
}

func TestWaitForReceiptTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":null}`)
	}))
	defer server.Close()

	client := rpc.NewClient(server.URL)
	start := time.Now()
	_, err := client.WaitForReceipt(context.Background(), "0xdeadbeef", true, 1, 2)
	elapsed := time.Since(start)

	require.Error(t, err)
	var timeoutErr *walleterr.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
}
