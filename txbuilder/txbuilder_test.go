package txbuilder_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chapool/usdc-wallet/account"
	"github.com/chapool/usdc-wallet/cryptoadapt"
	"github.com/chapool/usdc-wallet/rpc"
	"github.com/chapool/usdc-wallet/txbuilder"
)

func newTestAccount(t *testing.T) *account.Account {
	t.Helper()
	privKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	var privBytes [32]byte
	privKey.D.FillBytes(privBytes[:])
	pub := cryptoadapt.UncompressedPubkeyBytes(privKey)

	acc, err := account.New(privBytes, pub)
	require.NoError(t, err)
	return acc
}

type jsonRPCRequest struct {
	Method string `json:"method"`
}

func newNodeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Method {
		case "eth_getTransactionCount":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x2a"}`)
		case "eth_gasPrice":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x3b9aca00"}`)
		case "eth_chainId":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x1"}`)
		case "eth_estimateGas":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x5208"}`)
		case "eth_sendRawTransaction":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0xfeed"}`)
		default:
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":null}`)
		}
	}))
}

func TestSignProducesDeterministicBytesForFixedInputs(t *testing.T) {
	server := newNodeServer(t)
	defer server.Close()

	acc := newTestAccount(t)
	client := rpc.NewClient(server.URL)

	build := func() []byte {
		b := txbuilder.New(acc, client)
		require.NoError(t, b.SetTo("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"))
		require.NoError(t, b.SetWeiValue("1000000000000000000"))
		b.SetNonce(42)
		signed, err := b.Sign(context.Background())
		require.NoError(t, err)
		return signed
	}

	first := build()
	second := build()
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestExactly21000GasEstimateIsUsedAsIs(t *testing.T) {
	server := newNodeServer(t)
	defer server.Close()

	acc := newTestAccount(t)
	client := rpc.NewClient(server.URL)
	b := txbuilder.New(acc, client)
	require.NoError(t, b.SetTo("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"))

	_, err := b.Sign(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(21000), b.GasLimit())
}

func TestSetGasLimitRejectsOutOfRange(t *testing.T) {
	acc := newTestAccount(t)
	b := txbuilder.New(acc, nil)
	require.Error(t, b.SetGasLimit(100))
	require.Error(t, b.SetGasLimit(30_000_000))
	require.NoError(t, b.SetGasLimit(21000))
}

func TestSetWeiValueRejectsOverflow(t *testing.T) {
	acc := newTestAccount(t)
	b := txbuilder.New(acc, nil)
	tooBig := new(big.Int).Mul(big.NewInt(1_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	require.Error(t, b.SetWeiValue(tooBig.String()))
	require.NoError(t, b.SetWeiValue("1"))
}

func TestSetGasPriceGweiConvertsToWei(t *testing.T) {
	acc := newTestAccount(t)
	b := txbuilder.New(acc, nil)
	require.NoError(t, b.SetGasPriceGwei(20))
	assert.Equal(t, big.NewInt(20_000_000_000), b.GasPriceWei())
}

func TestDeferredToAndDataResolveDuringSign(t *testing.T) {
	server := newNodeServer(t)
	defer server.Close()

	acc := newTestAccount(t)
	client := rpc.NewClient(server.URL)
	b := txbuilder.New(acc, client)

	b.SetToDeferred(func(ctx context.Context) (string, error) {
		return "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa", nil
	})
	b.SetDataDeferred(func(ctx context.Context) (string, error) {
		return "0xdeadbeef", nil
	})

	_, err := b.Sign(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa", b.To())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b.Data())
}

func TestSubmitSwallowsKnownTransactionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"message":"already known","code":-32000}}`)
	}))
	defer server.Close()

	acc := newTestAccount(t)
	client := rpc.NewClient(server.URL)
	b := txbuilder.New(acc, client)

	var signedTx [64]byte
	_, err := rand.Read(signedTx[:])
	require.NoError(t, err)

	submission, err := b.Submit(context.Background(), signedTx[:])
	require.NoError(t, err)
	assert.NotEmpty(t, submission.TxHash)
}

func TestSubmitPropagatesOtherErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"message":"insufficient funds","code":-32000}}`)
	}))
	defer server.Close()

	acc := newTestAccount(t)
	client := rpc.NewClient(server.URL)
	b := txbuilder.New(acc, client)

	var signedTx [64]byte
	_, err := rand.Read(signedTx[:])
	require.NoError(t, err)

	_, err = b.Submit(context.Background(), signedTx[:])
	require.Error(t, err)
}
