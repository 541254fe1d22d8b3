package abi_test

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/chapool/usdc-wallet/abi"
)

func TestFunctionSelectorLiterals(t *testing.T) {
	cases := map[string]string{
		"decimals()":                "313ce567",
		"name()":                    "06fdde03",
		"symbol()":                  "95d89b41",
		"transfer(address,uint256)": "a9059cbb",
	}
	for sig, want := range cases {
		sel := abi.FunctionSelector(sig)
		assert.Equal(t, want, hex.EncodeToString(sel[:]))
	}
}

func TestCachedFunctionSelectorMatchesUncached(t *testing.T) {
	sel := abi.CachedFunctionSelector("decimals()")
	assert.Equal(t, abi.FunctionSelector("decimals()"), sel)
	// second call hits the memo path
	assert.Equal(t, abi.FunctionSelector("decimals()"), abi.CachedFunctionSelector("decimals()"))
}

func TestUsdcTransferCalldataLiteral(t *testing.T) {
	selector := abi.FunctionSelector("transfer(address,uint256)")
	amount, ok := new(big.Int).SetString("12340000000000000000", 10)
	require.True(t, ok)
	encoded, err := abi.Encode(
		[]string{"address", "uint256"},
		[]any{"0xaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaA", amount},
	)
	require.NoError(t, err)

	got := "0x" + hex.EncodeToString(selector[:]) + hex.EncodeToString(encoded)
	want := "0xa9059cbb000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa000000000000000000000000000000000000000000000000ab407c9eb0520000"
	assert.Equal(t, want, got)
}

func TestBalanceDecodingLiteral(t *testing.T) {
	raw, err := hex.DecodeString("0000000000000000000000000000000000000000000000000de0b6b3a7640000")
	require.NoError(t, err)

	values, err := abi.Decode([]string{"uint256"}, raw)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, big.NewInt(1000000000000000000), values[0])
}

func TestRoundTripStaticTuple(t *testing.T) {
	types := []string{"uint256", "bool", "address", "int8"}
	values := []any{
		big.NewInt(42),
		true,
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		big.NewInt(-5),
	}
	encoded, err := abi.Encode(types, values)
	require.NoError(t, err)

	decoded, err := abi.Decode(types, encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 4)
	assert.Equal(t, big.NewInt(42), decoded[0])
	assert.Equal(t, true, decoded[1])
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", decoded[2])
	assert.Equal(t, big.NewInt(-5), decoded[3])
}

func TestRoundTripDynamicValues(t *testing.T) {
	types := []string{"string", "bytes", "uint256[]"}
	values := []any{
		"hello world",
		[]byte{0xde, 0xad, 0xbe, 0xef},
		[]any{big.NewInt(1), big.NewInt(2), big.NewInt(3)},
	}
	encoded, err := abi.Encode(types, values)
	require.NoError(t, err)

	decoded, err := abi.Decode(types, encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.Equal(t, "hello world", decoded[0])
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, decoded[1])
	assert.Equal(t, []any{big.NewInt(1), big.NewInt(2), big.NewInt(3)}, decoded[2])
}

func TestRoundTripFixedSizeArray(t *testing.T) {
	types := []string{"uint8[3]"}
	values := []any{[]any{big.NewInt(1), big.NewInt(2), big.NewInt(3)}}
	encoded, err := abi.Encode(types, values)
	require.NoError(t, err)
	assert.Len(t, encoded, 96) // 3 static words, no offset pointer

	decoded, err := abi.Decode(types, encoded)
	require.NoError(t, err)
	assert.Equal(t, values[0], decoded[0])
}

func TestRoundTripBytesN(t *testing.T) {
	types := []string{"bytes4"}
	values := []any{[]byte{0x01, 0x02, 0x03, 0x04}}
	encoded, err := abi.Encode(types, values)
	require.NoError(t, err)

	decoded, err := abi.Decode(types, encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, decoded[0])
}

func TestEncodeRejectsOverflow(t *testing.T) {
	_, err := abi.Encode([]string{"uint8"}, []any{big.NewInt(256)})
	require.Error(t, err)
}

func TestEncodeRejectsOutOfSignedRange(t *testing.T) {
	_, err := abi.Encode([]string{"int8"}, []any{big.NewInt(128)})
	require.Error(t, err)
}

func TestEncodePackedConcatenatesWithoutPadding(t *testing.T) {
	got, err := abi.EncodePacked(
		[]string{"uint8", "uint8"},
		[]any{big.NewInt(1), big.NewInt(2)},
	)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, got)
}

func TestEncodePackedStringIsRawBytes(t *testing.T) {
	got, err := abi.EncodePacked([]string{"string"}, []any{"hi"})
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)
}
