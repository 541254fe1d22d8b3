package hexutil_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/chapool/usdc-wallet/hexutil"
)

func TestIsHex(t *testing.T) {
	assert.True(t, hexutil.IsHex(""))
	assert.True(t, hexutil.IsHex("0x"))
	assert.True(t, hexutil.IsHex("0xabCD12"))
	assert.True(t, hexutil.IsHex("abCD12"))
	assert.False(t, hexutil.IsHex("0xzz"))
	assert.False(t, hexutil.IsHex("not hex"))
}

func TestBytesHexRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0xde, 0xad, 0xbe, 0xef},
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
	}
	for _, b := range inputs {
		encoded := hexutil.HexFromBytes(b, true)
		decoded, err := hexutil.BytesFromHex(encoded)
		require.NoError(t, err)
		assert.Equal(t, b, decoded)
	}
}

func TestBytesFromHexOddLength(t *testing.T) {
	b, err := hexutil.BytesFromHex("0xabc")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xbc}, b)
}

func TestBytesFromBigInt(t *testing.T) {
	assert.Equal(t, []byte{}, hexutil.BytesFromBigInt(big.NewInt(0)))
	assert.Equal(t, []byte{0x01}, hexutil.BytesFromBigInt(big.NewInt(1)))
	assert.Equal(t, []byte{0x01, 0x00}, hexutil.BytesFromBigInt(big.NewInt(256)))
}

func TestIntFromHexOverflow(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 60)
	_, err := hexutil.IntFromHex("0x" + tooBig.Text(16))
	require.Error(t, err)
}

func TestDecimalStringFromBigIntScenario(t *testing.T) {
	n, ok := new(big.Int).SetString("12340000", 10)
	require.True(t, ok)
	s, err := hexutil.DecimalStringFromBigInt(n, 6)
	require.NoError(t, err)
	assert.Equal(t, "12.34", s)
}

func TestBigIntFromDecimalStringScenario(t *testing.T) {
	n, err := hexutil.BigIntFromDecimalString("12.34", 6)
	require.NoError(t, err)
	assert.Equal(t, "12340000", n.String())
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, places := range []int{0, 2, 6, 18} {
		for _, val := range []int64{0, 1, 42, 1234567890} {
			n := big.NewInt(val)
			s, err := hexutil.DecimalStringFromBigInt(n, places)
			require.NoError(t, err)
			back, err := hexutil.BigIntFromDecimalString(s, places)
			require.NoError(t, err)
			assert.Equal(t, n.String(), back.String())
		}
	}
}

func TestDecimalStringFromBigIntZero(t *testing.T) {
	s, err := hexutil.DecimalStringFromBigInt(big.NewInt(0), 6)
	require.NoError(t, err)
	assert.Equal(t, "0", s)
}

func TestDecimalStringFromBigIntNegativeRejected(t *testing.T) {
	_, err := hexutil.DecimalStringFromBigInt(big.NewInt(-1), 2)
	require.Error(t, err)
}

func TestBigIntFromDecimalStringRejectsSign(t *testing.T) {
	_, err := hexutil.BigIntFromDecimalString("-1.5", 2)
	require.Error(t, err)
}

func TestBigIntFromDecimalStringEmptyIsZero(t *testing.T) {
	n, err := hexutil.BigIntFromDecimalString("", 6)
	require.NoError(t, err)
	assert.Equal(t, "0", n.String())
}

func TestBlockHeightString(t *testing.T) {
	assert.Equal(t, "latest", hexutil.BlockHeightString("latest"))
	assert.Equal(t, "pending", hexutil.BlockHeightString("pending"))
	assert.Equal(t, "0x1a", hexutil.BlockHeightString(26))
	assert.Equal(t, "0x0", hexutil.BlockHeightString(0))
}

func TestUnixTimeFromTimestamp(t *testing.T) {
	assert.Equal(t, int64(1), hexutil.UnixTimeFromTimestamp(1999))
	assert.Equal(t, int64(2), hexutil.UnixTimeFromTimestamp(2000))
}
