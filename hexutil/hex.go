// Package hexutil implements the numeric and byte codecs the rest of the
// wallet library builds on: hex validation, hex/byte/big.Int conversions,
// decimal-string amounts with configurable fractional precision, and the
// small set of block-height and timestamp helpers the RPC layer needs.
package hexutil

import (
	"encoding/hex"
	"math/big"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/chapool/usdc-wallet/walleterr"
)

// MaxSafeInteger is the largest integer intFromHex will accept without
// overflowing: 2^53 - 1.
const MaxSafeInteger = (int64(1) << 53) - 1

var hexPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]*$`)

var decimalPattern = regexp.MustCompile(`^\d*(\.\d*)?$`)

// IsHex reports whether s is the empty string or an optionally
// "0x"-prefixed string of hex digits.
func IsHex(s string) bool {
	return hexPattern.MatchString(s)
}

// EnsureHex validates s as hex, optionally left-padding a single zero
// nibble when evenLength is set and the stripped hex has odd length, and
// returns the canonical form with or without the "0x" prefix.
func EnsureHex(s string, name string, addPrefix bool, evenLength bool) (string, error) {
	if !IsHex(s) {
		return "", &walleterr.InvalidHexError{Name: name, Value: s}
	}

	stripped := strings.TrimPrefix(s, "0x")
	if evenLength && len(stripped)%2 == 1 {
		stripped = "0" + stripped
	}

	if addPrefix {
		return "0x" + stripped, nil
	}
	return stripped, nil
}

// BytesFromHex strips an optional "0x" prefix, left-pads a single zero
// nibble if the remainder is odd-length, and decodes the result.
func BytesFromHex(s string) ([]byte, error) {
	canonical, err := EnsureHex(s, "", false, true)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(canonical)
	if err != nil {
		return nil, &walleterr.InvalidHexError{Value: s}
	}
	return b, nil
}

// HexFromBytes returns the lowercase hex encoding of b, optionally
// prefixed with "0x".
func HexFromBytes(b []byte, addPrefix bool) string {
	s := hex.EncodeToString(b)
	if addPrefix {
		return "0x" + s
	}
	return s
}

// BytesFromInt returns the canonical minimal big-endian encoding of n: no
// leading zero bytes, and zero encodes as the empty slice.
func BytesFromInt(n int64) []byte {
	return BytesFromBigInt(big.NewInt(n))
}

// BytesFromBigInt returns the canonical minimal big-endian encoding of n.
// n must be non-negative; zero encodes as the empty slice.
func BytesFromBigInt(n *big.Int) []byte {
	if n.Sign() == 0 {
		return []byte{}
	}
	return n.Bytes()
}

// IntFromHex parses s as an unsigned big-endian hex integer, rejecting
// values beyond MaxSafeInteger.
func IntFromHex(s string) (int64, error) {
	b, err := BytesFromHex(s)
	if err != nil {
		return 0, err
	}
	n := new(big.Int).SetBytes(b)
	if !n.IsInt64() || n.Int64() > MaxSafeInteger {
		return 0, &walleterr.OverflowError{Detail: "value exceeds safe integer ceiling"}
	}
	return n.Int64(), nil
}

// BigIntFromHex parses s as an unsigned big-endian hex integer with no
// safe-integer ceiling, for values (balances, gas prices, nonces) that
// routinely exceed 2^53-1.
func BigIntFromHex(s string) (*big.Int, error) {
	b, err := BytesFromHex(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// DecimalStringFromBigInt renders n as a base-10 decimal string with
// places digits of fractional precision, stripping trailing zeros (and a
// trailing decimal point) from the fractional part.
func DecimalStringFromBigInt(n *big.Int, places int) (string, error) {
	if n.Sign() < 0 {
		return "", &walleterr.InvalidDecimalError{Value: n.String()}
	}
	if n.Sign() == 0 {
		return "0", nil
	}

	digits := n.String()
	if len(digits) < places+1 {
		digits = strings.Repeat("0", places+1-len(digits)) + digits
	}

	intPart := digits[:len(digits)-places]
	fracPart := digits[len(digits)-places:]

	if places == 0 {
		return intPart, nil
	}

	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return intPart, nil
	}
	return intPart + "." + fracPart, nil
}

// BigIntFromDecimalString parses a base-10 decimal string (no sign,
// optional single '.') into an integer scaled by 10^places, truncating or
// right-padding the fractional part to exactly places digits.
func BigIntFromDecimalString(s string, places int) (*big.Int, error) {
	if strings.HasPrefix(s, "-") {
		return nil, &walleterr.InvalidDecimalError{Value: s}
	}
	if !decimalPattern.MatchString(s) {
		return nil, &walleterr.InvalidDecimalError{Value: s}
	}

	if s == "" {
		return big.NewInt(0), nil
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if len(fracPart) > places {
		fracPart = fracPart[:places]
	} else if len(fracPart) < places {
		fracPart += strings.Repeat("0", places-len(fracPart))
	}

	combined := intPart + fracPart
	combined = strings.TrimLeft(combined, "0")
	if combined == "" {
		combined = "0"
	}

	n, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, &walleterr.InvalidDecimalError{Value: s}
	}
	return n, nil
}

// BlockHeightString renders a numeric block height as unpadded hex, or
// passes through the sentinel strings "latest"/"pending" unchanged.
func BlockHeightString(h any) string {
	switch v := h.(type) {
	case string:
		return v
	case int:
		return bigHex(big.NewInt(int64(v)))
	case int64:
		return bigHex(big.NewInt(v))
	case uint64:
		return bigHex(new(big.Int).SetUint64(v))
	case *big.Int:
		return bigHex(v)
	default:
		return "latest"
	}
}

func bigHex(n *big.Int) string {
	if n.Sign() == 0 {
		return "0x0"
	}
	return "0x" + strings.TrimLeft(n.Text(16), "0")
}

// UnixTimeFromTimestamp floors a millisecond timestamp to whole seconds.
func UnixTimeFromTimestamp(millis int64) int64 {
	return millis / 1000
}

// RequireHexLength wraps EnsureHex and additionally errors if the stripped
// hex isn't exactly byteLen*2 characters.
func RequireHexLength(s string, name string, byteLen int) (string, error) {
	canonical, err := EnsureHex(s, name, true, true)
	if err != nil {
		return "", err
	}
	stripped := strings.TrimPrefix(canonical, "0x")
	if len(stripped) != byteLen*2 {
		return "", errors.Wrapf(&walleterr.InvalidHexError{Name: name, Value: s}, "expected %d bytes", byteLen)
	}
	return canonical, nil
}
