// Package abi implements the Ethereum ABI codec: head/tail encoding and
// decoding of typed parameter tuples, 4-byte function selector derivation,
// and the non-standard packed encoding soliditySHA3-style hashing needs.
package abi

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chapool/usdc-wallet/addrutil"
	"github.com/chapool/usdc-wallet/cryptoadapt"
)

const wordSize = 32

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// Encode ABI-encodes values according to types, producing the standard
// head/tail tuple encoding used for function arguments, return values, and
// EIP-712 struct data.
func Encode(types []string, values []any) ([]byte, error) {
	parsed, err := parseTypes(types)
	if err != nil {
		return nil, err
	}
	return encodeTuple(parsed, values)
}

// Decode ABI-decodes data according to types, mirroring Encode.
func Decode(types []string, data []byte) ([]any, error) {
	parsed, err := parseTypes(types)
	if err != nil {
		return nil, err
	}
	return decodeTuple(parsed, data)
}

// FunctionSelector returns the first 4 bytes of keccak256(signature).
func FunctionSelector(signature string) [4]byte {
	digest := cryptoadapt.Keccak256([]byte(signature))
	var sel [4]byte
	copy(sel[:], digest[:4])
	return sel
}

func encodeTuple(types []*Type, values []any) ([]byte, error) {
	if len(types) != len(values) {
		return nil, widthExceeded("tuple", "argument count mismatch")
	}

	heads := make([][]byte, len(types))
	tails := make([][]byte, len(types))
	headLen := 0

	for _, t := range types {
		if t.IsDynamic() {
			headLen += wordSize
			continue
		}
		headLen += t.MemoryUsage()
	}

	offset := headLen
	for i, t := range types {
		if t.IsDynamic() {
			tail, err := encodeDynamic(t, values[i])
			if err != nil {
				return nil, err
			}
			tails[i] = tail
			heads[i] = leftPadWord(big.NewInt(int64(offset)).Bytes())
			offset += len(tail)
			continue
		}
		head, err := encodeStatic(t, values[i])
		if err != nil {
			return nil, err
		}
		heads[i] = head
	}

	var out []byte
	for _, h := range heads {
		out = append(out, h...)
	}
	for _, t := range tails {
		out = append(out, t...)
	}
	return out, nil
}

func decodeTuple(types []*Type, data []byte) ([]any, error) {
	values := make([]any, len(types))
	pos := 0

	for i, t := range types {
		if t.IsDynamic() {
			if pos+wordSize > len(data) {
				return nil, widthExceeded(t.RawName, "truncated head")
			}
			offset := new(big.Int).SetBytes(data[pos : pos+wordSize]).Int64()
			pos += wordSize
			if int(offset) > len(data) {
				return nil, widthExceeded(t.RawName, "offset past end of data")
			}
			v, err := decodeDynamic(t, data, int(offset))
			if err != nil {
				return nil, err
			}
			values[i] = v
			continue
		}

		width := t.MemoryUsage()
		if pos+width > len(data) {
			return nil, widthExceeded(t.RawName, "truncated head")
		}
		v, err := decodeStatic(t, data[pos:pos+width])
		if err != nil {
			return nil, err
		}
		values[i] = v
		pos += width
	}

	return values, nil
}

// encodeStatic encodes a non-dynamic value: a single 32-byte leaf word, or
// the concatenation of a static array's elements.
func encodeStatic(t *Type, v any) ([]byte, error) {
	if t.IsArray {
		elems, ok := v.([]any)
		if !ok || len(elems) != t.ArrayLen {
			return nil, widthExceeded(t.RawName, "expected array of matching length")
		}
		var out []byte
		for _, e := range elems {
			enc, err := encodeStatic(t.SubArray, e)
			if err != nil {
				return nil, err
			}
			out = append(out, enc...)
		}
		return out, nil
	}
	return encodeLeaf(t, v)
}

func decodeStatic(t *Type, chunk []byte) (any, error) {
	if t.IsArray {
		elemWidth := t.SubArray.MemoryUsage()
		elems := make([]any, t.ArrayLen)
		for i := 0; i < t.ArrayLen; i++ {
			v, err := decodeStatic(t.SubArray, chunk[i*elemWidth:(i+1)*elemWidth])
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return elems, nil
	}
	return decodeLeaf(t, chunk[:wordSize])
}

// encodeDynamic encodes the tail content of a dynamic value: a
// length-prefixed padded byte string for bytes/string, or the tuple
// encoding of a dynamic array's elements (with a length prefix only for
// T[], not T[K]).
func encodeDynamic(t *Type, v any) ([]byte, error) {
	switch {
	case t.Name == "bytes" && !t.IsArray:
		b, ok := v.([]byte)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected []byte")
		}
		return append(leftPadWord(big.NewInt(int64(len(b))).Bytes()), rightPadToWord(b)...), nil
	case t.Name == "string" && !t.IsArray:
		s, ok := v.(string)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected string")
		}
		b := []byte(s)
		return append(leftPadWord(big.NewInt(int64(len(b))).Bytes()), rightPadToWord(b)...), nil
	case t.IsArray:
		elems, ok := v.([]any)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected array")
		}
		if t.ArrayLen >= 0 && len(elems) != t.ArrayLen {
			return nil, widthExceeded(t.RawName, "array length mismatch")
		}
		subTypes := make([]*Type, len(elems))
		for i := range elems {
			subTypes[i] = t.SubArray
		}
		body, err := encodeTuple(subTypes, elems)
		if err != nil {
			return nil, err
		}
		if t.ArrayLen < 0 {
			return append(leftPadWord(big.NewInt(int64(len(elems))).Bytes()), body...), nil
		}
		return body, nil
	default:
		return nil, widthExceeded(t.RawName, "not a dynamic type")
	}
}

func decodeDynamic(t *Type, data []byte, offset int) (any, error) {
	switch {
	case t.Name == "bytes" && !t.IsArray:
		if offset+wordSize > len(data) {
			return nil, widthExceeded(t.RawName, "truncated length")
		}
		length := int(new(big.Int).SetBytes(data[offset : offset+wordSize]).Int64())
		start := offset + wordSize
		if start+length > len(data) {
			return nil, widthExceeded(t.RawName, "truncated content")
		}
		out := make([]byte, length)
		copy(out, data[start:start+length])
		return out, nil
	case t.Name == "string" && !t.IsArray:
		b, err := decodeDynamic(&Type{Name: "bytes", RawName: "bytes"}, data, offset)
		if err != nil {
			return nil, err
		}
		return string(b.([]byte)), nil
	case t.IsArray:
		var length int
		body := data[offset:]
		if t.ArrayLen < 0 {
			if len(body) < wordSize {
				return nil, widthExceeded(t.RawName, "truncated length")
			}
			length = int(new(big.Int).SetBytes(body[:wordSize]).Int64())
			body = body[wordSize:]
		} else {
			length = t.ArrayLen
		}
		subTypes := make([]*Type, length)
		for i := range subTypes {
			subTypes[i] = t.SubArray
		}
		return decodeTuple(subTypes, body)
	default:
		return nil, widthExceeded(t.RawName, "not a dynamic type")
	}
}

func encodeLeaf(t *Type, v any) ([]byte, error) {
	switch t.Name {
	case "uint":
		n, ok := v.(*big.Int)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected *big.Int")
		}
		return encodeUint(n, t.Size, t.RawName)
	case "int":
		n, ok := v.(*big.Int)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected *big.Int")
		}
		return encodeInt(n, t.Size, t.RawName)
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected bool")
		}
		n := big.NewInt(0)
		if b {
			n = big.NewInt(1)
		}
		return encodeUint(n, 8, t.RawName)
	case "address":
		s, ok := v.(string)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected address string")
		}
		stripped := strings.TrimPrefix(s, "0x")
		n, ok := new(big.Int).SetString(stripped, 16)
		if !ok {
			return nil, widthExceeded(t.RawName, "invalid address hex")
		}
		return encodeUint(n, 160, t.RawName)
	case "bytes":
		b, ok := v.([]byte)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected []byte")
		}
		if len(b) > t.Size {
			return nil, widthExceeded(t.RawName, "value longer than declared width")
		}
		return rightPadToWord(b), nil
	case "ufixed":
		return encodeFixed(v, t, false)
	case "fixed":
		return encodeFixed(v, t, true)
	default:
		return nil, widthExceeded(t.RawName, "unsupported leaf type")
	}
}

func decodeLeaf(t *Type, word []byte) (any, error) {
	switch t.Name {
	case "uint":
		return decodeUint(word, t.Size, t.RawName)
	case "int":
		return decodeInt(word, t.Size, t.RawName)
	case "bool":
		n, err := decodeUint(word, 8, t.RawName)
		if err != nil {
			return nil, err
		}
		return n.Sign() != 0, nil
	case "address":
		addrBytes := word[wordSize-20:]
		return addrutil.ChecksumAddress("0x" + hexEncode(addrBytes))
	case "bytes":
		out := make([]byte, t.Size)
		copy(out, word[:t.Size])
		return out, nil
	case "ufixed":
		return decodeFixed(word, t, false)
	case "fixed":
		return decodeFixed(word, t, true)
	default:
		return nil, widthExceeded(t.RawName, "unsupported leaf type")
	}
}

func encodeUint(n *big.Int, bits int, typeName string) ([]byte, error) {
	if n.Sign() < 0 {
		return nil, widthExceeded(typeName, "negative value for unsigned type")
	}
	if n.BitLen() > bits {
		return nil, widthExceeded(typeName, "value exceeds declared width")
	}
	return leftPadWord(n.Bytes()), nil
}

func decodeUint(word []byte, bits int, typeName string) (*big.Int, error) {
	n := new(big.Int).SetBytes(word)
	if n.BitLen() > bits {
		return nil, widthExceeded(typeName, "decoded value exceeds declared width")
	}
	return n, nil
}

func encodeInt(n *big.Int, bits int, typeName string) ([]byte, error) {
	halfRange := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	lowerBound := new(big.Int).Neg(halfRange)
	upperBound := new(big.Int).Sub(halfRange, big.NewInt(1))
	if n.Cmp(lowerBound) < 0 || n.Cmp(upperBound) > 0 {
		return nil, widthExceeded(typeName, "value out of signed range")
	}

	if n.Sign() >= 0 {
		return leftPadWord(n.Bytes()), nil
	}
	wrapped := new(big.Int).Add(twoTo256, n)
	return leftPadWord(wrapped.Bytes()), nil
}

func decodeInt(word []byte, bits int, typeName string) (*big.Int, error) {
	v := new(big.Int).SetBytes(word)
	if v.Bit(255) == 1 {
		v = new(big.Int).Sub(v, twoTo256)
	}

	halfRange := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	lowerBound := new(big.Int).Neg(halfRange)
	upperBound := new(big.Int).Sub(halfRange, big.NewInt(1))
	if v.Cmp(lowerBound) < 0 || v.Cmp(upperBound) > 0 {
		return nil, widthExceeded(typeName, "decoded value out of signed range")
	}
	return v, nil
}

func encodeFixed(v any, t *Type, signed bool) ([]byte, error) {
	f, ok := v.(*big.Float)
	if !ok {
		return nil, widthExceeded(t.RawName, "expected *big.Float")
	}
	scale := new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), uint(t.FixedM)))
	scaled := new(big.Float).Mul(f, scale)
	n, _ := scaled.Int(nil)
	if signed {
		return encodeInt(n, t.Size, t.RawName)
	}
	return encodeUint(n, t.Size, t.RawName)
}

func decodeFixed(word []byte, t *Type, signed bool) (*big.Float, error) {
	var n *big.Int
	var err error
	if signed {
		n, err = decodeInt(word, t.Size, t.RawName)
	} else {
		n, err = decodeUint(word, t.Size, t.RawName)
	}
	if err != nil {
		return nil, err
	}
	scale := new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), uint(t.FixedM)))
	return new(big.Float).Quo(new(big.Float).SetInt(n), scale), nil
}

func leftPadWord(b []byte) []byte {
	// big.Int.Bytes() never exceeds wordSize for the bit widths encodeUint/
	// encodeInt already validated; the truncation here only guards against
	// a caller passing something wider than one word.
	if len(b) >= wordSize {
		return b[len(b)-wordSize:]
	}
	return common.LeftPadBytes(b, wordSize)
}

func rightPadToWord(b []byte) []byte {
	padded := len(b)
	if rem := padded % wordSize; rem != 0 {
		padded += wordSize - rem
	}
	return common.RightPadBytes(b, padded)
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
