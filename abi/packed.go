package abi

import (
	"math/big"
	"strings"
)

// EncodePacked implements Solidity's non-standard packed encoding (the
// scheme behind soliditySHA3/abi.encodePacked): each leaf is emitted at
// its natural byte width with no padding between values, and array
// elements are packed back-to-back with no length prefix.
func EncodePacked(types []string, values []any) ([]byte, error) {
	parsed, err := parseTypes(types)
	if err != nil {
		return nil, err
	}
	if len(parsed) != len(values) {
		return nil, widthExceeded("tuple", "argument count mismatch")
	}

	var out []byte
	for i, t := range parsed {
		enc, err := encodePackedValue(t, values[i])
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

func encodePackedValue(t *Type, v any) ([]byte, error) {
	if t.IsArray {
		elems, ok := v.([]any)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected array")
		}
		if t.ArrayLen >= 0 && len(elems) != t.ArrayLen {
			return nil, widthExceeded(t.RawName, "array length mismatch")
		}
		// Elements inside an array keep the standard 32-byte-padded
		// encoding even in packed mode; only the outer value list is
		// unpadded.
		var out []byte
		for _, e := range elems {
			var enc []byte
			var err error
			if t.SubArray.IsDynamic() {
				enc, err = encodeDynamic(t.SubArray, e)
			} else {
				enc, err = encodeStatic(t.SubArray, e)
			}
			if err != nil {
				return nil, err
			}
			out = append(out, enc...)
		}
		return out, nil
	}

	switch t.Name {
	case "uint":
		n, ok := v.(*big.Int)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected *big.Int")
		}
		return packedUint(n, t.Size, t.RawName)
	case "int":
		n, ok := v.(*big.Int)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected *big.Int")
		}
		full, err := encodeInt(n, t.Size, t.RawName)
		if err != nil {
			return nil, err
		}
		return full[wordSize-t.Size/8:], nil
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected bool")
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
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
		return packedUint(n, 160, t.RawName)
	case "bytes":
		if t.Size > 0 {
			b, ok := v.([]byte)
			if !ok {
				return nil, widthExceeded(t.RawName, "expected []byte")
			}
			out := make([]byte, t.Size)
			copy(out, b)
			return out, nil
		}
		b, ok := v.([]byte)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected []byte")
		}
		return b, nil
	case "string":
		s, ok := v.(string)
		if !ok {
			return nil, widthExceeded(t.RawName, "expected string")
		}
		return []byte(s), nil
	default:
		return nil, widthExceeded(t.RawName, "unsupported packed leaf type")
	}
}

func packedUint(n *big.Int, bits int, typeName string) ([]byte, error) {
	full, err := encodeUint(n, bits, typeName)
	if err != nil {
		return nil, err
	}
	return full[wordSize-bits/8:], nil
}
