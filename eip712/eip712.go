// Package eip712 computes EIP-712 typed-data digests: the domain-
// separator-and-struct-hash combination used by permit and
// transfer-authorization signatures.
package eip712

import (
	"sync"

	"github.com/chapool/usdc-wallet/abi"
	"github.com/chapool/usdc-wallet/cryptoadapt"
)

var typeHashCache sync.Map // string -> [32]byte

// TypeHash returns keccak256(utf8(typeSig)), memoized by typeSig when
// memoize is set.
func TypeHash(typeSig string, memoize bool) [32]byte {
	if memoize {
		if v, ok := typeHashCache.Load(typeSig); ok {
			return v.([32]byte)
		}
	}

	digest := cryptoadapt.Keccak256([]byte(typeSig))
	var out [32]byte
	copy(out[:], digest)

	if memoize {
		typeHashCache.Store(typeSig, out)
	}
	return out
}

// Hash computes keccak256(0x19 || 0x01 || domainSeparator ||
// keccak256(abi.encode(["bytes32", ...paramTypes], [typeHash, ...paramValues]))).
func Hash(domainSeparator [32]byte, typeSig string, paramTypes []string, paramValues []any, memoize bool) ([32]byte, error) {
	typeHash := TypeHash(typeSig, memoize)

	encodeTypes := make([]string, 0, len(paramTypes)+1)
	encodeTypes = append(encodeTypes, "bytes32")
	encodeTypes = append(encodeTypes, paramTypes...)

	encodeValues := make([]any, 0, len(paramValues)+1)
	encodeValues = append(encodeValues, typeHash[:])
	encodeValues = append(encodeValues, paramValues...)

	encoded, err := abi.Encode(encodeTypes, encodeValues)
	if err != nil {
		return [32]byte{}, err
	}
	structHash := cryptoadapt.Keccak256(encoded)

	prefix := []byte{0x19, 0x01}
	digest := cryptoadapt.Keccak256(prefix, domainSeparator[:], structHash)

	var out [32]byte
	copy(out[:], digest)
	return out, nil
}
