// Package addrutil implements EIP-55 address validation and checksum
// casing, grounded on the same keccak-of-lowercase-hex algorithm used by
// the chapool wallet service's address derivation.
package addrutil

import (
	"strings"

	"github.com/chapool/usdc-wallet/cryptoadapt"
	"github.com/chapool/usdc-wallet/hexutil"
	"github.com/chapool/usdc-wallet/walleterr"
)

const addressHexLen = 40

// IsValidAddress reports whether s is 20 hex bytes (with an optional "0x"
// prefix) whose casing is either uniform or a correct EIP-55 checksum.
func IsValidAddress(s string) bool {
	stripped := strings.TrimPrefix(s, "0x")
	if len(stripped) != addressHexLen || !hexutil.IsHex(stripped) {
		return false
	}

	lower := strings.ToLower(stripped)
	upper := strings.ToUpper(stripped)
	if stripped == lower || stripped == upper {
		return true
	}

	return stripped == checksumCasing(lower)
}

// ChecksumAddress rewrites a valid address into its EIP-55 mixed-case
// form. The input's own casing is ignored; only the lowercase hex value
// is hashed.
func ChecksumAddress(s string) (string, error) {
	stripped := strings.TrimPrefix(s, "0x")
	if len(stripped) != addressHexLen || !hexutil.IsHex(stripped) {
		return "", &walleterr.InvalidAddressError{Value: s}
	}
	return "0x" + checksumCasing(strings.ToLower(stripped)), nil
}

// EnsureValidAddress validates s and returns its checksum form, or fails
// with InvalidAddressError carrying the offending value.
func EnsureValidAddress(s string) (string, error) {
	if !IsValidAddress(s) {
		return "", &walleterr.InvalidAddressError{Value: s}
	}
	return ChecksumAddress(s)
}

// AddressFromUncompressedPubkey derives the EIP-55 checksum address from
// an uncompressed public key (the 64-byte X‖Y form, without the 0x04
// prefix byte).
func AddressFromUncompressedPubkey(pubKeyNoPrefix []byte) (string, error) {
	digest := cryptoadapt.Keccak256(pubKeyNoPrefix)
	last20 := digest[len(digest)-20:]
	return ChecksumAddress(hexutil.HexFromBytes(last20, true))
}

// checksumCasing mixes the case of lowercase hex address bytes per EIP-55:
// a hex digit is uppercased when the corresponding nibble of
// keccak256(lowercaseHex) is >= 8.
func checksumCasing(lower string) string {
	hash := cryptoadapt.Keccak256([]byte(lower))

	out := make([]byte, len(lower))
	for i, c := range []byte(lower) {
		if c >= '0' && c <= '9' {
			out[i] = c
			continue
		}

		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}

		if nibble >= 8 {
			out[i] = c - 'a' + 'A'
		} else {
			out[i] = c
		}
	}
	return string(out)
}
