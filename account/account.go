// Package account holds the private/public key pair derived for a wallet
// index and performs digest signing. No key material ever leaves the
// process except through the explicit hex getters.
package account

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/chapool/usdc-wallet/addrutil"
	"github.com/chapool/usdc-wallet/cryptoadapt"
	"github.com/chapool/usdc-wallet/hexutil"
)

// Account holds a 32-byte private key and the public key it derives from,
// plus the EIP-55 checksum address computed from that public key.
type Account struct {
	privKey [32]byte
	pubKey  []byte // uncompressed, 65 bytes including the 0x04 prefix
	address string
}

// New builds an Account from a 32-byte private key and its uncompressed
// public key (65 bytes with the leading 0x04, or 64 without it).
func New(privKey [32]byte, uncompressedPubKey []byte) (*Account, error) {
	pubKeyNoPrefix := uncompressedPubKey
	switch len(uncompressedPubKey) {
	case 65:
		if uncompressedPubKey[0] != 0x04 {
			return nil, errors.New("account: uncompressed public key must start with 0x04")
		}
		pubKeyNoPrefix = uncompressedPubKey[1:]
	case 64:
		// already stripped of the prefix byte
	default:
		return nil, errors.Errorf("account: unexpected public key length %d", len(uncompressedPubKey))
	}

	address, err := addrutil.AddressFromUncompressedPubkey(pubKeyNoPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "account: derive address")
	}

	full := make([]byte, 65)
	full[0] = 0x04
	copy(full[1:], pubKeyNoPrefix)

	return &Account{
		privKey: privKey,
		pubKey:  full,
		address: address,
	}, nil
}

// Address returns the EIP-55 checksum address.
func (a *Account) Address() string {
	return a.address
}

// PrivateKeyHex returns the 32-byte private key as 0x-prefixed hex. Callers
// should treat the result as sensitive and avoid logging it.
func (a *Account) PrivateKeyHex() string {
	return hexutil.HexFromBytes(a.privKey[:], true)
}

// PublicKeyHex returns the uncompressed public key (with the 0x04 prefix)
// as 0x-prefixed hex.
func (a *Account) PublicKeyHex() string {
	return hexutil.HexFromBytes(a.pubKey, true)
}

// Signature is a secp256k1 ECDSA signature in the (v, r, s) form Ethereum
// transactions and typed-data signing use, with canonical low-S already
// applied.
type Signature struct {
	V byte
	R [32]byte
	S [32]byte
}

// RHex returns R as 0x-prefixed 32-byte big-endian hex.
func (s Signature) RHex() string { return hexutil.HexFromBytes(s.R[:], true) }

// SHex returns S as 0x-prefixed 32-byte big-endian hex.
func (s Signature) SHex() string { return hexutil.HexFromBytes(s.S[:], true) }

// Sign computes a canonical-low-S secp256k1 signature over digest, with
// v = recId + 27. Callers performing transaction signing apply EIP-155 to
// v themselves.
func (a *Account) Sign(digest [32]byte) (Signature, error) {
	privKey, err := cryptoadapt.PrivateKeyFromBytes(a.privKey[:])
	if err != nil {
		return Signature{}, errors.Wrap(err, "account: parse private key")
	}
	sig, err := cryptoadapt.Sign(digest, privKey)
	if err != nil {
		return Signature{}, errors.Wrap(err, "account: sign digest")
	}
	return Signature{V: sig.V, R: sig.R, S: sig.S}, nil
}

// String redacts key material from debug output; only the address is
// shown.
func (a *Account) String() string {
	return fmt.Sprintf("Account{address: %s}", a.address)
}
