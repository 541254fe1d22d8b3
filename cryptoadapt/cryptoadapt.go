// Package cryptoadapt wraps the Keccak-256 and secp256k1 primitives the
// rest of the library is built on behind a uniform contract: bytes in,
// 32-byte digest out; digest and private key in, (r,s,v) signature out.
// Both primitives are treated as externally supplied building blocks, the
// way go-ethereum's crypto package supplies them to the chapool wallet
// service's address and signer packages.
package cryptoadapt

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// DigestSize is the length in bytes of a Keccak-256 digest.
const DigestSize = 32

// secp256k1N is the order of the secp256k1 curve, used to enforce
// canonical low-S signatures.
var secp256k1N = crypto.S256().Params().N

// secp256k1HalfN is N/2, the threshold above which S must be flipped.
var secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)

// Keccak256 hashes data and returns the 32-byte digest.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// Signature is a secp256k1 ECDSA signature in the (v, r, s) form Ethereum
// uses, with v already adjusted to {27, 28} and canonicalized to low-S.
type Signature struct {
	V byte
	R [32]byte
	S [32]byte
}

// Sign computes a secp256k1 ECDSA signature over a 32-byte digest,
// flipping S (and the recovery id) when S exceeds N/2 so the signature is
// canonical, and returns v in {27, 28}.
func Sign(digest [32]byte, privKey *ecdsa.PrivateKey) (Signature, error) {
	sig, err := crypto.Sign(digest[:], privKey)
	if err != nil {
		return Signature{}, errors.Wrap(err, "secp256k1 sign failed")
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	recID := sig[64]

	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
		recID ^= 1
	}

	var out Signature
	r.FillBytes(out.R[:])
	s.FillBytes(out.S[:])
	out.V = recID + 27
	return out, nil
}

// Recover recovers the uncompressed public key that produced sig over
// digest.
func Recover(digest [32]byte, sig Signature) (*ecdsa.PublicKey, error) {
	full := make([]byte, 65)
	copy(full[:32], sig.R[:])
	copy(full[32:64], sig.S[:])
	full[64] = sig.V - 27

	pub, err := crypto.SigToPub(digest[:], full)
	if err != nil {
		return nil, errors.Wrap(err, "secp256k1 recover failed")
	}
	return pub, nil
}

// PrivateKeyFromBytes parses a 32-byte secp256k1 private key scalar.
func PrivateKeyFromBytes(b []byte) (*ecdsa.PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, errors.Wrap(err, "parse secp256k1 private key")
	}
	return key, nil
}

// UncompressedPubkeyBytes returns the 65-byte uncompressed public key
// (with the leading 0x04 byte) for a private key.
func UncompressedPubkeyBytes(privKey *ecdsa.PrivateKey) []byte {
	return crypto.FromECDSAPub(&privKey.PublicKey)
}
