package cryptoadapt_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/chapool/usdc-wallet/cryptoadapt"
)

func TestKeccak256Determinism(t *testing.T) {
	a := cryptoadapt.Keccak256([]byte("hello"))
	b := cryptoadapt.Keccak256([]byte("hello"))
	assert.Equal(t, a, b)
	assert.Len(t, a, cryptoadapt.DigestSize)
}

func TestSignRecoverRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	var digest [32]byte
	copy(digest[:], cryptoadapt.Keccak256([]byte("sign me")))

	sig, err := cryptoadapt.Sign(digest, priv)
	require.NoError(t, err)
	assert.Contains(t, []byte{27, 28}, sig.V)

	pub, err := cryptoadapt.Recover(digest, sig)
	require.NoError(t, err)

	recoveredAddr := crypto.PubkeyToAddress(*pub)
	expectedAddr := crypto.PubkeyToAddress(priv.PublicKey)
	assert.Equal(t, expectedAddr, recoveredAddr)
}
