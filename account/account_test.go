package account_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/chapool/usdc-wallet/account"
	"github.com/chapool/usdc-wallet/cryptoadapt"
)

func newTestAccount(t *testing.T) (*account.Account, [32]byte) {
	t.Helper()
	privKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	var privBytes [32]byte
	privKey.D.FillBytes(privBytes[:])
	pubBytes := cryptoadapt.UncompressedPubkeyBytes(privKey)

	acc, err := account.New(privBytes, pubBytes)
	require.NoError(t, err)
	return acc, privBytes
}

func TestAddressMatchesGoEthereum(t *testing.T) {
	privKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	var privBytes [32]byte
	privKey.D.FillBytes(privBytes[:])
	pubBytes := cryptoadapt.UncompressedPubkeyBytes(privKey)

	acc, err := account.New(privBytes, pubBytes)
	require.NoError(t, err)

	want := crypto.PubkeyToAddress(privKey.PublicKey).Hex()
	assert.Equal(t, want, acc.Address())
}

func TestSignProducesRecoverableSignature(t *testing.T) {
	acc, _ := newTestAccount(t)

	var digest [32]byte
	_, err := rand.Read(digest[:])
	require.NoError(t, err)

	sig, err := acc.Sign(digest)
	require.NoError(t, err)
	assert.Contains(t, []byte{27, 28}, sig.V)

	pub, err := cryptoadapt.Recover(digest, cryptoadapt.Signature{V: sig.V, R: sig.R, S: sig.S})
	require.NoError(t, err)
	recovered := crypto.PubkeyToAddress(*pub).Hex()
	assert.Equal(t, acc.Address(), recovered)
}

func TestStringRedactsKeyMaterial(t *testing.T) {
	acc, _ := newTestAccount(t)
	s := acc.String()
	assert.Contains(t, s, acc.Address())
	assert.NotContains(t, s, acc.PrivateKeyHex())
}

func TestRejectsWrongPubkeyLength(t *testing.T) {
	var priv [32]byte
	_, err := account.New(priv, make([]byte, 10))
	require.Error(t, err)
}
