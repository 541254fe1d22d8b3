package addrutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/chapool/usdc-wallet/addrutil"
)

func TestChecksumIdempotent(t *testing.T) {
	once, err := addrutil.ChecksumAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	twice, err := addrutil.ChecksumAddress(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestIsValidAddressUniformCase(t *testing.T) {
	assert.True(t, addrutil.IsValidAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.True(t, addrutil.IsValidAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))
}

func TestIsValidAddressRejectsBadLength(t *testing.T) {
	assert.False(t, addrutil.IsValidAddress("0xabc"))
}

func TestIsValidAddressRejectsBadChecksum(t *testing.T) {
	checksum, err := addrutil.ChecksumAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	mangled := flipOneCase(checksum)
	assert.False(t, addrutil.IsValidAddress(mangled))
}

func TestEnsureValidAddress(t *testing.T) {
	checksum, err := addrutil.EnsureValidAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", checksum)
}

func TestEnsureValidAddressRejectsGarbage(t *testing.T) {
	_, err := addrutil.EnsureValidAddress("not-an-address")
	require.Error(t, err)
}

func flipOneCase(s string) string {
	b := []byte(s)
	for i := 2; i < len(b); i++ {
		if b[i] >= 'a' && b[i] <= 'f' {
			b[i] = b[i] - 'a' + 'A'
			return string(b)
		}
		if b[i] >= 'A' && b[i] <= 'F' {
			b[i] = b[i] - 'A' + 'a'
			return string(b)
		}
	}
	return s
}
