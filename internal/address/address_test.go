package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	a, err := Parse("0x111111111111111111111111111111111111112e")
	require.NoError(t, err)
	assert.Equal(t, "0x111111111111111111111111111111111111112e", a.String())
}

func TestParse_InvalidLength(t *testing.T) {
	_, err := Parse("0x1234")
	assert.Error(t, err)
}

func TestParse_InvalidHex(t *testing.T) {
	_, err := Parse("0x" + "zz1111111111111111111111111111111111112e")
	assert.Error(t, err)
}

func TestLess_TotalOrder(t *testing.T) {
	a, _ := Parse("0x111111111111111111111111111111111111112e")
	b, _ := Parse("0x222222222222222222222222222222222222222e")
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestChecksum_KnownVector(t *testing.T) {
	// Canonical EIP-55 test vector.
	a, err := Parse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", a.Checksum())
}

func TestVerifyChecksum(t *testing.T) {
	ok, err := VerifyChecksum("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyChecksum("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.True(t, ok, "all-lowercase input is treated as unchecksummed")

	ok, err = VerifyChecksum("0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	assert.False(t, ok, "flipped case must fail checksum verification")
}
