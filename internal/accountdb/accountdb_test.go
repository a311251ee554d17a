package accountdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/address"
	"pathfinder/internal/u256"
)

func addr(t *testing.T, s string) address.Address {
	t.Helper()
	a, err := address.Parse(s)
	require.NoError(t, err)
	return a
}

func TestDeriveEdges_Organization(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	db := New()
	from := NewAccount(a)
	from.SetBalance(a, u256.FromUint64(10))
	require.NoError(t, from.SetTrust(b, 1))
	db.Put(from)

	to := NewAccount(b)
	to.Organization = true
	db.Put(to)

	edges := db.DeriveEdges()
	require.Len(t, edges, 1)
	assert.Equal(t, a, edges[0].From)
	assert.Equal(t, b, edges[0].To)
	assert.Equal(t, a, edges[0].Token)
	assert.Equal(t, u256.FromUint64(10), edges[0].Capacity)
}

func TestDeriveEdges_TrustLimited(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	from := NewAccount(a)
	from.SetBalance(a, u256.FromUint64(50))
	from.TrustOut = map[address.Address]uint8{b: 50}

	to := NewAccount(b)
	to.SetBalance(b, u256.FromUint64(200)) // amount = 200*50/100 = 100
	to.SetBalance(a, u256.FromUint64(0))   // held = 0 -> scaled = 0

	db := New()
	db.Put(from)
	db.Put(to)

	edges := db.DeriveEdges()
	require.Len(t, edges, 1)
	// capacity = min(amount-scaled, from_balance) = min(100-0, 50) = 50
	assert.Equal(t, u256.FromUint64(50), edges[0].Capacity)
}

func TestDeriveEdges_OverQuotaYieldsZero(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	from := NewAccount(a)
	from.SetBalance(a, u256.FromUint64(50))
	from.TrustOut = map[address.Address]uint8{b: 10}

	to := NewAccount(b)
	to.SetBalance(b, u256.FromUint64(100)) // amount = 100*10/100 = 10
	to.SetBalance(a, u256.FromUint64(20))  // held = 20 > amount -> capacity 0

	db := New()
	db.Put(from)
	db.Put(to)

	assert.Empty(t, db.DeriveEdges())
}

func TestSetTrust_DropsSelfAndZero(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	acct := NewAccount(a)
	require.NoError(t, acct.SetTrust(a, 50))
	assert.Empty(t, acct.TrustOut, "self-trust must be dropped")

	require.NoError(t, acct.SetTrust(b, 0))
	assert.Empty(t, acct.TrustOut, "zero-percent trust must be dropped")

	require.NoError(t, acct.SetTrust(b, 50))
	assert.Equal(t, uint8(50), acct.TrustOut[b])
}

func TestSetTrust_RejectsOutOfRange(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	acct := NewAccount(a)
	assert.Error(t, acct.SetTrust(a, 101))
}

func TestSetBalance_DropsZero(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	acct := NewAccount(a)
	acct.SetBalance(a, u256.FromUint64(10))
	assert.Equal(t, u256.FromUint64(10), acct.Balances[a])

	acct.SetBalance(a, u256.Zero)
	_, ok := acct.Balances[a]
	assert.False(t, ok)
}

func TestTokenOwner(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	db := New()
	db.Put(NewAccount(a))

	owner, ok := db.TokenOwner(a)
	require.True(t, ok)
	assert.Equal(t, a, owner)

	_, ok = db.TokenOwner(addr(t, "0x222222222222222222222222222222222222222e"))
	assert.False(t, ok)
}
