package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/accountdb"
	"pathfinder/internal/address"
	"pathfinder/internal/dispenser"
	"pathfinder/internal/edgedb"
	"pathfinder/internal/extract"
	"pathfinder/internal/u256"
)

func addr(t *testing.T, s string) address.Address {
	t.Helper()
	a, err := address.Parse(s)
	require.NoError(t, err)
	return a
}

func newHandler(edges []edgedb.Edge) *Handler {
	return New(dispenser.New(edgedb.New(edges)), accountdb.New(), nil, "pathfinder-test")
}

// TestComputeTransfer_Direct is worked scenario 1: a single edge, full
// balance moves in one transfer.
func TestComputeTransfer_Direct(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	h := newHandler([]edgedb.Edge{{From: a, To: b, Token: a, Capacity: u256.FromUint64(10)}})

	result, err := h.ComputeTransfer(context.Background(), ComputeRequest{From: a, To: b, Value: u256.Max})
	require.NoError(t, err)
	assert.Equal(t, u256.FromUint64(10), result.Flow)
	assert.Equal(t, []extract.Transfer{{From: a, To: b, Token: a, Capacity: u256.FromUint64(10)}}, result.Transfers)
}

// TestComputeTransfer_OneHop is worked scenario 2: the bottleneck at the
// second hop caps the whole path.
func TestComputeTransfer_OneHop(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	t1 := addr(t, "0x555555555555555555555555555555555555552e")
	t2 := addr(t, "0x666666666666666666666666666666666666662e")

	h := newHandler([]edgedb.Edge{
		{From: a, To: b, Token: t1, Capacity: u256.FromUint64(10)},
		{From: b, To: c, Token: t2, Capacity: u256.FromUint64(8)},
	})

	result, err := h.ComputeTransfer(context.Background(), ComputeRequest{From: a, To: c, Value: u256.Max})
	require.NoError(t, err)
	assert.Equal(t, u256.FromUint64(8), result.Flow)
	assert.Equal(t, []extract.Transfer{
		{From: a, To: b, Token: t1, Capacity: u256.FromUint64(8)},
		{From: b, To: c, Token: t2, Capacity: u256.FromUint64(8)},
	}, result.Transfers)
}

// TestComputeTransfer_Diamond is worked scenario 3: two cross-token
// account-hop paths both saturate, for a combined flow of 16.
func TestComputeTransfer_Diamond(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	d := addr(t, "0x444444444444444444444444444444444444442e")
	t1 := addr(t, "0x555555555555555555555555555555555555552e")
	t2 := addr(t, "0x666666666666666666666666666666666666662e")

	h := newHandler([]edgedb.Edge{
		{From: a, To: b, Token: t1, Capacity: u256.FromUint64(10)},
		{From: a, To: c, Token: t2, Capacity: u256.FromUint64(7)},
		{From: b, To: d, Token: t2, Capacity: u256.FromUint64(9)},
		{From: c, To: d, Token: t1, Capacity: u256.FromUint64(8)},
	})

	result, err := h.ComputeTransfer(context.Background(), ComputeRequest{From: a, To: d, Value: u256.Max})
	require.NoError(t, err)
	assert.Equal(t, u256.FromUint64(16), result.Flow)
	assert.ElementsMatch(t, []extract.Transfer{
		{From: a, To: b, Token: t1, Capacity: u256.FromUint64(9)},
		{From: a, To: c, Token: t2, Capacity: u256.FromUint64(7)},
		{From: b, To: d, Token: t2, Capacity: u256.FromUint64(9)},
		{From: c, To: d, Token: t1, Capacity: u256.FromUint64(7)},
	}, result.Transfers)
	assertOrderingLaw(t, result.Transfers)
}

// TestComputeTransfer_PrunedDiamond is worked scenario 4: the same
// diamond, requesting only 6 units, which eliminates the lower-capacity
// path entirely rather than trimming both paths.
func TestComputeTransfer_PrunedDiamond(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	d := addr(t, "0x444444444444444444444444444444444444442e")
	t1 := addr(t, "0x555555555555555555555555555555555555552e")
	t2 := addr(t, "0x666666666666666666666666666666666666662e")

	h := newHandler([]edgedb.Edge{
		{From: a, To: b, Token: t1, Capacity: u256.FromUint64(10)},
		{From: a, To: c, Token: t2, Capacity: u256.FromUint64(7)},
		{From: b, To: d, Token: t2, Capacity: u256.FromUint64(9)},
		{From: c, To: d, Token: t1, Capacity: u256.FromUint64(8)},
	})

	result, err := h.ComputeTransfer(context.Background(), ComputeRequest{From: a, To: d, Value: u256.FromUint64(6)})
	require.NoError(t, err)
	assert.Equal(t, u256.FromUint64(6), result.Flow)
	assert.Equal(t, []extract.Transfer{
		{From: a, To: b, Token: t1, Capacity: u256.FromUint64(6)},
		{From: b, To: d, Token: t2, Capacity: u256.FromUint64(6)},
	}, result.Transfers)
}

// TestComputeTransfer_HopCap is worked scenario 5: a 4-edge chain with
// only a 2-account-hop budget, which falls short of the sink.
func TestComputeTransfer_HopCap(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	d := addr(t, "0x444444444444444444444444444444444444442e")
	e := addr(t, "0x777777777777777777777777777777777777772e")
	tok := addr(t, "0x555555555555555555555555555555555555552e")

	h := newHandler([]edgedb.Edge{
		{From: a, To: b, Token: tok, Capacity: u256.FromUint64(10)},
		{From: b, To: c, Token: tok, Capacity: u256.FromUint64(10)},
		{From: c, To: d, Token: tok, Capacity: u256.FromUint64(10)},
		{From: d, To: e, Token: tok, Capacity: u256.FromUint64(10)},
	})

	result, err := h.ComputeTransfer(context.Background(), ComputeRequest{From: a, To: e, Value: u256.Max, MaxHops: 2})
	require.NoError(t, err)
	assert.True(t, result.Flow.IsZero())
	assert.Empty(t, result.Transfers)
}

// TestComputeTransfer_TrustLimitBottleneck is worked scenario 6: all
// four capacity edges share one token, so the source's aggregate
// outgoing capacity and the sink's aggregate incoming capacity (both
// max-of, not sum-of, per the Node/Trust collapse rules) bound the flow
// below the sum of any individual path.
func TestComputeTransfer_TrustLimitBottleneck(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	d := addr(t, "0x444444444444444444444444444444444444442e")

	h := newHandler([]edgedb.Edge{
		{From: a, To: b, Token: a, Capacity: u256.FromUint64(10)},
		{From: a, To: c, Token: a, Capacity: u256.FromUint64(11)},
		{From: b, To: d, Token: a, Capacity: u256.FromUint64(9)},
		{From: c, To: d, Token: a, Capacity: u256.FromUint64(8)},
	})

	result, err := h.ComputeTransfer(context.Background(), ComputeRequest{From: a, To: d, Value: u256.Max})
	require.NoError(t, err)
	assert.Equal(t, u256.FromUint64(9), result.Flow)
}

// TestComputeTransfer_ExcludeFiltersIntermediateHop exercises the
// exclude-set supplemental feature: forcing the search away from an
// intermediate account drops the flow to whatever survives without it.
func TestComputeTransfer_ExcludeFiltersIntermediateHop(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	d := addr(t, "0x444444444444444444444444444444444444442e")
	t1 := addr(t, "0x555555555555555555555555555555555555552e")
	t2 := addr(t, "0x666666666666666666666666666666666666662e")

	h := newHandler([]edgedb.Edge{
		{From: a, To: b, Token: t1, Capacity: u256.FromUint64(10)},
		{From: a, To: c, Token: t2, Capacity: u256.FromUint64(7)},
		{From: b, To: d, Token: t2, Capacity: u256.FromUint64(9)},
		{From: c, To: d, Token: t1, Capacity: u256.FromUint64(8)},
	})

	result, err := h.ComputeTransfer(context.Background(), ComputeRequest{
		From: a, To: d, Value: u256.Max,
		Exclude: map[address.Address]bool{b: true},
	})
	require.NoError(t, err)
	assert.Equal(t, u256.FromUint64(7), result.Flow)
}

// TestComputeTransfer_NotReadyBeforePublish covers the CodeNotReady
// error path: a dispenser that has never published returns no usable
// edges from PinLatest.
func TestComputeTransfer_NotReadyBeforePublish(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	h := New(dispenser.New(nil), accountdb.New(), nil, "pathfinder-test")
	_, err := h.ComputeTransfer(context.Background(), ComputeRequest{From: a, To: b, Value: u256.Max})
	require.Error(t, err)
}

func assertOrderingLaw(t *testing.T, transfers []extract.Transfer) {
	t.Helper()
	lastIncoming := make(map[address.Address]int)
	for i, tr := range transfers {
		lastIncoming[tr.To] = i
	}
	for i, tr := range transfers {
		if in, ok := lastIncoming[tr.From]; ok {
			assert.Greater(t, i, in, "transfer from %s at %d must appear after an incoming transfer at %d", tr.From, i, in)
		}
	}
}
