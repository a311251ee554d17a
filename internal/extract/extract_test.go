package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/address"
	"pathfinder/internal/edgedb"
	"pathfinder/internal/flownet"
	"pathfinder/internal/maxflow"
	"pathfinder/internal/u256"
)

func addr(t *testing.T, s string) address.Address {
	t.Helper()
	a, err := address.Parse(s)
	require.NoError(t, err)
	return a
}

func TestExtract_DirectEdge(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	db := edgedb.New([]edgedb.Edge{{From: a, To: b, Token: a, Capacity: u256.FromUint64(10)}})
	fn := flownet.New(db)
	result := maxflow.Run(context.Background(), fn, flownet.Node(a), flownet.Node(b), 0)
	require.Equal(t, u256.FromUint64(10), result.TotalFlow)

	transfers, err := Extract(fn, flownet.Node(a), flownet.Node(b), result.TotalFlow)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, Transfer{From: a, To: b, Token: a, Capacity: u256.FromUint64(10)}, transfers[0])
	assert.Empty(t, fn.UsedEdges(), "extraction consumes every used edge")
}

func TestExtract_TwoHopChain(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")

	db := edgedb.New([]edgedb.Edge{
		{From: a, To: b, Token: a, Capacity: u256.FromUint64(10)},
		{From: b, To: c, Token: a, Capacity: u256.FromUint64(10)},
	})
	fn := flownet.New(db)
	result := maxflow.Run(context.Background(), fn, flownet.Node(a), flownet.Node(c), 0)
	require.Equal(t, u256.FromUint64(10), result.TotalFlow)

	transfers, err := Extract(fn, flownet.Node(a), flownet.Node(c), result.TotalFlow)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, Transfer{From: a, To: b, Token: a, Capacity: u256.FromUint64(10)}, transfers[0])
	assert.Equal(t, Transfer{From: b, To: c, Token: a, Capacity: u256.FromUint64(10)}, transfers[1])
}

func TestExtract_FailsOnExhaustedLedger(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	fn := flownet.New(edgedb.New(nil))
	_, err := Extract(fn, flownet.Node(a), flownet.Node(b), u256.FromUint64(5))
	assert.Error(t, err)
}

func TestSimplify_CollapsesMatchedChain(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	tok := addr(t, "0x444444444444444444444444444444444444442e")

	in := []Transfer{
		{From: a, To: b, Token: tok, Capacity: u256.FromUint64(5)},
		{From: b, To: c, Token: tok, Capacity: u256.FromUint64(5)},
	}
	out := Simplify(in)
	require.Len(t, out, 1)
	assert.Equal(t, Transfer{From: a, To: c, Token: tok, Capacity: u256.FromUint64(5)}, out[0])
}

func TestSimplify_LeavesMismatchedCapacityAlone(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	tok := addr(t, "0x444444444444444444444444444444444444442e")

	in := []Transfer{
		{From: a, To: b, Token: tok, Capacity: u256.FromUint64(5)},
		{From: b, To: c, Token: tok, Capacity: u256.FromUint64(3)},
	}
	out := Simplify(in)
	assert.Len(t, out, 2)
}

func TestTopologicalOrder_ReordersToRespectArrival(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	tok := addr(t, "0x444444444444444444444444444444444444442e")

	in := []Transfer{
		{From: b, To: c, Token: tok, Capacity: u256.FromUint64(5)},
		{From: a, To: b, Token: tok, Capacity: u256.FromUint64(5)},
	}
	out := TopologicalOrder(in)
	require.Len(t, out, 2)
	assert.Equal(t, a, out[0].From)
	assert.Equal(t, b, out[1].From)
}
