package prune

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

func TestReduce_RemovesWholeEdgeWhenItFitsBudget(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	fn := flownet.New(edgedb.New(nil))
	fn.PushFlow(flownet.Node(a), flownet.Node(b), u256.FromUint64(10))

	remaining := Reduce(fn, flownet.Node(a), flownet.Node(b), u256.FromUint64(10))
	assert.True(t, remaining.IsZero())
	assert.Empty(t, fn.UsedEdges())
}

func TestReduce_PartialRemovalWhenBudgetSmallerThanEdge(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	fn := flownet.New(edgedb.New(nil))
	fn.PushFlow(flownet.Node(a), flownet.Node(b), u256.FromUint64(10))

	remaining := Reduce(fn, flownet.Node(a), flownet.Node(b), u256.FromUint64(4))
	assert.True(t, remaining.IsZero())

	used := fn.UsedEdges()
	require.Len(t, used, 1)
	assert.Equal(t, u256.FromUint64(6), used[0].Capacity)
}

func TestReduce_CascadePropagatesAcrossAccountHops(t *testing.T) {
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

	remaining := Reduce(fn, flownet.Node(a), flownet.Node(c), u256.FromUint64(3))
	assert.True(t, remaining.IsZero())

	for _, e := range fn.UsedEdges() {
		assert.Equal(t, u256.FromUint64(7), e.Capacity, "every hop on the single realized path must shrink together")
	}
}

// TestReduce_PrunedDiamond reconstructs the canonical two-path diamond
// (crossing tokens so the paths share no Node-level balance pool), runs
// it to its full max flow, then reduces by the surplus over a smaller
// requested amount. The lower-capacity path (A-C-D, bottleneck 7) is
// retired whole before the higher-capacity one (A-B-D, bottleneck 9) is
// trimmed down to the remainder, since both realized paths tie on
// length and the tie is broken by ascending capacity.
func TestReduce_PrunedDiamond(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")
	d := addr(t, "0x444444444444444444444444444444444444442e")
	t1 := addr(t, "0x555555555555555555555555555555555555552e")
	t2 := addr(t, "0x666666666666666666666666666666666666662e")

	db := edgedb.New([]edgedb.Edge{
		{From: a, To: b, Token: t1, Capacity: u256.FromUint64(10)},
		{From: a, To: c, Token: t2, Capacity: u256.FromUint64(7)},
		{From: b, To: d, Token: t2, Capacity: u256.FromUint64(9)},
		{From: c, To: d, Token: t1, Capacity: u256.FromUint64(8)},
	})
	fn := flownet.New(db)

	result := maxflow.Run(context.Background(), fn, flownet.Node(a), flownet.Node(d), 0)
	require.Equal(t, u256.FromUint64(16), result.TotalFlow)

	requested := u256.FromUint64(6)
	toRemove := u256.MustSub(result.TotalFlow, requested)

	remaining := Reduce(fn, flownet.Node(a), flownet.Node(d), toRemove)
	assert.True(t, remaining.IsZero())

	used := fn.UsedEdges()
	require.Len(t, used, 6, "only the A-B-D path should survive")
	for _, e := range used {
		assert.Equal(t, u256.FromUint64(6), e.Capacity)
		assert.NotEqual(t, flownet.Trust(c, t2), e.From)
		assert.NotEqual(t, flownet.Trust(c, t2), e.To)
	}
}

func TestLimitTransfers_NoopWhenWithinBudget(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")

	fn := flownet.New(edgedb.New(nil))
	fn.PushFlow(flownet.Node(a), flownet.Node(b), u256.FromUint64(10))

	lost := LimitTransfers(fn, 5)
	assert.True(t, lost.IsZero())
	assert.Len(t, fn.UsedEdges(), 1)
}

func TestLimitTransfers_PrunesSmallestEdgeFirst(t *testing.T) {
	a := addr(t, "0x111111111111111111111111111111111111112e")
	b := addr(t, "0x222222222222222222222222222222222222222e")
	c := addr(t, "0x333333333333333333333333333333333333332e")

	fn := flownet.New(edgedb.New(nil))
	fn.PushFlow(flownet.Node(a), flownet.Node(b), u256.FromUint64(10))
	fn.PushFlow(flownet.Node(a), flownet.Node(c), u256.FromUint64(3))

	lost := LimitTransfers(fn, 1)
	assert.Equal(t, u256.FromUint64(3), lost)

	used := fn.UsedEdges()
	require.Len(t, used, 1)
	assert.Equal(t, flownet.Node(b), used[0].To)
}
