// Package prune implements post-hoc flow reduction: trimming excess flow
// down to a requested amount while preferring to shorten the realization
// (Reduce), and capping the number of atomic transfers the realization
// will decompose into (LimitTransfers). Both operate directly on a
// flownet.FlowNet's used_edges ledger and reuse the same BFS-distance
// idiom as the engine's other graph searches, applied once here in both
// directions to rank edges by how long a path they sit on.
package prune

import (
	"sort"

	"pathfinder/internal/flownet"
	"pathfinder/internal/u256"
)

// Reduce removes up to amount units of flow from fn's used_edges ledger,
// preferring to eliminate edges on the longest source-sink paths first so
// the remaining realization stays short. It returns whatever could not
// be pruned (ideally zero).
func Reduce(fn *flownet.FlowNet, source, sink flownet.Vertex, amount u256.U256) u256.U256 {
	if amount.IsZero() {
		return u256.Zero
	}

	distFromSource := distancesForward(fn, source)
	distToSink := distancesBackward(fn, sink)

	groups := groupByLength(fn, distFromSource, distToSink)

	remaining := removeWholeEdges(fn, groups, amount)
	if !remaining.IsZero() {
		remaining = removePartialEdges(fn, groups, remaining)
	}
	return remaining
}

type candidate struct {
	from, to flownet.Vertex
	length   int
	capacity u256.U256
}

// groupByLength computes, for every currently-used edge, the length of a
// shortest path through it (distFromSource[from] + 1 + distToSink[to]),
// and returns the candidates sorted longest-first. Candidates tied on
// length are ordered by ascending capacity: when two realized paths are
// equally long, the cheaper one to fully retire is tried first, so a
// fixed budget eliminates whole low-capacity paths before it starts
// eating into a higher-capacity one. An edge not on any source-sink path
// (either endpoint unreachable) is excluded: pruning it could not
// shorten a realization it is not part of.
func groupByLength(fn *flownet.FlowNet, distFromSource, distToSink map[flownet.Vertex]int) []candidate {
	var out []candidate
	for _, e := range fn.UsedEdges() {
		ds, ok1 := distFromSource[e.From]
		dt, ok2 := distToSink[e.To]
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, candidate{from: e.From, to: e.To, length: ds + 1 + dt, capacity: e.Capacity})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.length != b.length {
			return a.length > b.length
		}
		if c := a.capacity.Cmp(b.capacity); c != 0 {
			return c < 0
		}
		if a.from != b.from {
			return a.from.Less(b.from)
		}
		return a.to.Less(b.to)
	})
	return out
}

// removeWholeEdges makes one longest-first pass over groups, removing any
// edge whose current capacity is at most the remaining budget entirely.
func removeWholeEdges(fn *flownet.FlowNet, candidates []candidate, remaining u256.U256) u256.U256 {
	for i := range candidates {
		if remaining.IsZero() {
			break
		}
		c := candidates[i]
		cap := fn.UsedCapacity(c.from, c.to)
		if cap.IsZero() || cap.Cmp(remaining) > 0 {
			continue
		}
		pruneEdge(fn, c.from, c.to, cap)
		remaining = u256.MustSub(remaining, cap)
	}
	return remaining
}

// removePartialEdges makes a second pass, allowing partial removal of
// whatever capacity remains on each candidate edge.
func removePartialEdges(fn *flownet.FlowNet, candidates []candidate, remaining u256.U256) u256.U256 {
	for i := range candidates {
		if remaining.IsZero() {
			break
		}
		c := candidates[i]
		cap := fn.UsedCapacity(c.from, c.to)
		if cap.IsZero() {
			continue
		}
		step := u256.Min(cap, remaining)
		leftover := pruneEdge(fn, c.from, c.to, step)
		remaining = u256.MustSub(remaining, u256.MustSub(step, leftover))
	}
	return remaining
}

// pruneEdge reduces the used_edges entry from->to by up to amount and
// cascades the same budget forward from to and backward from from, so
// conservation holds: flow that no longer arrives at `to` is retracted
// from one of its own outgoing edges, and flow that no longer leaves
// `from` is retracted from one of its own incoming edges. Returns
// amount minus however much was actually removed on this edge.
func pruneEdge(fn *flownet.FlowNet, from, to flownet.Vertex, amount u256.U256) u256.U256 {
	delta := reduceUsedEdge(fn, from, to, amount)
	if !delta.IsZero() {
		cascadeForward(fn, to, delta)
		cascadeBackward(fn, from, delta)
	}
	return u256.MustSub(amount, delta)
}

func reduceUsedEdge(fn *flownet.FlowNet, from, to flownet.Vertex, amount u256.U256) u256.U256 {
	cur := fn.UsedCapacity(from, to)
	delta := u256.Min(cur, amount)
	if delta.IsZero() {
		return u256.Zero
	}
	fn.SetUsedEdge(from, to, u256.MustSub(cur, delta))
	return delta
}

// cascadeForward retracts budget units of now-orphaned flow from v's
// outgoing used edges, smallest-capacity edge first, propagating further
// down each branch it touches.
func cascadeForward(fn *flownet.FlowNet, v flownet.Vertex, budget u256.U256) {
	for !budget.IsZero() {
		out := fn.UsedOutgoing(v)
		if len(out) == 0 {
			return
		}
		smallest := out[0]
		step := reduceUsedEdge(fn, smallest.From, smallest.To, budget)
		if step.IsZero() {
			return
		}
		budget = u256.MustSub(budget, step)
		cascadeForward(fn, smallest.To, step)
	}
}

// cascadeBackward mirrors cascadeForward, retracting from u's incoming
// used edges, smallest-capacity edge first.
func cascadeBackward(fn *flownet.FlowNet, u flownet.Vertex, budget u256.U256) {
	for !budget.IsZero() {
		in := fn.UsedIncoming(u)
		if len(in) == 0 {
			return
		}
		smallest := in[0]
		step := reduceUsedEdge(fn, smallest.From, smallest.To, budget)
		if step.IsZero() {
			return
		}
		budget = u256.MustSub(budget, step)
		cascadeBackward(fn, smallest.From, step)
	}
}

// LimitTransfers caps the number of flow-graph used edges to budget by
// repeatedly pruning the globally smallest used edge, ranked by
// (capacity, from, to) for determinism. It returns the total capacity
// lost, to be subtracted from the overall flow total.
func LimitTransfers(fn *flownet.FlowNet, budget int) u256.U256 {
	lost := u256.Zero
	for {
		used := fn.UsedEdges()
		if len(used) <= budget {
			return lost
		}

		smallest := used[0]
		for _, e := range used[1:] {
			if smaller(e, smallest) {
				smallest = e
			}
		}

		lost = u256.MustAdd(lost, smallest.Capacity)
		pruneEdge(fn, smallest.From, smallest.To, smallest.Capacity)
	}
}

func smaller(a, b flownet.UsedEdge) bool {
	if c := a.Capacity.Cmp(b.Capacity); c != 0 {
		return c < 0
	}
	if a.From != b.From {
		return a.From.Less(b.From)
	}
	return a.To.Less(b.To)
}

// distancesForward BFS-walks the used_edges subgraph forward from
// source: every used edge lies on some source-sink path by construction
// (it was discovered by an augmenting search from source to sink), so
// this measures how many used-edge hops separate a vertex from source.
func distancesForward(fn *flownet.FlowNet, source flownet.Vertex) map[flownet.Vertex]int {
	dist := map[flownet.Vertex]int{source: 0}
	queue := []flownet.Vertex{source}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, e := range fn.UsedOutgoing(u) {
			if _, ok := dist[e.To]; !ok {
				dist[e.To] = dist[u] + 1
				queue = append(queue, e.To)
			}
		}
	}
	return dist
}

// distancesBackward mirrors distancesForward, walking used_edges in
// reverse from sink.
func distancesBackward(fn *flownet.FlowNet, sink flownet.Vertex) map[flownet.Vertex]int {
	dist := map[flownet.Vertex]int{sink: 0}
	queue := []flownet.Vertex{sink}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, e := range fn.UsedIncoming(u) {
			if _, ok := dist[e.From]; !ok {
				dist[e.From] = dist[u] + 1
				queue = append(queue, e.From)
			}
		}
	}
	return dist
}
