// Package augment implements the hop-limited augmenting-path search used
// by the max-flow driver (internal/maxflow). The queue and deterministic
// neighbor-ordering idiom mirror a classic Edmonds-Karp BFS, adapted to
// the lazy three-vertex flow-graph model of internal/flownet.
package augment

import (
	"pathfinder/internal/address"
	"pathfinder/internal/flownet"
	"pathfinder/internal/u256"
)

// queue is a FIFO over flow-graph vertices: a slice with a head pointer,
// avoiding per-pop reallocation during a typical search.
type queue struct {
	data []flownet.Vertex
	head int
}

func newQueue(capacity int) *queue {
	return &queue{data: make([]flownet.Vertex, 0, capacity)}
}

func (q *queue) push(v flownet.Vertex) { q.data = append(q.data, v) }

func (q *queue) pop() flownet.Vertex {
	v := q.data[q.head]
	q.head++
	return v
}

func (q *queue) empty() bool { return q.head >= len(q.data) }

// Result is one augmenting search outcome: the bottleneck capacity along
// the discovered path, and the path itself, sink-first.
type Result struct {
	Bottleneck u256.U256
	Path       []flownet.Vertex
}

// Search performs a breadth-first search from Node(source) over fn's
// lazy adjacencies, refusing to revisit any vertex that already has a
// parent assigned. At each vertex the frontier is fn.Outgoing, which is
// already sorted by descending residual capacity with a deterministic
// tiebreak, so expansion order is reproducible.
//
// maxHops, if positive, is an account-level hop limit; since each
// account hop traverses three flow-graph edges (Node -> BalanceNode ->
// TrustNode -> Node), the flow-graph depth cap is 3*maxHops. A value of
// 0 means unlimited depth.
//
// If source == sink, Search returns a zero bottleneck and no path
// without searching.
func Search(fn *flownet.FlowNet, source, sink flownet.Vertex, maxHops int) Result {
	return SearchExcluding(fn, source, sink, maxHops, nil)
}

// SearchExcluding behaves like Search, but additionally refuses to
// expand through any Node vertex whose address is in exclude. The
// source and sink are never filtered, even if present in exclude,
// since the caller names them explicitly as the endpoints of the
// query. A nil or empty exclude set behaves exactly like Search.
func SearchExcluding(fn *flownet.FlowNet, source, sink flownet.Vertex, maxHops int, exclude map[address.Address]bool) Result {
	if source == sink {
		return Result{Bottleneck: u256.Zero}
	}

	maxDepth := -1
	if maxHops > 0 {
		maxDepth = 3 * maxHops
	}

	type frontierEntry struct {
		depth  int
		minCap u256.U256
	}

	parent := make(map[flownet.Vertex]flownet.Vertex)
	frontierAt := make(map[flownet.Vertex]frontierEntry)
	hasParent := map[flownet.Vertex]bool{source: true}

	q := newQueue(16)
	q.push(source)
	frontierAt[source] = frontierEntry{depth: 0, minCap: u256.Max}

	for !q.empty() {
		u := q.pop()
		cur := frontierAt[u]
		if maxDepth >= 0 && cur.depth >= maxDepth {
			continue
		}

		for _, e := range fn.Outgoing(u) {
			if hasParent[e.To] {
				continue
			}
			if e.To != sink && e.To.Kind == flownet.KindNode && len(exclude) > 0 && exclude[e.To.Addr] {
				continue
			}
			hasParent[e.To] = true
			parent[e.To] = u

			next := u256.Min(cur.minCap, e.Capacity)
			if e.To == sink {
				return Result{Bottleneck: next, Path: reconstructPath(parent, source, sink)}
			}

			frontierAt[e.To] = frontierEntry{depth: cur.depth + 1, minCap: next}
			q.push(e.To)
		}
	}

	return Result{Bottleneck: u256.Zero}
}

// reconstructPath walks the parent map from sink back to source,
// returning the path sink-first.
func reconstructPath(parent map[flownet.Vertex]flownet.Vertex, source, sink flownet.Vertex) []flownet.Vertex {
	path := []flownet.Vertex{sink}
	cur := sink
	for cur != source {
		cur = parent[cur]
		path = append(path, cur)
	}
	return path
}
