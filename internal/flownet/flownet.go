// Package flownet implements the lazy 3-vertex flow-graph lift over a
// capacity-edge EdgeDB, plus the additive residual overlay used during
// max-flow. Adjacency is expanded and the residual ledger updated the
// way a classic residual-graph max-flow solver does, adapted from eager
// float64 adjacency to a lazily-computed, U256-capacitied three-vertex
// model.
package flownet

import (
	"sort"

	"pathfinder/internal/address"
	"pathfinder/internal/edgedb"
	"pathfinder/internal/u256"
)

// VertexKind distinguishes the three flow-graph vertex shapes a single
// capacity edge expands into.
type VertexKind uint8

const (
	// KindNode is the account itself.
	KindNode VertexKind = iota
	// KindBalance is addr's pool of Token.
	KindBalance
	// KindTrust is addr's intake channel for Token.
	KindTrust
)

// Vertex is a flow-graph vertex: a tagged variant over Node, BalanceNode,
// and TrustNode. Token is the zero address for KindNode.
type Vertex struct {
	Kind  VertexKind
	Addr  address.Address
	Token address.Address
}

// Node returns the account vertex for addr.
func Node(addr address.Address) Vertex { return Vertex{Kind: KindNode, Addr: addr} }

// Balance returns addr's balance-pool vertex for token.
func Balance(addr, token address.Address) Vertex {
	return Vertex{Kind: KindBalance, Addr: addr, Token: token}
}

// Trust returns addr's trust-intake vertex for token.
func Trust(addr, token address.Address) Vertex {
	return Vertex{Kind: KindTrust, Addr: addr, Token: token}
}

// Less provides the deterministic total order used as the sort tiebreak
// throughout the engine.
func (v Vertex) Less(o Vertex) bool {
	if v.Kind != o.Kind {
		return v.Kind < o.Kind
	}
	if v.Addr != o.Addr {
		return v.Addr.Less(o.Addr)
	}
	return v.Token.Less(o.Token)
}

type baseEdge struct {
	To       Vertex
	Capacity u256.U256
}

// FlowNet lifts an EdgeDB into the three-vertex flow model. Base
// adjacency is computed lazily per vertex and cached; a residual ledger
// tracks net forward usage on top of it, additively, so the base lists
// never need to be mutated.
type FlowNet struct {
	edges *edgedb.EdgeDB
	cache map[Vertex][]baseEdge

	// fwd[u][v] is the net forward usage pushed along u->v so far.
	// rev mirrors the same values indexed by destination, so Outgoing
	// can find reverse-residual targets without scanning the whole ledger.
	fwd map[Vertex]map[Vertex]u256.U256
	rev map[Vertex]map[Vertex]u256.U256
}

// New builds a FlowNet over edges. The EdgeDB is treated as immutable
// for the lifetime of the FlowNet (it is a pinned dispenser snapshot);
// only the residual ledger changes as flow is pushed.
func New(edges *edgedb.EdgeDB) *FlowNet {
	return &FlowNet{
		edges: edges,
		cache: make(map[Vertex][]baseEdge),
		fwd:   make(map[Vertex]map[Vertex]u256.U256),
		rev:   make(map[Vertex]map[Vertex]u256.U256),
	}
}

// ResidualEdge is one outgoing edge from Outgoing/Incoming, already
// reduced by the residual ledger.
type ResidualEdge struct {
	To       Vertex
	Capacity u256.U256
}

// Outgoing returns v's outgoing residual edges, filtered to positive
// capacity and sorted by descending capacity with a Vertex.Less tiebreak.
func (fn *FlowNet) Outgoing(v Vertex) []ResidualEdge {
	base := fn.baseEdges(v)

	seen := make(map[Vertex]struct{}, len(base))
	var out []ResidualEdge

	for _, be := range base {
		seen[be.To] = struct{}{}
		cap := fn.residual(v, be.To, be.Capacity)
		if !cap.IsZero() {
			out = append(out, ResidualEdge{To: be.To, Capacity: cap})
		}
	}

	// Reverse-only targets: vertices that pushed flow into v but have no
	// base edge v->that vertex (a pure reverse residual edge).
	for to := range fn.rev[v] {
		if _, ok := seen[to]; ok {
			continue
		}
		cap := fn.residual(v, to, u256.Zero)
		if !cap.IsZero() {
			out = append(out, ResidualEdge{To: to, Capacity: cap})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Capacity.Cmp(out[j].Capacity); c != 0 {
			return c > 0
		}
		return out[i].To.Less(out[j].To)
	})
	return out
}

// residual computes base(u,v) - fwd[u][v] + fwd[v][u].
func (fn *FlowNet) residual(u, v Vertex, base u256.U256) u256.U256 {
	used := fn.fwd[u][v]
	credit := fn.fwd[v][u]
	r := u256.SaturatingSub(base, used)
	return u256.MustAdd(r, credit)
}

// Residual returns the current residual capacity of the single edge u->v.
func (fn *FlowNet) Residual(u, v Vertex) u256.U256 {
	return fn.residual(u, v, fn.baseCapacityBetween(u, v))
}

func (fn *FlowNet) baseCapacityBetween(u, v Vertex) u256.U256 {
	for _, be := range fn.baseEdges(u) {
		if be.To == v {
			return be.Capacity
		}
	}
	return u256.Zero
}

// ResidualInEdge is one incoming residual edge from Incoming.
type ResidualInEdge struct {
	From     Vertex
	Capacity u256.U256
}

// Incoming returns v's incoming residual edges: the structural
// predecessors implied by the EdgeDB (the reverse of the derivation in
// baseEdges), plus any vertex that v has pushed flow to, which opens a
// reverse-residual edge back into v. Filtered to positive capacity and
// sorted by descending capacity with a Vertex.Less tiebreak.
func (fn *FlowNet) Incoming(v Vertex) []ResidualInEdge {
	candidates := make(map[Vertex]struct{})
	for _, u := range fn.structuralPredecessors(v) {
		candidates[u] = struct{}{}
	}
	for u := range fn.fwd[v] {
		candidates[u] = struct{}{}
	}

	out := make([]ResidualInEdge, 0, len(candidates))
	for u := range candidates {
		cap := fn.residual(u, v, fn.baseCapacityBetween(u, v))
		if !cap.IsZero() {
			out = append(out, ResidualInEdge{From: u, Capacity: cap})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Capacity.Cmp(out[j].Capacity); c != 0 {
			return c > 0
		}
		return out[i].From.Less(out[j].From)
	})
	return out
}

// structuralPredecessors returns the vertices that have a base edge into
// v, derived the same way baseEdges derives v's own outgoing edges but
// read in reverse.
func (fn *FlowNet) structuralPredecessors(v Vertex) []Vertex {
	switch v.Kind {
	case KindBalance:
		u := Node(v.Addr)
		for _, be := range fn.baseEdges(u) {
			if be.To == v {
				return []Vertex{u}
			}
		}
		return nil

	case KindTrust:
		var out []Vertex
		for _, e := range fn.edges.Incoming(v.Addr) {
			if e.Token == v.Token {
				out = append(out, Balance(e.From, v.Token))
			}
		}
		return out

	case KindNode:
		var out []Vertex
		seen := make(map[address.Address]bool)
		for _, e := range fn.edges.Incoming(v.Addr) {
			if !seen[e.Token] {
				seen[e.Token] = true
				out = append(out, Trust(v.Addr, e.Token))
			}
		}
		return out
	}
	return nil
}

// PushFlow pushes amount units of flow along u->v, applying a
// cancellation-aware used_edges update: if a reverse (v,u) entry already
// exists, it is reduced first (we are canceling prior flow); any
// remainder becomes new forward usage.
func (fn *FlowNet) PushFlow(u, v Vertex, amount u256.U256) {
	if amount.IsZero() {
		return
	}

	if reverse := fn.fwd[v][u]; !reverse.IsZero() {
		cancel := u256.Min(reverse, amount)
		fn.setUsed(v, u, u256.MustSub(reverse, cancel))
		amount = u256.MustSub(amount, cancel)
	}

	if !amount.IsZero() {
		fn.setUsed(u, v, u256.MustAdd(fn.fwd[u][v], amount))
	}
}

func (fn *FlowNet) setUsed(u, v Vertex, value u256.U256) {
	if value.IsZero() {
		delete(fn.fwd[u], v)
		if len(fn.fwd[u]) == 0 {
			delete(fn.fwd, u)
		}
		delete(fn.rev[v], u)
		if len(fn.rev[v]) == 0 {
			delete(fn.rev, v)
		}
		return
	}

	if fn.fwd[u] == nil {
		fn.fwd[u] = make(map[Vertex]u256.U256)
	}
	fn.fwd[u][v] = value

	if fn.rev[v] == nil {
		fn.rev[v] = make(map[Vertex]u256.U256)
	}
	fn.rev[v][u] = value
}

// UsedEdge is one nonzero entry of the used_edges ledger.
type UsedEdge struct {
	From, To Vertex
	Capacity u256.U256
}

// UsedCapacity returns the current used_edges ledger value for from->to,
// or zero if no flow is currently routed along it.
func (fn *FlowNet) UsedCapacity(from, to Vertex) u256.U256 {
	return fn.fwd[from][to]
}

// UsedOutgoing returns v's used_edges entries with From == v, sorted by
// ascending capacity (smallest first) with a Vertex.Less tiebreak, as
// required by the pruning cascade's "smallest-capacity outgoing edge"
// selection rule.
func (fn *FlowNet) UsedOutgoing(v Vertex) []UsedEdge {
	out := make([]UsedEdge, 0, len(fn.fwd[v]))
	for to, cap := range fn.fwd[v] {
		if !cap.IsZero() {
			out = append(out, UsedEdge{From: v, To: to, Capacity: cap})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Capacity.Cmp(out[j].Capacity); c != 0 {
			return c < 0
		}
		return out[i].To.Less(out[j].To)
	})
	return out
}

// UsedIncoming returns v's used_edges entries with To == v, sorted by
// ascending capacity with a Vertex.Less tiebreak.
func (fn *FlowNet) UsedIncoming(v Vertex) []UsedEdge {
	out := make([]UsedEdge, 0, len(fn.rev[v]))
	for from, cap := range fn.rev[v] {
		if !cap.IsZero() {
			out = append(out, UsedEdge{From: from, To: v, Capacity: cap})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Capacity.Cmp(out[j].Capacity); c != 0 {
			return c < 0
		}
		return out[i].From.Less(out[j].From)
	})
	return out
}

// UsedEdges returns every nonzero used_edges entry, sorted deterministically
// by (From, To). Empty entries are never stored; setUsed removes them
// immediately once their value reaches zero.
func (fn *FlowNet) UsedEdges() []UsedEdge {
	var out []UsedEdge
	for from, tos := range fn.fwd {
		for to, cap := range tos {
			if !cap.IsZero() {
				out = append(out, UsedEdge{From: from, To: to, Capacity: cap})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From.Less(out[j].From)
		}
		return out[i].To.Less(out[j].To)
	})
	return out
}

// RemoveUsedEdge deletes a single used_edges entry, used by flow pruning
// (internal/prune) when an edge is fully eliminated.
func (fn *FlowNet) RemoveUsedEdge(from, to Vertex) {
	fn.setUsed(from, to, u256.Zero)
}

// SetUsedEdge overwrites a single used_edges entry's capacity directly,
// used by flow pruning for partial edge reduction.
func (fn *FlowNet) SetUsedEdge(from, to Vertex, capacity u256.U256) {
	fn.setUsed(from, to, capacity)
}

func (fn *FlowNet) baseEdges(v Vertex) []baseEdge {
	if cached, ok := fn.cache[v]; ok {
		return cached
	}

	var out []baseEdge
	switch v.Kind {
	case KindNode:
		out = fn.nodeBaseEdges(v.Addr)
	case KindBalance:
		out = fn.balanceBaseEdges(v.Addr, v.Token)
	case KindTrust:
		out = fn.trustBaseEdges(v.Addr, v.Token)
	}

	fn.cache[v] = out
	return out
}

// nodeBaseEdges derives Node(addr) -> BalanceNode(addr, token) edges:
// one per token addr holds outgoing capacity edges for, capacity A equal
// to the max of all such edges' capacities.
func (fn *FlowNet) nodeBaseEdges(addr address.Address) []baseEdge {
	maxByToken := make(map[address.Address]u256.U256)
	var order []address.Address
	for _, e := range fn.edges.Outgoing(addr) {
		cur, ok := maxByToken[e.Token]
		if !ok {
			order = append(order, e.Token)
		}
		if !ok || e.Capacity.Cmp(cur) > 0 {
			maxByToken[e.Token] = e.Capacity
		}
	}

	out := make([]baseEdge, 0, len(order))
	for _, token := range order {
		out = append(out, baseEdge{To: Balance(addr, token), Capacity: maxByToken[token]})
	}
	return out
}

// balanceBaseEdges derives BalanceNode(addr, token) -> TrustNode(to, token)
// edges, one per distinct recipient, capacity B equal to that specific
// capacity edge's capacity.
func (fn *FlowNet) balanceBaseEdges(addr, token address.Address) []baseEdge {
	var out []baseEdge
	for _, e := range fn.edges.Outgoing(addr) {
		if e.Token != token {
			continue
		}
		out = append(out, baseEdge{To: Trust(e.To, token), Capacity: e.Capacity})
	}
	return out
}

// trustBaseEdges derives the single TrustNode(addr, token) -> Node(addr)
// edge. If token == addr (return-to-owner), capacity C is the sum of all
// incoming capacity edges of that token; otherwise it is their max.
func (fn *FlowNet) trustBaseEdges(addr, token address.Address) []baseEdge {
	sum := u256.Zero
	max := u256.Zero
	any := false
	for _, e := range fn.edges.Incoming(addr) {
		if e.Token != token {
			continue
		}
		any = true
		sum = u256.MustAdd(sum, e.Capacity)
		if e.Capacity.Cmp(max) > 0 {
			max = e.Capacity
		}
	}
	if !any {
		return nil
	}

	capacity := max
	if token == addr {
		capacity = sum
	}
	if capacity.IsZero() {
		return nil
	}
	return []baseEdge{{To: Node(addr), Capacity: capacity}}
}
