// Package edgedb implements the indexed capacity-edge container: a
// directed multigraph over accounts with forward and reverse adjacency
// indices keyed by address.
package edgedb

import (
	"sort"

	"pathfinder/internal/address"
	"pathfinder/internal/u256"
)

// Edge is a capacity edge (from, to, token, capacity) in the capacity
// network derived from account trust/balance state.
type Edge struct {
	From     address.Address
	To       address.Address
	Token    address.Address
	Capacity u256.U256
}

type key struct {
	From, To, Token address.Address
}

// EdgeDB is the indexed edge container. Updates replace by (from,to,token)
// identity; capacity is not part of the identity. No edge is ever removed —
// a zero-capacity edge is preserved but hidden from Outgoing/Incoming.
type EdgeDB struct {
	edges   []*Edge
	index   map[key]*Edge
	forward map[address.Address][]*Edge
	reverse map[address.Address][]*Edge
}

// New builds an EdgeDB from an initial edge set, constructing forward and
// reverse adjacency in one pass.
func New(edges []Edge) *EdgeDB {
	db := &EdgeDB{
		index:   make(map[key]*Edge, len(edges)),
		forward: make(map[address.Address][]*Edge),
		reverse: make(map[address.Address][]*Edge),
	}
	for _, e := range edges {
		db.Update(e)
	}
	return db
}

// Update upserts an edge by (from,to,token) identity: if a matching edge
// exists its capacity is overwritten, otherwise the edge is appended and
// indexed.
func (db *EdgeDB) Update(e Edge) {
	k := key{From: e.From, To: e.To, Token: e.Token}
	if existing, ok := db.index[k]; ok {
		existing.Capacity = e.Capacity
		return
	}

	stored := &Edge{From: e.From, To: e.To, Token: e.Token, Capacity: e.Capacity}
	db.edges = append(db.edges, stored)
	db.index[k] = stored
	db.forward[e.From] = append(db.forward[e.From], stored)
	db.reverse[e.To] = append(db.reverse[e.To], stored)
}

// Outgoing returns the edges leaving addr with positive capacity, sorted
// by descending capacity with a deterministic address tiebreak.
func (db *EdgeDB) Outgoing(addr address.Address) []*Edge {
	return visible(db.forward[addr], func(e *Edge) address.Address { return e.To })
}

// Incoming returns the edges arriving at addr with positive capacity,
// sorted by descending capacity with a deterministic address tiebreak.
func (db *EdgeDB) Incoming(addr address.Address) []*Edge {
	return visible(db.reverse[addr], func(e *Edge) address.Address { return e.From })
}

func visible(all []*Edge, tiebreakVertex func(*Edge) address.Address) []*Edge {
	out := make([]*Edge, 0, len(all))
	for _, e := range all {
		if !e.Capacity.IsZero() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Capacity.Cmp(out[j].Capacity); c != 0 {
			return c > 0
		}
		return tiebreakVertex(out[i]).Less(tiebreakVertex(out[j]))
	})
	return out
}

// EdgeCount returns the total number of stored edges, including those
// currently hidden by zero capacity.
func (db *EdgeDB) EdgeCount() int {
	return len(db.edges)
}

// All returns every stored edge, including zero-capacity ones, in
// insertion order. Used by the binary/CSV codec (internal/ioformat) to
// serialize a full snapshot.
func (db *EdgeDB) All() []*Edge {
	return db.edges
}
