// Package extract decomposes a realized flow (a flownet.FlowNet's
// used_edges ledger) into an ordered list of atomic account-to-account
// transfers, the way converter/graph.go decomposes a residual graph's
// net flow per edge back into an externally-meaningful shape: the
// internal representation (a flow-graph ledger) is walked deterministically
// and converted into the value the caller actually wants (a transfer
// list), never by reaching into the ledger's internals from outside this
// package.
package extract

import (
	"fmt"

	"pathfinder/internal/address"
	"pathfinder/internal/flownet"
	"pathfinder/internal/u256"
)

// Transfer is one atomic account-to-account movement of a single token.
type Transfer struct {
	From     address.Address
	To       address.Address
	Token    address.Address
	Capacity u256.U256
}

// Extract decomposes fn's used_edges into a sequence of transfers that
// together move amount from source to sink. Each iteration picks the
// admissible Balance->Trust used edge with the smallest capacity (ties
// broken on vertex identity) whose account still holds enough balance
// to cover it, emits it as a transfer, and removes it from the ledger.
func Extract(fn *flownet.FlowNet, source, sink flownet.Vertex, amount u256.U256) ([]Transfer, error) {
	balances := map[address.Address]u256.U256{source.Addr: amount}
	var transfers []Transfer

	for !settled(balances, sink, amount) {
		edge, ok := pickAdmissible(fn, balances)
		if !ok {
			return nil, fmt.Errorf("extract: no admissible edge for balances %v", balances)
		}

		transfers = append(transfers, Transfer{
			From:     edge.From.Addr,
			To:       edge.To.Addr,
			Token:    edge.From.Token,
			Capacity: edge.Capacity,
		})

		debit(balances, edge.From.Addr, edge.Capacity)
		credit(balances, edge.To.Addr, edge.Capacity)
		fn.RemoveUsedEdge(edge.From, edge.To)
	}

	return transfers, nil
}

// settled reports whether balances has converged to its terminal state:
// every unit of amount sitting at sink and nowhere else.
func settled(balances map[address.Address]u256.U256, sink flownet.Vertex, amount u256.U256) bool {
	if len(balances) == 0 {
		return true
	}
	if len(balances) != 1 {
		return false
	}
	v, ok := balances[sink.Addr]
	return ok && v.Equal(amount)
}

// pickAdmissible scans every Balance->Trust used edge (the flow-graph
// shape of one account-to-account transfer) and returns the one with
// the smallest capacity whose source account's remaining balance can
// cover it, breaking ties on vertex identity for determinism.
func pickAdmissible(fn *flownet.FlowNet, balances map[address.Address]u256.U256) (flownet.UsedEdge, bool) {
	var best flownet.UsedEdge
	found := false

	for _, e := range fn.UsedEdges() {
		if e.From.Kind != flownet.KindBalance || e.To.Kind != flownet.KindTrust {
			continue
		}
		bal, ok := balances[e.From.Addr]
		if !ok || bal.Cmp(e.Capacity) < 0 {
			continue
		}
		if !found || lessEdge(e, best) {
			best = e
			found = true
		}
	}

	return best, found
}

func lessEdge(a, b flownet.UsedEdge) bool {
	if c := a.Capacity.Cmp(b.Capacity); c != 0 {
		return c < 0
	}
	if a.From != b.From {
		return a.From.Less(b.From)
	}
	return a.To.Less(b.To)
}

func debit(balances map[address.Address]u256.U256, addr address.Address, amount u256.U256) {
	remaining := u256.MustSub(balances[addr], amount)
	if remaining.IsZero() {
		delete(balances, addr)
		return
	}
	balances[addr] = remaining
}

func credit(balances map[address.Address]u256.U256, addr address.Address, amount u256.U256) {
	balances[addr] = u256.MustAdd(balances[addr], amount)
}
