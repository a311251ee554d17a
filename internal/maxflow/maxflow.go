// Package maxflow implements the core Ford-Fulkerson push loop (the
// augmenting-search-then-push cycle), grounded on the teacher's
// Edmonds-Karp driver: the same periodic-context-check, loop-until-zero-
// bottleneck shape, adapted to the lazy flow-graph of internal/flownet
// and the U256-capacitied augmenting search of internal/augment.
package maxflow

import (
	"context"

	"pathfinder/internal/address"
	"pathfinder/internal/augment"
	"pathfinder/internal/flownet"
	"pathfinder/internal/u256"
)

// checkInterval bounds how often the context is polled for cancellation,
// so a long-running computation on a huge graph stays responsive without
// paying a channel-select cost on every single iteration.
const checkInterval = 100

// Result is the outcome of running the max-flow push loop to completion
// (or cancellation).
type Result struct {
	TotalFlow  u256.U256
	Iterations int
	Canceled   bool
}

// Run repeatedly calls augment.Search to find an augmenting path and
// pushes its bottleneck capacity along fn, until no augmenting path
// remains or ctx is canceled. This implements the push phase only; the
// caller is responsible for any subsequent pruning, transfer-count
// reduction, and extraction.
func Run(ctx context.Context, fn *flownet.FlowNet, source, sink flownet.Vertex, maxHops int) Result {
	return RunExcluding(ctx, fn, source, sink, maxHops, nil)
}

// RunExcluding behaves like Run, but every augmenting search refuses to
// route through a Node vertex whose address is in exclude. This backs
// the exclusion-set variant of the transfer query, where the caller
// names accounts that must never appear as an intermediate hop.
func RunExcluding(ctx context.Context, fn *flownet.FlowNet, source, sink flownet.Vertex, maxHops int, exclude map[address.Address]bool) Result {
	total := u256.Zero
	iterations := 0

	for {
		if iterations%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return Result{TotalFlow: total, Iterations: iterations, Canceled: true}
			default:
			}
		}

		found := augment.SearchExcluding(fn, source, sink, maxHops, exclude)
		if found.Bottleneck.IsZero() {
			break
		}

		pushPath(fn, found.Path, found.Bottleneck)
		total = u256.MustAdd(total, found.Bottleneck)
		iterations++
	}

	return Result{TotalFlow: total, Iterations: iterations}
}

// pushPath pushes amount along every adjacent pair on path. path is
// sink-first, so path[i+1] is always the parent of path[i]: flow moves
// parent -> child, i.e. path[i+1] -> path[i].
func pushPath(fn *flownet.FlowNet, path []flownet.Vertex, amount u256.U256) {
	for i := 0; i < len(path)-1; i++ {
		child, parent := path[i], path[i+1]
		fn.PushFlow(parent, child, amount)
	}
}
