package extract

import "pathfinder/internal/address"

// Simplify collapses A->B->C chains of matching token and capacity into
// a single A->C transfer, to a fixed point. Scans in row-major (i, j)
// order each pass so the first eligible pair found is always the one
// collapsed, keeping the result deterministic for a given input order.
func Simplify(transfers []Transfer) []Transfer {
	out := append([]Transfer(nil), transfers...)

	for {
		merged := false
		for i := range out {
			for j := range out {
				if i == j {
					continue
				}
				if out[i].To != out[j].From {
					continue
				}
				if out[i].Token != out[j].Token {
					continue
				}
				if !out[i].Capacity.Equal(out[j].Capacity) {
					continue
				}
				out[i].To = out[j].To
				out = append(out[:j], out[j+1:]...)
				merged = true
				break
			}
			if merged {
				break
			}
		}
		if !merged {
			break
		}
	}

	return out
}

// TopologicalOrder reorders transfers so that every account dispatches
// its own tokens only after it has received all of its incoming
// transfers. It is a queue-based emission: pop the front of the queue,
// emit it if the sender's remaining-incoming count has reached zero,
// otherwise push it to the back and try the next one. Deterministic
// given the input order.
func TopologicalOrder(transfers []Transfer) []Transfer {
	incoming := make(map[address.Address]int, len(transfers))
	for _, t := range transfers {
		incoming[t.To]++
	}

	queue := append([]Transfer(nil), transfers...)
	out := make([]Transfer, 0, len(transfers))

	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		if incoming[t.From] > 0 {
			queue = append(queue, t)
			continue
		}

		out = append(out, t)
		incoming[t.To]--
	}

	return out
}
