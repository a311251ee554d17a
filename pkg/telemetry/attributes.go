package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute keys.
const (
	// Query
	AttrQueryFrom     = "query.from"
	AttrQueryTo       = "query.to"
	AttrQueryValue    = "query.value"
	AttrQueryMaxHops  = "query.max_hops"
	AttrQueryMaxTransfers = "query.max_transfers"

	// Snapshot dispenser
	AttrDispenserVersion     = "dispenser.version"
	AttrDispenserPinnedReads = "dispenser.pinned_reads"

	// Path search
	AttrAugmentingPaths = "search.augmenting_paths"
	AttrHopsUsed        = "search.hops_used"
	AttrMaxFlowApprox   = "search.max_flow_approx"

	// Transfer extraction
	AttrPrunedEdges     = "extract.pruned_edges"
	AttrTransfersEmitted = "extract.transfers_emitted"
)

// QueryAttributes returns the attributes for an incoming transfer query.
func QueryAttributes(from, to, value string, maxHops, maxTransfers int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrQueryFrom, from),
		attribute.String(AttrQueryTo, to),
		attribute.String(AttrQueryValue, value),
		attribute.Int(AttrQueryMaxHops, maxHops),
		attribute.Int(AttrQueryMaxTransfers, maxTransfers),
	}
}

// DispenserAttributes returns the attributes for a pinned dispenser snapshot.
func DispenserAttributes(version uint64, pinnedReads int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrDispenserVersion, int64(version)),
		attribute.Int(AttrDispenserPinnedReads, pinnedReads),
	}
}

// SearchAttributes returns the attributes for an augmenting-path search.
func SearchAttributes(paths, hopsUsed int, maxFlowApprox float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrAugmentingPaths, paths),
		attribute.Int(AttrHopsUsed, hopsUsed),
		attribute.Float64(AttrMaxFlowApprox, maxFlowApprox),
	}
}

// ExtractAttributes returns the attributes for transfer extraction and simplification.
func ExtractAttributes(prunedEdges, transfersEmitted int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrPrunedEdges, prunedEdges),
		attribute.Int(AttrTransfersEmitted, transfersEmitted),
	}
}
