// Package query implements the request handler that ties the engine's
// pipeline stages together into the three operations the wire transport
// exposes: compute a transitive transfer, load a safes snapshot, and
// apply an edge update. The validate -> cache -> compute -> record
// lifecycle mirrors the teacher's SolverService request handling, with
// the dispenser pin/release replacing the teacher's direct store access.
package query

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"pathfinder/internal/accountdb"
	"pathfinder/internal/address"
	"pathfinder/internal/dispenser"
	"pathfinder/internal/edgedb"
	"pathfinder/internal/extract"
	"pathfinder/internal/flownet"
	"pathfinder/internal/ioformat"
	"pathfinder/internal/maxflow"
	"pathfinder/internal/prune"
	"pathfinder/internal/u256"
	"pathfinder/pkg/apperror"
	"pathfinder/pkg/audit"
	"pathfinder/pkg/cache"
	"pathfinder/pkg/logger"
	"pathfinder/pkg/metrics"
	"pathfinder/pkg/telemetry"
)

// ComputeRequest is the decoded form of a compute_transfer query.
type ComputeRequest struct {
	From         address.Address
	To           address.Address
	Value        u256.U256
	MaxHops      int
	MaxTransfers int

	// Exclude, if non-empty, names accounts the augmenting search must
	// never route through as an intermediate hop. Supplemental to
	// spec.md: ported from the original compute_transfer's
	// excludedFrom/excludedTo parameters.
	Exclude map[address.Address]bool
}

// ComputeResult is the outcome of a compute_transfer query.
type ComputeResult struct {
	Flow      u256.U256
	Transfers []extract.Transfer
}

// Handler serves compute_transfer, load_safes_binary, and update_edges
// requests against a pinned dispenser snapshot. A Handler is safe for
// concurrent use; each ComputeTransfer call pins its own version.
type Handler struct {
	dispenser *dispenser.Dispenser
	accounts  *accountdb.AccountDB
	cache     cache.Cache
	audit     audit.Logger
	serviceName string
}

// New creates a Handler. accounts holds the mutable trust/balance store
// that LoadSafesBinary replaces before re-deriving and publishing a fresh
// edge snapshot (UpdateEdges does not touch it); d is the dispenser
// readers pin against.
func New(d *dispenser.Dispenser, accounts *accountdb.AccountDB, c cache.Cache, serviceName string) *Handler {
	return &Handler{dispenser: d, accounts: accounts, cache: c, serviceName: serviceName}
}

// SetAuditLogger attaches an audit logger recording one entry per query.
func (h *Handler) SetAuditLogger(l audit.Logger) {
	h.audit = l
}

// ComputeTransfer runs the full pipeline — search, prune, extract,
// simplify, order — against the currently published snapshot. It is
// the one synchronous, non-preemptible unit of work a server.Pool
// worker runs per request: ctx cancellation is only checked between
// max-flow iterations, never mid-pipeline-stage.
func (h *Handler) ComputeTransfer(ctx context.Context, req ComputeRequest) (*ComputeResult, error) {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "query.ComputeTransfer")
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.QueryAttributes(
		req.From.String(), req.To.String(), req.Value.String(), req.MaxHops, req.MaxTransfers)...)

	version, edges := h.dispenser.PinLatest()
	defer h.dispenser.Release(version)
	if edges == nil {
		return nil, h.fail(ctx, req, start, apperror.ErrNotReady)
	}

	key := cache.QueryHash(cache.TransferQueryKey{
		Version:      version,
		From:         req.From.String(),
		To:           req.To.String(),
		Value:        req.Value.String(),
		MaxHops:      req.MaxHops,
		MaxTransfers: req.MaxTransfers,
	})
	// The cache key does not cover Exclude, so queries with an exclusion
	// set neither read nor fill the cache.
	useCache := h.cache != nil && len(req.Exclude) == 0
	if useCache {
		if cached, ok, err := h.lookupCache(ctx, key); err == nil && ok {
			return cached, nil
		}
	}

	result, err := h.compute(ctx, edges, req)
	if err != nil {
		return nil, h.fail(ctx, req, start, err)
	}

	h.succeed(ctx, req, start, result)
	if useCache {
		h.storeCache(ctx, key, result)
	}
	return result, nil
}

func (h *Handler) compute(ctx context.Context, edges *edgedb.EdgeDB, req ComputeRequest) (*ComputeResult, error) {
	fn := flownet.New(edges)
	source, sink := flownet.Node(req.From), flownet.Node(req.To)

	fr := maxflow.RunExcluding(ctx, fn, source, sink, req.MaxHops, req.Exclude)
	if fr.Canceled {
		return nil, apperror.Wrap(ctx.Err(), apperror.CodeInvariantViolation, "compute_transfer canceled mid-flight")
	}

	flow := u256.Min(fr.TotalFlow, req.Value)
	if toRemove := u256.SaturatingSub(fr.TotalFlow, flow); !toRemove.IsZero() {
		if remaining := prune.Reduce(fn, source, sink, toRemove); !remaining.IsZero() {
			return nil, apperror.New(apperror.CodeInvariantViolation, "flow reduction left unpruned residual")
		}
	}

	if req.MaxTransfers > 0 {
		// Each account-level transfer hop lowers to 3 flow-graph edges
		// (Node -> Balance -> Trust -> Node), so the edge budget LimitTransfers
		// prunes against is 3x the caller's account-hop transfer count.
		lost := prune.LimitTransfers(fn, 3*req.MaxTransfers)
		flow = u256.SaturatingSub(flow, lost)
	}

	var transfers []extract.Transfer
	if !flow.IsZero() {
		var err error
		transfers, err = extract.Extract(fn, source, sink, flow)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvariantViolation, "transfer extraction failed")
		}
		transfers = extract.Simplify(transfers)
		transfers = extract.TopologicalOrder(transfers)
	}

	telemetry.SetAttributes(ctx, telemetry.ExtractAttributes(0, len(transfers))...)
	metrics.Get().RecordPipelineCounts(fr.Iterations, 0, len(transfers))

	return &ComputeResult{Flow: flow, Transfers: transfers}, nil
}

func (h *Handler) lookupCache(ctx context.Context, key string) (*ComputeResult, bool, error) {
	raw, err := h.cache.Get(ctx, cache.BuildSolveKey(key))
	if err != nil {
		return nil, false, err
	}
	result, err := decodeCachedResult(raw)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

func (h *Handler) storeCache(ctx context.Context, key string, result *ComputeResult) {
	raw, err := encodeCachedResult(result)
	if err != nil {
		return
	}
	_ = h.cache.Set(ctx, cache.BuildSolveKey(key), raw, 0)
}

func (h *Handler) fail(ctx context.Context, req ComputeRequest, start time.Time, err error) error {
	appErr := apperror.FromError(err)
	telemetry.SetError(ctx, appErr)
	metrics.Get().RecordQuery(false, time.Since(start), 0, req.From.String()+"->"+req.To.String())
	h.logAudit(ctx, req, start, false, appErr.Error(), u256.Zero, 0)
	logger.Log.Warn("compute_transfer failed", "from", req.From, "to", req.To, "error", appErr)
	return appErr
}

func (h *Handler) succeed(ctx context.Context, req ComputeRequest, start time.Time, result *ComputeResult) {
	metrics.Get().RecordQuery(true, time.Since(start), flowFloat(result.Flow), req.From.String()+"->"+req.To.String())
	h.logAudit(ctx, req, start, true, "", result.Flow, len(result.Transfers))
}

func (h *Handler) logAudit(ctx context.Context, req ComputeRequest, start time.Time, success bool, errMsg string, flow u256.U256, transferCount int) {
	if h.audit == nil {
		return
	}
	outcome := audit.OutcomeSuccess
	if !success {
		outcome = audit.OutcomeFailure
	}
	entry := audit.NewEntry().
		Service(h.serviceName).
		Method("compute_transfer").
		Action(audit.ActionSolve).
		Outcome(outcome).
		Duration(time.Since(start)).
		Meta("from", req.From.String()).
		Meta("to", req.To.String()).
		Meta("requested_value", req.Value.String()).
		Meta("realized_flow", flow.String()).
		Meta("transfer_count", transferCount).
		Build()
	if errMsg != "" {
		entry.ErrorMessage = errMsg
	}
	if err := h.audit.Log(ctx, entry); err != nil {
		logger.Log.Warn("failed to log audit entry", "error", err)
	}
}

// LoadSafesBinary replaces the account store from a safes binary
// payload, re-derives the capacity edges, and publishes a new dispenser
// version. Returns the edge count of the newly published snapshot.
func (h *Handler) LoadSafesBinary(ctx context.Context, payload []byte) (int, error) {
	_, span := telemetry.StartSpan(ctx, "query.LoadSafesBinary")
	defer span.End()

	db, err := ioformat.ReadSafes(bytes.NewReader(payload))
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeMalformedFormat, "failed to parse safes payload")
	}

	h.accounts = db
	derived := db.DeriveEdges()
	version := h.dispenser.Publish(edgedb.New(derived))
	logger.Log.Info("published snapshot from safes payload", "version", version, "accounts", db.Len(), "edges", len(derived))
	return len(derived), nil
}

// UpdateEdges applies upserts by (from,to,token) identity onto the
// currently-pinned snapshot, then publishes the merged result; edges not
// named in the update are left untouched. Returns the total edge count of
// the newly published snapshot.
func (h *Handler) UpdateEdges(ctx context.Context, edges []edgedb.Edge) (int, error) {
	_, span := telemetry.StartSpan(ctx, "query.UpdateEdges")
	defer span.End()

	version, current := h.dispenser.PinLatest()
	defer h.dispenser.Release(version)

	merged := edgedb.New(nil)
	if current != nil {
		for _, e := range current.All() {
			merged.Update(*e)
		}
	}
	for _, e := range edges {
		merged.Update(e)
	}

	newVersion := h.dispenser.Publish(merged)
	count := merged.EdgeCount()
	logger.Log.Info("published snapshot from edge update", "version", newVersion, "edges", count)
	return count, nil
}

// flowFloat approximates a flow value for the max_flow_value gauge,
// which only needs magnitude for dashboards, not exact precision.
func flowFloat(v u256.U256) float64 {
	f, err := strconv.ParseFloat(v.String(), 64)
	if err != nil {
		return 0
	}
	return f
}
