package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"pathfinder/internal/address"
	"pathfinder/internal/edgedb"
	"pathfinder/internal/query"
	"pathfinder/internal/u256"
	"pathfinder/pkg/apperror"
)

// computeTransferParams is the wire shape of a compute_transfer request.
// Addresses are 0x-prefixed hex; value defaults to "unlimited" (u256.Max)
// when omitted, mirroring the library's own optional Value semantics.
type computeTransferParams struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	Value        string   `json:"value,omitempty"`
	MaxHops      int      `json:"max_hops,omitempty"`
	MaxTransfers int      `json:"max_transfers,omitempty"`
	Exclude      []string `json:"exclude,omitempty"`
}

type transferWire struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Token    string `json:"token"`
	Capacity string `json:"capacity"`
}

type computeTransferResult struct {
	Flow      string         `json:"flow"`
	Transfers []transferWire `json:"transfers"`
}

type loadSafesBinaryParams struct {
	PayloadBase64 string `json:"payload_base64"`
}

type updateEdgesParams struct {
	Edges []edgeWire `json:"edges"`
}

type edgeWire struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Token    string `json:"token"`
	Capacity string `json:"capacity"`
}

// loadSafesBinaryResult is load_safes_binary's spec.md §6.1 response shape.
type loadSafesBinaryResult struct {
	EdgeCount int `json:"edge_count"`
}

// updateEdgesResult is update_edges's spec.md §6.1 response shape.
type updateEdgesResult struct {
	NewEdgeCount int `json:"new_edge_count"`
}

// dispatch adapts query.Handler's typed methods to the server.Handler
// signature, decoding each method's params from the wire shapes above.
func dispatch(h *query.Handler) func(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return func(ctx context.Context, method string, params json.RawMessage) (any, error) {
		switch method {
		case "compute_transfer":
			return dispatchComputeTransfer(ctx, h, params)
		case "load_safes_binary":
			return dispatchLoadSafesBinary(ctx, h, params)
		case "update_edges":
			return dispatchUpdateEdges(ctx, h, params)
		default:
			return nil, apperror.New(apperror.CodeUnknownMethod, fmt.Sprintf("unknown method %q", method))
		}
	}
}

func dispatchComputeTransfer(ctx context.Context, h *query.Handler, raw json.RawMessage) (any, error) {
	var p computeTransferParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMalformedFormat, "invalid compute_transfer params")
	}

	from, err := address.Parse(p.From)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidAddress, "invalid from address")
	}
	to, err := address.Parse(p.To)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidAddress, "invalid to address")
	}

	value := u256.Max
	if p.Value != "" {
		value, err = u256.ParseDecimal(p.Value)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidAmount, "invalid value")
		}
	}

	var exclude map[address.Address]bool
	if len(p.Exclude) > 0 {
		exclude = make(map[address.Address]bool, len(p.Exclude))
		for _, s := range p.Exclude {
			a, err := address.Parse(s)
			if err != nil {
				return nil, apperror.Wrap(err, apperror.CodeInvalidAddress, "invalid exclude address")
			}
			exclude[a] = true
		}
	}

	result, err := h.ComputeTransfer(ctx, query.ComputeRequest{
		From:         from,
		To:           to,
		Value:        value,
		MaxHops:      p.MaxHops,
		MaxTransfers: p.MaxTransfers,
		Exclude:      exclude,
	})
	if err != nil {
		return nil, err
	}

	out := computeTransferResult{Flow: result.Flow.String()}
	for _, t := range result.Transfers {
		out.Transfers = append(out.Transfers, transferWire{
			From:     t.From.String(),
			To:       t.To.String(),
			Token:    t.Token.String(),
			Capacity: t.Capacity.String(),
		})
	}
	return out, nil
}

func dispatchLoadSafesBinary(ctx context.Context, h *query.Handler, raw json.RawMessage) (any, error) {
	var p loadSafesBinaryParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMalformedFormat, "invalid load_safes_binary params")
	}

	payload, err := base64.StdEncoding.DecodeString(p.PayloadBase64)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMalformedFormat, "invalid base64 payload")
	}

	edgeCount, err := h.LoadSafesBinary(ctx, payload)
	if err != nil {
		return nil, err
	}
	return loadSafesBinaryResult{EdgeCount: edgeCount}, nil
}

func dispatchUpdateEdges(ctx context.Context, h *query.Handler, raw json.RawMessage) (any, error) {
	var p updateEdgesParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMalformedFormat, "invalid update_edges params")
	}

	edges := make([]edgedb.Edge, len(p.Edges))
	for i, e := range p.Edges {
		from, err := address.Parse(e.From)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidAddress, "invalid edge from address")
		}
		to, err := address.Parse(e.To)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidAddress, "invalid edge to address")
		}
		token, err := address.Parse(e.Token)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidAddress, "invalid edge token address")
		}
		capacity, err := u256.ParseDecimal(e.Capacity)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidAmount, "invalid edge capacity")
		}
		edges[i] = edgedb.Edge{From: from, To: to, Token: token, Capacity: capacity}
	}

	newEdgeCount, err := h.UpdateEdges(ctx, edges)
	if err != nil {
		return nil, err
	}
	return updateEdgesResult{NewEdgeCount: newEdgeCount}, nil
}
