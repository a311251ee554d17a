package query

import (
	"encoding/json"
	"fmt"

	"pathfinder/internal/address"
	"pathfinder/internal/extract"
	"pathfinder/internal/u256"
)

// cachedResult is the JSON wire shape stored under a query's cache key:
// addresses and amounts as decimal/hex strings, since u256.U256 and
// address.Address carry no JSON tags of their own.
type cachedResult struct {
	Flow      string           `json:"flow"`
	Transfers []cachedTransfer `json:"transfers"`
}

type cachedTransfer struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Token    string `json:"token"`
	Capacity string `json:"capacity"`
}

func encodeCachedResult(result *ComputeResult) ([]byte, error) {
	out := cachedResult{Flow: result.Flow.String()}
	for _, t := range result.Transfers {
		out.Transfers = append(out.Transfers, cachedTransfer{
			From:     t.From.String(),
			To:       t.To.String(),
			Token:    t.Token.String(),
			Capacity: t.Capacity.String(),
		})
	}
	return json.Marshal(out)
}

func decodeCachedResult(raw []byte) (*ComputeResult, error) {
	var in cachedResult
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("query: decoding cached result: %w", err)
	}

	flow, err := u256.ParseDecimal(in.Flow)
	if err != nil {
		return nil, err
	}

	transfers := make([]extract.Transfer, len(in.Transfers))
	for i, t := range in.Transfers {
		from, err := address.Parse(t.From)
		if err != nil {
			return nil, err
		}
		to, err := address.Parse(t.To)
		if err != nil {
			return nil, err
		}
		token, err := address.Parse(t.Token)
		if err != nil {
			return nil, err
		}
		capacity, err := u256.ParseDecimal(t.Capacity)
		if err != nil {
			return nil, err
		}
		transfers[i] = extract.Transfer{From: from, To: to, Token: token, Capacity: capacity}
	}

	return &ComputeResult{Flow: flow, Transfers: transfers}, nil
}
