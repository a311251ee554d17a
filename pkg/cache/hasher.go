package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TransferQueryKey identifies the parameters of a ComputeTransfer request.
type TransferQueryKey struct {
	Version    uint64
	From       string
	To         string
	Value      string
	MaxHops    int
	MaxTransfers int
}

// QueryHash computes a deterministic cache key for a transfer query pinned
// against a specific dispenser version.
func QueryHash(k TransferQueryKey) string {
	data := queryToCanonical(k)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func queryToCanonical(k TransferQueryKey) []byte {
	return []byte(fmt.Sprintf("v:%d;f:%s;t:%s;val:%s;hops:%d;max:%d;",
		k.Version, k.From, k.To, k.Value, k.MaxHops, k.MaxTransfers))
}

// BuildSolveKey builds a cache key for a computed transfer result.
func BuildSolveKey(queryHash string) string {
	return fmt.Sprintf("transfer:%s", queryHash)
}

// BuildSolveKeyWithOptions builds a key that also accounts for a secondary
// options hash, e.g. a future extracted-transfer simplification flag.
func BuildSolveKeyWithOptions(queryHash, optionsHash string) string {
	if optionsHash == "" {
		return BuildSolveKey(queryHash)
	}
	return fmt.Sprintf("transfer:%s:%s", queryHash, optionsHash)
}

// QuickHash hashes arbitrary data, returning the full digest.
func QuickHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash hashes arbitrary data, truncated to 16 hex characters.
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
