package ioformat

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"pathfinder/internal/address"
	"pathfinder/internal/edgedb"
	"pathfinder/internal/u256"
)

// collectAddresses returns the sorted, de-duplicated set of addresses
// referenced by edges (as endpoints or as a token).
func collectAddresses(edges []edgedb.Edge) []address.Address {
	seen := make(map[address.Address]bool)
	for _, e := range edges {
		seen[e.From] = true
		seen[e.To] = true
		seen[e.Token] = true
	}
	out := make([]address.Address, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// WriteEdgesBinary serializes edges to the edges binary format: an
// address index followed by the length-prefixed edge list.
func WriteEdgesBinary(w io.Writer, edges []edgedb.Edge) error {
	addrs := collectAddresses(edges)
	if err := writeAddressIndex(w, addrs); err != nil {
		return err
	}
	idx := addressIndex(addrs)

	if err := writeU32(w, uint32(len(edges))); err != nil {
		return err
	}
	for _, e := range edges {
		if err := writeU32(w, idx[e.From]); err != nil {
			return err
		}
		if err := writeU32(w, idx[e.To]); err != nil {
			return err
		}
		if err := writeU32(w, idx[e.Token]); err != nil {
			return err
		}
		if err := writeU256Compact(w, e.Capacity); err != nil {
			return err
		}
	}
	return nil
}

// ReadEdgesBinary parses the edges binary format.
func ReadEdgesBinary(r io.Reader) ([]edgedb.Edge, error) {
	addrs, err := readAddressIndex(r)
	if err != nil {
		return nil, err
	}

	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	edges := make([]edgedb.Edge, n)
	for i := range edges {
		from, err := readU32(r)
		if err != nil {
			return nil, err
		}
		to, err := readU32(r)
		if err != nil {
			return nil, err
		}
		token, err := readU32(r)
		if err != nil {
			return nil, err
		}
		capacity, err := readU256Compact(r)
		if err != nil {
			return nil, err
		}
		if int(from) >= len(addrs) || int(to) >= len(addrs) || int(token) >= len(addrs) {
			return nil, fmt.Errorf("ioformat: edge %d references out-of-range address index", i)
		}
		edges[i] = edgedb.Edge{From: addrs[from], To: addrs[to], Token: addrs[token], Capacity: capacity}
	}
	return edges, nil
}

// WriteEdgesCSV writes one "from,to,token,capacity" line per edge, all
// values unquoted: addresses as lowercase 0x-hex, capacities decimal.
func WriteEdgesCSV(w io.Writer, edges []edgedb.Edge) error {
	bw := bufio.NewWriter(w)
	for _, e := range edges {
		if _, err := fmt.Fprintf(bw, "%s,%s,%s,%s\n", e.From, e.To, e.Token, e.Capacity); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadEdgesCSV parses the edges CSV format: one edge per line, fields
// optionally wrapped in matching single or double quotes (plain
// encoding/csv only understands double quotes, so fields are split and
// unquoted by hand). Capacities may be decimal or 0x-prefixed hex.
// Blank lines are skipped.
func ReadEdgesCSV(r io.Reader) ([]edgedb.Edge, error) {
	var edges []edgedb.Edge
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("ioformat: line %d: expected 4 fields, got %d", lineNo, len(fields))
		}
		for i := range fields {
			fields[i] = unquoteCSVField(strings.TrimSpace(fields[i]))
		}

		from, err := address.Parse(fields[0])
		if err != nil {
			return nil, fmt.Errorf("ioformat: line %d: %w", lineNo, err)
		}
		to, err := address.Parse(fields[1])
		if err != nil {
			return nil, fmt.Errorf("ioformat: line %d: %w", lineNo, err)
		}
		token, err := address.Parse(fields[2])
		if err != nil {
			return nil, fmt.Errorf("ioformat: line %d: %w", lineNo, err)
		}
		capacity, err := parseCapacity(fields[3])
		if err != nil {
			return nil, fmt.Errorf("ioformat: line %d: %w", lineNo, err)
		}

		edges = append(edges, edgedb.Edge{From: from, To: to, Token: token, Capacity: capacity})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return edges, nil
}

func unquoteCSVField(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func parseCapacity(s string) (u256.U256, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return u256.ParseHex(s)
	}
	return u256.ParseDecimal(s)
}
