// Package ioformat implements the binary and CSV wire formats the
// engine's external collaborators (snapshot loaders, edge-update
// feeds) use to hand data across the process boundary. There is no
// ecosystem 256-bit wire codec in the corpus this engine was built
// from, so the format is read and written directly against
// encoding/binary, big-endian throughout, matching the documented
// on-disk layout byte for byte.
package ioformat

import (
	"encoding/binary"
	"fmt"
	"io"

	"pathfinder/internal/address"
	"pathfinder/internal/u256"
)

// writeAddressIndex writes the u32-length-prefixed address table shared
// by both the safes and edges binary formats.
func writeAddressIndex(w io.Writer, addrs []address.Address) error {
	if err := writeU32(w, uint32(len(addrs))); err != nil {
		return err
	}
	for _, a := range addrs {
		if _, err := w.Write(a[:]); err != nil {
			return err
		}
	}
	return nil
}

// readAddressIndex reads the address table, returning it in file order
// so later u32 indices can be resolved by simple slice lookup.
func readAddressIndex(r io.Reader) ([]address.Address, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]address.Address, n)
	for i := range out {
		if _, err := io.ReadFull(r, out[i][:]); err != nil {
			return nil, fmt.Errorf("ioformat: reading address %d: %w", i, err)
		}
	}
	return out, nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func readU8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// writeU256Compact writes the length-prefixed minimal big-endian form:
// a single length byte followed by that many bytes with leading zeros
// suppressed. The zero value encodes as a bare zero-length prefix.
func writeU256Compact(w io.Writer, v u256.U256) error {
	full := v.Bytes()
	start := 0
	for start < len(full) && full[start] == 0 {
		start++
	}
	trimmed := full[start:]
	if err := writeU8(w, uint8(len(trimmed))); err != nil {
		return err
	}
	_, err := w.Write(trimmed)
	return err
}

func readU256Compact(r io.Reader) (u256.U256, error) {
	n, err := readU8(r)
	if err != nil {
		return u256.Zero, err
	}
	if n > 32 {
		return u256.Zero, fmt.Errorf("ioformat: u256 length %d exceeds 32 bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return u256.Zero, err
	}
	return u256.FromBytes(buf)
}

func addressIndex(addrs []address.Address) map[address.Address]uint32 {
	idx := make(map[address.Address]uint32, len(addrs))
	for i, a := range addrs {
		idx[a] = uint32(i)
	}
	return idx
}
