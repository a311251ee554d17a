// Package address implements the 20-byte account identifier used
// throughout the engine, along with hex parsing/formatting and the
// EIP-55 mixed-case checksum used when presenting addresses externally.
package address

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Length is the number of bytes in an Address.
const Length = 20

// Address is a 20-byte account identifier. The zero value is the
// all-zero address, used nowhere as a valid account.
type Address [Length]byte

// Zero is the all-zero address.
var Zero Address

// Less provides a deterministic total order over addresses, used as
// the tiebreak in every sort the engine performs (spec invariant:
// identical inputs must yield identical transfer lists).
func (a Address) Less(b Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// String returns the lowercase "0x"-prefixed hex form.
func (a Address) String() string {
	return "0x" + lowerHex(a[:])
}

// Checksum returns the EIP-55 mixed-case checksummed hex form.
func (a Address) Checksum() string {
	hexStr := lowerHex(a[:])
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(hexStr))
	digest := hash.Sum(nil)

	var b strings.Builder
	b.WriteString("0x")
	for i := 0; i < len(hexStr); i++ {
		c := hexStr[i]
		if c >= 'a' && c <= 'f' {
			// Nibble i of the hash: high nibble for even i, low for odd.
			nibble := digest[i/2]
			if i%2 == 0 {
				nibble >>= 4
			} else {
				nibble &= 0x0f
			}
			if nibble >= 8 {
				c -= 'a' - 'A'
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func lowerHex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0x0f]
	}
	return string(out)
}

// Parse parses a 42-character "0x..." hex address, in either lowercase
// or EIP-55 checksummed form. The checksum, if mixed-case, is not
// verified here — verification is a separate, explicit step (VerifyChecksum)
// since most internal call sites only need the raw bytes.
func Parse(s string) (Address, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) != Length*2 {
		return Address{}, fmt.Errorf("address: %q is not %d hex digits", s, Length*2)
	}

	var a Address
	for i := 0; i < Length; i++ {
		hi, err := hexDigit(s[2*i])
		if err != nil {
			return Address{}, err
		}
		lo, err := hexDigit(s[2*i+1])
		if err != nil {
			return Address{}, err
		}
		a[i] = hi<<4 | lo
	}
	return a, nil
}

// VerifyChecksum reports whether a mixed-case address string matches
// the EIP-55 checksum of its own bytes. An all-lowercase or all-uppercase
// string is considered unchecksummed and always passes.
func VerifyChecksum(s string) (bool, error) {
	a, err := Parse(s)
	if err != nil {
		return false, err
	}

	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if trimmed == strings.ToLower(trimmed) || trimmed == strings.ToUpper(trimmed) {
		return true, nil
	}

	want := strings.TrimPrefix(a.Checksum(), "0x")
	return trimmed == want, nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("address: invalid hex digit %q", c)
	}
}
