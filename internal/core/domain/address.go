package domain

import (
	"strings"

	"golang.org/x/crypto/sha3"
)

// ChecksumAddress formats a hex address with an EIP-55 mixed-case checksum.
// Input may be any case, with or without the 0x prefix.
func ChecksumAddress(addr string) string {
	a := strings.ToLower(strings.TrimPrefix(addr, "0x"))

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(a))
	hash := h.Sum(nil)

	out := []byte(a)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := hash[i/2] >> 4
		if i%2 == 1 {
			nibble = hash[i/2] & 0x0f
		}
		if nibble >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

// AddressSet is a fixed membership set of addresses, case-insensitive.
type AddressSet map[string]struct{}

// NewAddressSet builds a set from a list of addresses in any case.
func NewAddressSet(addrs []string) AddressSet {
	s := make(AddressSet, len(addrs))
	for _, a := range addrs {
		s[strings.ToLower(a)] = struct{}{}
	}
	return s
}

// Contains reports membership regardless of the address case.
func (s AddressSet) Contains(addr string) bool {
	_, ok := s[strings.ToLower(addr)]
	return ok
}

// Size returns the number of addresses in the set.
func (s AddressSet) Size() int {
	return len(s)
}
