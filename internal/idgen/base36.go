// Package idgen implements notesock's bounded-range identifier generator:
// encode/decode of base-36 identifiers, and the two allocation strategies
// (uniform random retry, and partition-refinement with a LIFO prefetch
// buffer) that hand out unique ids within a configured [min, max) range.
package idgen

import (
	"strconv"

	apperrors "github.com/sir-photch/notesock/internal/pkg/errors"
)

const base = 36

// Encode converts n to its lowercase base-36 representation: a-z0-9, no
// leading zeros, zero encodes as "0".
func Encode(n uint64) string {
	return strconv.FormatUint(n, base)
}

// Decode parses s as a base-36 identifier. It accepts the alphabet
// case-insensitively; encoding (Encode) always produces lowercase. Returns
// a Protocol-classed AppError on an out-of-alphabet character or overflow
// of the 64-bit range.
func Decode(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.Protocol, "invalid id %q", s)
	}
	return n, nil
}
