package idgen

import (
	"sort"

	apperrors "github.com/sir-photch/notesock/internal/pkg/errors"
)

// Generator hands out unique identifiers from a bounded numeric range and
// tracks which are live. It is not internally synchronized: the paste
// server serializes every call through a single mutex.
type Generator interface {
	// Allocate returns a fresh id not currently live, marking it live. The
	// second return value is false when the range is exhausted or the
	// strategy's retry budget was exceeded.
	Allocate() (string, bool)

	// Release removes id from the live set if present, returning whether
	// it was. A malformed id returns false without error.
	Release(id string) bool
}

// parseBounds decodes and validates a [min, max) range: max is exclusive
// and unreachable, min must be strictly less than max.
func parseBounds(min, max string) (lo, hi uint64, err error) {
	lo, err = Decode(min)
	if err != nil {
		return 0, 0, apperrors.Wrapf(err, apperrors.Configuration, "id-lower %q", min)
	}
	hi, err = Decode(max)
	if err != nil {
		return 0, 0, apperrors.Wrapf(err, apperrors.Configuration, "id-upper %q", max)
	}
	if lo >= hi {
		return 0, 0, apperrors.Newf(apperrors.Configuration, "id-lower %q must be less than id-upper %q", min, max)
	}
	return lo, hi, nil
}

// decodePresent decodes present, silently dropping entries that aren't
// valid identifiers in [lo, hi) -- a directory left over from a different
// configuration is not this generator's problem to enforce.
func decodePresent(present []string, lo, hi uint64) []uint64 {
	out := make([]uint64, 0, len(present))
	for _, p := range present {
		v, err := Decode(p)
		if err != nil || v < lo || v >= hi {
			continue
		}
		out = append(out, v)
	}
	return out
}

// sortedSet is an ordered set of uint64, used to walk the live-id sequence
// when computing gaps (Strategy B) without re-sorting on every access.
type sortedSet struct {
	values []uint64
}

func newSortedSet(seed []uint64) *sortedSet {
	s := &sortedSet{values: append([]uint64(nil), seed...)}
	sort.Slice(s.values, func(i, j int) bool { return s.values[i] < s.values[j] })
	s.dedup()
	return s
}

func (s *sortedSet) dedup() {
	if len(s.values) < 2 {
		return
	}
	out := s.values[:1]
	for _, v := range s.values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	s.values = out
}

func (s *sortedSet) search(v uint64) (int, bool) {
	i := sort.Search(len(s.values), func(i int) bool { return s.values[i] >= v })
	return i, i < len(s.values) && s.values[i] == v
}

func (s *sortedSet) Has(v uint64) bool {
	_, ok := s.search(v)
	return ok
}

func (s *sortedSet) Insert(v uint64) {
	i, ok := s.search(v)
	if ok {
		return
	}
	s.values = append(s.values, 0)
	copy(s.values[i+1:], s.values[i:])
	s.values[i] = v
}

func (s *sortedSet) Remove(v uint64) bool {
	i, ok := s.search(v)
	if !ok {
		return false
	}
	s.values = append(s.values[:i], s.values[i+1:]...)
	return true
}

// Sorted returns the live values in ascending order. The caller must not
// mutate the result.
func (s *sortedSet) Sorted() []uint64 {
	return s.values
}
