package idgen

import "math/rand"

// RandomGenerator implements Strategy A: a uniform draw over
// [min, max) with bounded retry on collision.
type RandomGenerator struct {
	min, max uint64
	live     map[uint64]struct{}

	// maxIter caps collision retries; 0 means unlimited.
	maxIter int

	rng *rand.Rand
}

// NewRandomGenerator constructs Strategy A, pre-populating the live set
// with the decoded, in-range subset of present.
func NewRandomGenerator(min, max string, present []string, maxIter int) (*RandomGenerator, error) {
	lo, hi, err := parseBounds(min, max)
	if err != nil {
		return nil, err
	}

	live := make(map[uint64]struct{})
	for _, v := range decodePresent(present, lo, hi) {
		live[v] = struct{}{}
	}

	return &RandomGenerator{
		min:     lo,
		max:     hi,
		live:    live,
		maxIter: maxIter,
		rng:     rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// Allocate draws a uniform id from [min, max) and retries on collision up
// to maxIter times (unlimited if maxIter <= 0).
func (g *RandomGenerator) Allocate() (string, bool) {
	span := g.max - g.min

	for attempt := 0; g.maxIter <= 0 || attempt < g.maxIter; attempt++ {
		candidate := g.min + uint64(g.rng.Int63n(int64(span)))
		if _, taken := g.live[candidate]; !taken {
			g.live[candidate] = struct{}{}
			return Encode(candidate), true
		}
	}

	return "", false
}

// LiveCount returns the number of identifiers currently marked live, for
// the capacity monitor (internal/monitor).
func (g *RandomGenerator) LiveCount() int {
	return len(g.live)
}

// Release removes id from the live set if present.
func (g *RandomGenerator) Release(id string) bool {
	v, err := Decode(id)
	if err != nil {
		return false
	}

	if _, ok := g.live[v]; !ok {
		return false
	}
	delete(g.live, v)
	return true
}
