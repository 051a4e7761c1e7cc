package idgen

import "math/rand"

// CandidateMode selects how PartitionGenerator picks a value inside a gap
// wider than 2.
type CandidateMode int

const (
	// CandidateRandom draws a uniform value from the open interval (lo, up).
	CandidateRandom CandidateMode = iota
	// CandidateDeterministic always takes the gap's midpoint.
	CandidateDeterministic
)

// PartitionGenerator implements Strategy B: gap-refinement with a
// LIFO prefetch buffer, maximizing the minimum distance between live ids.
type PartitionGenerator struct {
	min, max uint64
	live     *sortedSet

	// cache is the prefetch buffer, used as a stack: Allocate pops from
	// the end, so the most recently generated (widest-gap) candidate comes
	// out first.
	cache []uint64

	maxPregenSize int
	mode          CandidateMode

	rng *rand.Rand
}

// NewPartitionGenerator constructs Strategy B. When present is empty, one
// random seed id in [min, max) is chosen and placed in both the live set
// and the prefetch buffer, matching the source's bootstrap behavior.
func NewPartitionGenerator(min, max string, present []string, maxPregenSize int, mode CandidateMode) (*PartitionGenerator, error) {
	lo, hi, err := parseBounds(min, max)
	if err != nil {
		return nil, err
	}

	if maxPregenSize <= 0 {
		maxPregenSize = int(^uint(0) >> 1) // unbounded
	}

	g := &PartitionGenerator{
		min:           lo,
		max:           hi,
		maxPregenSize: maxPregenSize,
		mode:          mode,
		rng:           rand.New(rand.NewSource(rand.Int63())),
	}

	decoded := decodePresent(present, lo, hi)
	if len(decoded) == 0 {
		seed := lo + uint64(g.rng.Int63n(int64(hi-lo)))
		g.live = newSortedSet([]uint64{seed})
		g.cache = []uint64{seed}
	} else {
		g.live = newSortedSet(decoded)
	}

	return g, nil
}

// Allocate pops the widest-gap candidate off the prefetch buffer,
// refilling it first if empty.
func (g *PartitionGenerator) Allocate() (string, bool) {
	if len(g.cache) == 0 && !g.refill() {
		return "", false
	}

	id := g.cache[len(g.cache)-1]
	g.cache = g.cache[:len(g.cache)-1]
	return Encode(id), true
}

// LiveCount returns the number of identifiers currently marked live,
// including ones still sitting unreturned in the prefetch buffer, for the
// capacity monitor (internal/monitor).
func (g *PartitionGenerator) LiveCount() int {
	return len(g.live.Sorted())
}

// Release removes id from the live set if present. Ids still sitting in
// the prefetch buffer are never passed here in normal operation (the
// generator assumes callers only release ids returned by Allocate).
func (g *PartitionGenerator) Release(id string) bool {
	v, err := Decode(id)
	if err != nil {
		return false
	}
	return g.live.Remove(v)
}

type gap struct {
	lo, up uint64
}

func (gp gap) width() uint64 { return gp.up - gp.lo }

// refill walks [min, live..., max], keeps gaps wider than 1, takes the
// maxPregenSize widest, and generates one candidate per kept gap.
func (g *PartitionGenerator) refill() bool {
	seq := make([]uint64, 0, len(g.live.Sorted())+2)
	seq = append(seq, g.min)
	seq = append(seq, g.live.Sorted()...)
	seq = append(seq, g.max)

	gaps := make([]gap, 0, len(seq))
	for i := 0; i+1 < len(seq); i++ {
		gp := gap{lo: seq[i], up: seq[i+1]}
		if gp.width() > 1 {
			gaps = append(gaps, gp)
		}
	}

	if len(gaps) == 0 {
		return false
	}

	// Descending by width, then keep the widest maxPregenSize.
	for i := 1; i < len(gaps); i++ {
		for j := i; j > 0 && gaps[j-1].width() < gaps[j].width(); j-- {
			gaps[j-1], gaps[j] = gaps[j], gaps[j-1]
		}
	}
	if len(gaps) > g.maxPregenSize {
		gaps = gaps[:g.maxPregenSize]
	}

	// Reverse to ascending width, so pushing onto the stack in this order
	// leaves the widest gap's candidate on top.
	for i, j := 0, len(gaps)-1; i < j; i, j = i+1, j-1 {
		gaps[i], gaps[j] = gaps[j], gaps[i]
	}

	for _, gp := range gaps {
		var candidate uint64
		switch {
		case gp.width() == 2:
			candidate = gp.lo + 1
		case g.mode == CandidateRandom:
			candidate = gp.lo + 1 + uint64(g.rng.Int63n(int64(gp.width()-1)))
		default:
			candidate = (gp.lo + gp.up) / 2
		}

		g.cache = append(g.cache, candidate)
		g.live.Insert(candidate)
	}

	return true
}
