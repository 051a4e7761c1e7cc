package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomGeneratorUniqueUnderLoad(t *testing.T) {
	t.Parallel()

	g, err := NewRandomGenerator("0", Encode(500), nil, 0)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 400; i++ {
		id, ok := g.Allocate()
		require.True(t, ok)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %q allocated", id)
		seen[id] = struct{}{}
	}
}

func TestRandomGeneratorReleaseIsInverseOfAllocate(t *testing.T) {
	t.Parallel()

	g, err := NewRandomGenerator("0", Encode(10), nil, 0)
	require.NoError(t, err)

	id, ok := g.Allocate()
	require.True(t, ok)

	assert.True(t, g.Release(id))
	assert.False(t, g.Release(id), "second release of the same id must fail")
}

func TestRandomGeneratorExhaustion(t *testing.T) {
	t.Parallel()

	// Range [0, 2) holds exactly two ids; a third allocation must fail
	// once the retry budget is spent.
	g, err := NewRandomGenerator("0", Encode(2), nil, 64)
	require.NoError(t, err)

	_, ok1 := g.Allocate()
	_, ok2 := g.Allocate()
	require.True(t, ok1)
	require.True(t, ok2)

	_, ok3 := g.Allocate()
	assert.False(t, ok3)
}

func TestRandomGeneratorReleaseMalformedID(t *testing.T) {
	t.Parallel()

	g, err := NewRandomGenerator("0", Encode(100), nil, 0)
	require.NoError(t, err)

	assert.False(t, g.Release("not valid!"))
}

func TestRandomGeneratorSeedsFromPresent(t *testing.T) {
	t.Parallel()

	g, err := NewRandomGenerator("0", Encode(3), []string{Encode(0), Encode(1)}, 8)
	require.NoError(t, err)

	id, ok := g.Allocate()
	require.True(t, ok)
	assert.Equal(t, Encode(2), id)

	_, ok = g.Allocate()
	assert.False(t, ok)
}

func TestParseBoundsRejectsInvertedRange(t *testing.T) {
	t.Parallel()

	_, err := NewRandomGenerator(Encode(5), Encode(5), nil, 0)
	assert.Error(t, err)

	_, err = NewRandomGenerator(Encode(6), Encode(5), nil, 0)
	assert.Error(t, err)
}
