package lottery

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i)})
	}
	return out
}

func TestDrawSameSeedSameSelection(t *testing.T) {
	pool := candidates(20)
	first := NewDrawer(42).Draw(pool, 5)
	second := NewDrawer(42).Draw(pool, 5)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, NewDrawer(7).Draw(pool, 5))
}

func TestDrawWithoutReplacement(t *testing.T) {
	pool := candidates(10)
	picked := NewDrawer(1).Draw(pool, 6)
	require.Len(t, picked, 6)

	seen := map[uuid.UUID]bool{}
	for _, id := range picked {
		assert.False(t, seen[id], "duplicate pick %s", id)
		assert.Contains(t, pool, id)
		seen[id] = true
	}
}

func TestDrawEdges(t *testing.T) {
	pool := candidates(3)
	d := NewDrawer(3)

	assert.Empty(t, d.Draw(pool, 0))
	assert.Empty(t, d.Draw(nil, 4))
	assert.ElementsMatch(t, pool, d.Draw(pool, 3))
	assert.ElementsMatch(t, pool, d.Draw(pool, 10))

	// the caller's slice is left untouched
	before := append([]uuid.UUID(nil), pool...)
	d.Draw(pool, 2)
	assert.Equal(t, before, pool)
}

func TestDrawIsRoughlyUniform(t *testing.T) {
	pool := candidates(4)
	d := NewDrawer(99)
	counts := map[uuid.UUID]int{}
	const runs = 4000
	for i := 0; i < runs; i++ {
		for _, id := range d.Draw(pool, 1) {
			counts[id]++
		}
	}
	for _, id := range pool {
		assert.InDelta(t, runs/4, counts[id], runs/10, "candidate %s drawn %d times", id, counts[id])
	}
}
