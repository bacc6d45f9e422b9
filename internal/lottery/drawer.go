package lottery

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Drawer picks n candidates uniformly at random without replacement.
type Drawer interface {
	Draw(candidates []uuid.UUID, n int) []uuid.UUID
}

type seededDrawer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDrawer returns a PCG-backed drawer. A zero seed draws from the wall clock, any other
// seed makes every draw sequence reproducible.
func NewDrawer(seed uint64) Drawer {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &seededDrawer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Draw runs a partial Fisher-Yates shuffle over a copy of candidates.
func (d *seededDrawer) Draw(candidates []uuid.UUID, n int) []uuid.UUID {
	if n <= 0 || len(candidates) == 0 {
		return []uuid.UUID{}
	}
	pool := make([]uuid.UUID, len(candidates))
	copy(pool, candidates)
	if n >= len(pool) {
		return pool
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		j := i + d.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
