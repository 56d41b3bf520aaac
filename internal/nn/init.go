package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/scaleout/internal/tensor"
)

// Xavier fills t with values from the Xavier/Glorot uniform distribution
// U(-sqrt(6/(fanIn+fanOut)), sqrt(6/(fanIn+fanOut))).
func Xavier(t *tensor.Dense, fanIn, fanOut int, rng *rand.Rand) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	data := t.Data()
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * bound
	}
}

// newRand returns a generator that yields the same stream for the same seed.
func newRand(seed int64) *rand.Rand {
	//nolint:gosec // Weight initialization is not security-critical.
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}
