package ml

import "math/rand"

// Rand is a seeded source for the subsampling step of Fit. A fixed seed
// keeps a training run reproducible, the same property the CRC32 noise of
// the proposal engine relies on for its own determinism.
type Rand struct {
	src *rand.Rand
}

// NewRand builds a Rand from an integer seed.
func NewRand(seed int64) *Rand {
	return &Rand{src: rand.New(rand.NewSource(seed))}
}

// SubsampleIndices returns a subsample of [0,n) of size floor(n*fraction)
// (at least 1, at most n), sampled without replacement, for Fit's per-round row subsampling.
func (r *Rand) SubsampleIndices(n int, fraction float64) []int {
	k := int(float64(n) * fraction)
	if k < 1 {
		k = 1
	}
	if k >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}

	perm := r.src.Perm(n)
	return perm[:k]
}
