// Package filldist provides the fill-rate distribution capability the fill
// model samples from, per spec.md §4.D and the generic-distribution design
// note in §9.
package filldist

import "math/rand"

// Distribution samples a fill rate in [0,100] given the engine's RNG.
type Distribution interface {
	Sample(rng *rand.Rand) float64
}

// Constant always returns the same rate, clamped to [0,100]. With
// Constant(100) and RunParams.UseRandomness=false this reproduces the
// "always max fill" deterministic mode spec.md describes.
type Constant struct {
	Rate float64
}

// Sample implements Distribution.
func (c Constant) Sample(rng *rand.Rand) float64 {
	return clamp(c.Rate)
}

// Normal samples from a normal distribution with the given mean/stddev,
// clamped to [0,100].
type Normal struct {
	Mean   float64
	StdDev float64
}

// Sample implements Distribution.
func (n Normal) Sample(rng *rand.Rand) float64 {
	if rng == nil {
		return clamp(n.Mean)
	}
	return clamp(n.Mean + rng.NormFloat64()*n.StdDev)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
