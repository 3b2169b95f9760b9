package simulate

import (
	"math"
	"math/rand"
	"time"
)

// Source is the randomness the simulator draws from. *math/rand.Rand
// satisfies it; tests inject a seeded instance for determinism.
type Source interface {
	Float64() float64
	NormFloat64() float64
}

// NewSource returns a seeded source. Seed 0 seeds from the clock.
func NewSource(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// childSeed derives a worker seed from the parent source so sharded runs
// stay deterministic under an injected parent.
func childSeed(src Source) int64 {
	s := int64(src.Float64() * float64(math.MaxInt64/2))
	if s == 0 {
		s = 1
	}
	return s
}

// sampleBeta draws from Beta(alpha, beta) via two gamma draws.
func sampleBeta(src Source, alpha, beta float64) float64 {
	x := sampleGamma(src, alpha)
	y := sampleGamma(src, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) using Marsaglia-Tsang. Shapes below
// one are boosted to shape+1 and corrected by a uniform power.
func sampleGamma(src Source, shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := src.Float64()
		for u == 0 {
			u = src.Float64()
		}
		return sampleGamma(src, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		x := src.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := src.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}
