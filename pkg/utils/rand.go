package utils

import (
	"math/rand/v2"
	"time"
)

// RandSource is a seedable random number generator.
// It is not safe for concurrent use: each goroutine needs its own source,
// usually obtained with NewRandStream.
type RandSource struct {
	seed   int64
	stream uint64
	rng    *rand.Rand
}

// NewRandSource creates a new random source with the given seed.
// A zero seed selects a time-based seed.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewRandStream(seed, 0)
}

// NewRandStream returns the PCG stream identified by (seed, stream). The same
// pair always yields the same sequence, regardless of which goroutine asks.
func NewRandStream(seed int64, stream uint64) *RandSource {
	return &RandSource{
		seed:   seed,
		stream: stream,
		rng:    rand.New(rand.NewPCG(uint64(seed), stream)),
	}
}

// Seed returns the seed the source was built from
func (r *RandSource) Seed() int64 {
	return r.seed
}

// Int63 returns a non-negative pseudo-random int64
func (r *RandSource) Int63() int64 {
	return r.rng.Int64()
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	return r.rng.IntN(n)
}

// NormFloat64 returns a normally distributed random number with mean and stddev
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	return r.rng.NormFloat64()*stddev + mean
}

// BernoulliBool returns true with probability p, false otherwise
func (r *RandSource) BernoulliBool(p float64) bool {
	return r.rng.Float64() < p
}

// UniformFloat64 returns a uniformly distributed random number in [min, max)
func (r *RandSource) UniformFloat64(min, max float64) float64 {
	return min + r.rng.Float64()*(max-min)
}
