// Package traffic holds the per-user outcome model: one routing decision and
// one latency/throughput/drop draw for a single user under a traffic class.
package traffic

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
)

// Direct path latency noise (standard deviation, ms)
const directLatencySD = 5.0

// Shared path latency noise and translation overhead bounds (ms)
const (
	sharedLatencySD   = 10.0
	sharedOverheadMin = 5.0
	sharedOverheadMax = 15.0
)

// Rand is the randomness the model consumes. *utils.RandSource satisfies it.
type Rand interface {
	Float64() float64
	NormFloat64(mean, stddev float64) float64
	UniformFloat64(min, max float64) float64
	BernoulliBool(p float64) bool
}

// Evaluate produces the outcome of one user. It reads params without
// modifying them and draws only from rng, so concurrent calls are safe as
// long as each call has its own rng.
func Evaluate(userIndex int, class string, params *config.SimulationParameters, rng Rand) (models.UserOutcome, error) {
	profile, err := params.Profile(class)
	if err != nil {
		return models.UserOutcome{}, err
	}
	if userIndex < 0 {
		return models.UserOutcome{}, fmt.Errorf("user index %d: %w", userIndex, config.ErrInvalidParameter)
	}

	out := models.UserOutcome{
		UserIndex:    userIndex,
		Path:         Label(userIndex, params),
		TrafficClass: class,
	}

	var latency, throughput float64
	if rng.BernoulliBool(params.DirectProbability()) {
		out.Routed = models.PathDirect
		latency = rng.NormFloat64(params.BaseLatencyDirect*profile.LatencyScale, directLatencySD)
		throughput = rng.UniformFloat64(profile.ThroughputMin, profile.ThroughputMax)
		if class == params.CensoredClass {
			throughput *= 1 - params.CensorshipThrottle
		}
	} else {
		out.Routed = models.PathShared
		overhead := rng.UniformFloat64(sharedOverheadMin, sharedOverheadMax)
		latency = rng.NormFloat64(params.BaseLatencyShared*profile.LatencyScale+overhead, sharedLatencySD)
		throughput = rng.UniformFloat64(profile.ThroughputMin/2, profile.ThroughputMax/2)
		out.Dropped = rng.BernoulliBool(params.PacketLossShared)
		if IsAnchor(userIndex, params) {
			throughput *= params.AnchorPenalty
		}
		if rng.BernoulliBool(params.CongestionProbability) {
			latency *= params.CongestionLatencyMultiplier
			throughput *= params.CongestionThroughputMultiplier
		}
	}

	latency *= 1 + rng.UniformFloat64(-params.JitterFactor, params.JitterFactor)

	out.ThroughputMbps = math.Max(0, throughput)
	if out.Dropped {
		out.LatencyMs = math.Inf(1)
	} else {
		out.LatencyMs = latency
	}
	return out, nil
}

// Label is the positional path label: the first DirectUsers indices are
// reported as direct.
func Label(userIndex int, params *config.SimulationParameters) models.Path {
	if userIndex < params.DirectUsers() {
		return models.PathDirect
	}
	return models.PathShared
}

// IsAnchor reports whether a shared-path user pays the address-sharing
// throughput penalty.
func IsAnchor(userIndex int, params *config.SimulationParameters) bool {
	return params.SharingDensity > 0 && userIndex%params.SharingDensity == 0
}
