// Package metrics reduces per-user outcomes into scenario summaries and
// exports scenario telemetry to Prometheus.
package metrics

import (
	"math"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/montanaflynn/stats"
)

// Accumulator folds outcomes into sums and counts. It is not safe for
// concurrent use; feed it from a single goroutine in a fixed order so that
// the float sums are reproducible.
type Accumulator struct {
	users         int
	dropped       int
	throughputSum float64
	latencySum    float64
	latencies     []float64
}

// NewAccumulator sizes the survivor buffer for n users
func NewAccumulator(n int) *Accumulator {
	return &Accumulator{latencies: make([]float64, 0, n)}
}

// Add folds one outcome
func (a *Accumulator) Add(o models.UserOutcome) {
	a.users++
	a.throughputSum += o.ThroughputMbps
	if o.Dropped || math.IsInf(o.LatencyMs, 1) {
		a.dropped++
		return
	}
	a.latencySum += o.LatencyMs
	a.latencies = append(a.latencies, o.LatencyMs)
}

// Users is the number of outcomes folded so far
func (a *Accumulator) Users() int {
	return a.users
}

// Summary builds the scenario summary. baseShared is the shared-path base
// latency the efficiency gain is measured against. Scenario is left zero for
// the caller to stamp.
func (a *Accumulator) Summary(class string, baseShared float64) models.ScenarioSummary {
	s := models.ScenarioSummary{
		TrafficClass:  class,
		Users:         a.users,
		MeanLatencyMs: math.Inf(1),
	}
	if a.users > 0 {
		s.MeanThroughputMbps = a.throughputSum / float64(a.users)
		s.DropRate = float64(a.dropped) / float64(a.users)
	}

	survivors := len(a.latencies)
	if survivors == 0 {
		return s
	}
	s.MeanLatencyMs = a.latencySum / float64(survivors)
	if baseShared != 0 {
		s.EfficiencyGainPct = (baseShared - s.MeanLatencyMs) / baseShared * 100
	}

	data := stats.Float64Data(a.latencies)
	s.LatencyP50Ms = percentile(data, 50)
	s.LatencyP95Ms = percentile(data, 95)
	s.LatencyP99Ms = percentile(data, 99)
	if sd, err := stats.StandardDeviation(data); err == nil {
		s.LatencyStdDevMs = sd
	}
	return s
}

func percentile(data stats.Float64Data, p float64) float64 {
	v, err := stats.Percentile(data, p)
	if err != nil {
		return 0
	}
	return v
}
