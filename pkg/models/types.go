package models

import (
	"encoding/json"
	"math"
)

// Path identifies one of the two addressing paths
type Path string

const (
	// PathDirect is the end-to-end addressed (IPv6) path
	PathDirect Path = "direct"
	// PathShared is the address-translated (IPv4/NAT) path
	PathShared Path = "shared"
)

// UserOutcome is the result of evaluating one user once.
//
// Path is the positional label (index below the direct-user count). Routed is
// the path whose latency and throughput formulas were actually applied; the
// two can disagree because routing is a per-call draw.
type UserOutcome struct {
	UserIndex      int     `json:"user_index"`
	Path           Path    `json:"path"`
	Routed         Path    `json:"routed"`
	LatencyMs      float64 `json:"latency_ms"` // +Inf when dropped
	ThroughputMbps float64 `json:"throughput_mbps"`
	Dropped        bool    `json:"dropped"`
	TrafficClass   string  `json:"traffic_class"`
}

// MarshalJSON encodes an unreachable latency as null
func (o UserOutcome) MarshalJSON() ([]byte, error) {
	type alias UserOutcome
	return json.Marshal(struct {
		alias
		LatencyMs *float64 `json:"latency_ms"`
	}{alias: alias(o), LatencyMs: finiteOrNil(o.LatencyMs)})
}

// HostSnapshot is a host resource reading taken after a scenario
type HostSnapshot struct {
	CPUPercent   float64 `json:"cpu_percent"`
	MemoryUsedMB float64 `json:"memory_used_mb"`
}

// ScenarioSummary aggregates every outcome of one scenario. It is never
// modified after it is produced.
type ScenarioSummary struct {
	Scenario           int     `json:"scenario"`
	TrafficClass       string  `json:"traffic_class"`
	Users              int     `json:"users"`
	MeanLatencyMs      float64 `json:"mean_latency_ms"` // +Inf when nothing survived
	MeanThroughputMbps float64 `json:"mean_throughput_mbps"`
	DropRate           float64 `json:"drop_rate"`
	EfficiencyGainPct  float64 `json:"efficiency_gain_pct"`

	LatencyP50Ms    float64 `json:"latency_p50_ms"`
	LatencyP95Ms    float64 `json:"latency_p95_ms"`
	LatencyP99Ms    float64 `json:"latency_p99_ms"`
	LatencyStdDevMs float64 `json:"latency_stddev_ms"`

	Host *HostSnapshot `json:"host,omitempty"`
}

// Reachable reports whether at least one user got through
func (s ScenarioSummary) Reachable() bool {
	return !math.IsInf(s.MeanLatencyMs, 1)
}

// MarshalJSON encodes an unreachable mean latency as null
func (s ScenarioSummary) MarshalJSON() ([]byte, error) {
	type alias ScenarioSummary
	return json.Marshal(struct {
		alias
		MeanLatencyMs *float64 `json:"mean_latency_ms"`
	}{alias: alias(s), MeanLatencyMs: finiteOrNil(s.MeanLatencyMs)})
}

// UnmarshalJSON accepts null as an unreachable mean latency
func (s *ScenarioSummary) UnmarshalJSON(data []byte) error {
	type alias ScenarioSummary
	aux := struct {
		*alias
		MeanLatencyMs *float64 `json:"mean_latency_ms"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.MeanLatencyMs == nil {
		s.MeanLatencyMs = math.Inf(1)
	} else {
		s.MeanLatencyMs = *aux.MeanLatencyMs
	}
	return nil
}

// ScenarioResult is a summary plus, optionally, the raw outcomes behind it
type ScenarioResult struct {
	Summary  ScenarioSummary `json:"summary"`
	Outcomes []UserOutcome   `json:"outcomes,omitempty"`
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
