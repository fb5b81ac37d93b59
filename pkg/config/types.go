package config

import (
	"fmt"
	"math"
	"sort"
)

// TrafficProfile describes one traffic class
type TrafficProfile struct {
	LatencyScale  float64 `yaml:"latency_scale" json:"latency_scale"`
	ThroughputMin float64 `yaml:"throughput_min" json:"throughput_min"`
	ThroughputMax float64 `yaml:"throughput_max" json:"throughput_max"`
}

// SimulationParameters holds every knob of the traffic model. A value is
// treated as immutable once a run starts; use Clone before mutating a shared one.
//
// The direct path is the IPv6 path and the shared path is the IPv4/NAT path,
// which is why the yaml keys carry the protocol names.
type SimulationParameters struct {
	Population        int     `yaml:"num_users" json:"num_users"`
	Adoption          float64 `yaml:"ipv6_adoption" json:"ipv6_adoption"`
	SharingDensity    int     `yaml:"nat_users_per_ip" json:"nat_users_per_ip"`
	BaseLatencyShared float64 `yaml:"base_latency_ipv4" json:"base_latency_ipv4"`
	BaseLatencyDirect float64 `yaml:"base_latency_ipv6" json:"base_latency_ipv6"`
	PacketLossShared  float64 `yaml:"packet_loss_nat" json:"packet_loss_nat"`

	CensorshipThrottle float64 `yaml:"censorship_throttle" json:"censorship_throttle"`
	CensoredClass      string  `yaml:"censored_class" json:"censored_class"`

	CongestionProbability          float64 `yaml:"congestion_probability" json:"congestion_probability"`
	CongestionLatencyMultiplier    float64 `yaml:"congestion_latency_multiplier" json:"congestion_latency_multiplier"`
	CongestionThroughputMultiplier float64 `yaml:"congestion_throughput_multiplier" json:"congestion_throughput_multiplier"`
	AnchorPenalty                  float64 `yaml:"nat_anchor_penalty" json:"nat_anchor_penalty"`

	JitterFactor float64 `yaml:"jitter_factor" json:"jitter_factor"`
	MaxThreads   int     `yaml:"max_threads" json:"max_threads"`
	Seed         int64   `yaml:"seed" json:"seed"`
	LogLevel     string  `yaml:"log_level" json:"log_level"`

	TrafficProfiles map[string]TrafficProfile `yaml:"traffic_profiles" json:"traffic_profiles"`
}

// Default returns the built-in parameter set
func Default() *SimulationParameters {
	return &SimulationParameters{
		Population:                     5000,
		Adoption:                       0.05,
		SharingDensity:                 64,
		BaseLatencyShared:              20,
		BaseLatencyDirect:              15,
		PacketLossShared:               0.02,
		CensorshipThrottle:             0.1,
		CensoredClass:                  "censored",
		CongestionProbability:          0.15,
		CongestionLatencyMultiplier:    1.5,
		CongestionThroughputMultiplier: 0.7,
		AnchorPenalty:                  0.6,
		JitterFactor:                   0.2,
		MaxThreads:                     8,
		LogLevel:                       "info",
		TrafficProfiles: map[string]TrafficProfile{
			"http":     {LatencyScale: 1.0, ThroughputMin: 15, ThroughputMax: 60},
			"video":    {LatencyScale: 1.2, ThroughputMin: 20, ThroughputMax: 100},
			"censored": {LatencyScale: 1.5, ThroughputMin: 5, ThroughputMax: 30},
		},
	}
}

// Clone returns a deep copy
func (p *SimulationParameters) Clone() *SimulationParameters {
	out := *p
	out.TrafficProfiles = make(map[string]TrafficProfile, len(p.TrafficProfiles))
	for name, prof := range p.TrafficProfiles {
		out.TrafficProfiles[name] = prof
	}
	return &out
}

// DirectUsers is the rounded number of users on the direct path.
func (p *SimulationParameters) DirectUsers() int {
	return int(math.Round(float64(p.Population) * p.Adoption))
}

// DirectProbability is the per-call routing probability. It comes from the
// rounded user split and may differ slightly from Adoption.
func (p *SimulationParameters) DirectProbability() float64 {
	if p.Population <= 0 {
		return 0
	}
	return float64(p.DirectUsers()) / float64(p.Population)
}

// Profile looks up a traffic class
func (p *SimulationParameters) Profile(class string) (TrafficProfile, error) {
	prof, ok := p.TrafficProfiles[class]
	if !ok {
		return TrafficProfile{}, &ConfigurationError{
			Field: "traffic_profiles",
			Msg:   fmt.Sprintf("traffic class %q is not configured", class),
			Err:   ErrUnknownTrafficClass,
		}
	}
	return prof, nil
}

// ClassNames returns the configured traffic classes in sorted order
func (p *SimulationParameters) ClassNames() []string {
	names := make([]string, 0, len(p.TrafficProfiles))
	for name := range p.TrafficProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
