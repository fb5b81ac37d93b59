package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Load reads, defaults and validates a parameter file.
// A missing file yields the built-in defaults.
func Load(path string) (*SimulationParameters, error) {
	p, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Read reads a parameter file without validating it, so that callers can
// apply overrides first. Missing or malformed keys keep their defaults.
func Read(path string) (*SimulationParameters, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("config file not found, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Decode(data), nil
}

// WriteDefault writes p to path unless the file already exists.
// It reports whether a file was created.
func WriteDefault(path string, p *SimulationParameters) (bool, error) {
	data, err := Marshal(p)
	if err != nil {
		return false, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create config dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create config file %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("failed to close config file %s: %w", path, err)
	}
	return true, nil
}

// Marshal encodes p as YAML
func Marshal(p *SimulationParameters) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config yaml: %w", err)
	}
	return data, nil
}

// Validate checks the parameter ranges
func (p *SimulationParameters) Validate() error {
	if err := p.validateFinite(); err != nil {
		return err
	}
	if p.Population <= 0 {
		return invalid("num_users", "must be positive, got %d", p.Population)
	}
	if p.Adoption < 0 || p.Adoption > 1 {
		return invalid("ipv6_adoption", "must be between 0 and 1, got %f", p.Adoption)
	}
	if p.SharingDensity <= 0 {
		return invalid("nat_users_per_ip", "must be positive, got %d", p.SharingDensity)
	}
	if p.BaseLatencyShared < 0 {
		return invalid("base_latency_ipv4", "cannot be negative, got %f", p.BaseLatencyShared)
	}
	if p.BaseLatencyDirect < 0 {
		return invalid("base_latency_ipv6", "cannot be negative, got %f", p.BaseLatencyDirect)
	}

	probabilities := []struct {
		field string
		value float64
	}{
		{"packet_loss_nat", p.PacketLossShared},
		{"censorship_throttle", p.CensorshipThrottle},
		{"congestion_probability", p.CongestionProbability},
	}
	for _, pr := range probabilities {
		if pr.value < 0 || pr.value > 1 {
			return invalid(pr.field, "must be between 0 and 1, got %f", pr.value)
		}
	}

	if p.CongestionLatencyMultiplier < 0 {
		return invalid("congestion_latency_multiplier", "cannot be negative, got %f", p.CongestionLatencyMultiplier)
	}
	if p.CongestionThroughputMultiplier < 0 {
		return invalid("congestion_throughput_multiplier", "cannot be negative, got %f", p.CongestionThroughputMultiplier)
	}
	if p.AnchorPenalty < 0 {
		return invalid("nat_anchor_penalty", "cannot be negative, got %f", p.AnchorPenalty)
	}
	if p.JitterFactor < 0 {
		return invalid("jitter_factor", "cannot be negative, got %f", p.JitterFactor)
	}
	if p.MaxThreads <= 0 {
		return invalid("max_threads", "must be positive, got %d", p.MaxThreads)
	}

	switch p.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("log_level", "%s (must be debug, info, warn, or error)", p.LogLevel)
	}

	if len(p.TrafficProfiles) == 0 {
		return invalid("traffic_profiles", "at least one traffic class must be defined")
	}
	for _, name := range p.ClassNames() {
		prof := p.TrafficProfiles[name]
		if name == "" {
			return invalid("traffic_profiles", "traffic class name cannot be empty")
		}
		if prof.LatencyScale < 0 {
			return invalid("traffic_profiles."+name, "latency_scale cannot be negative, got %f", prof.LatencyScale)
		}
		if prof.ThroughputMin < 0 {
			return invalid("traffic_profiles."+name, "throughput_min cannot be negative, got %f", prof.ThroughputMin)
		}
		if prof.ThroughputMin > prof.ThroughputMax {
			return invalid("traffic_profiles."+name, "throughput_min %f exceeds throughput_max %f",
				prof.ThroughputMin, prof.ThroughputMax)
		}
	}

	return nil
}

type floatField struct {
	field string
	value float64
}

// validateFinite rejects NaN and infinite values, which slip past the range
// comparisons in Validate.
func (p *SimulationParameters) validateFinite() error {
	fields := []floatField{
		{"ipv6_adoption", p.Adoption},
		{"base_latency_ipv4", p.BaseLatencyShared},
		{"base_latency_ipv6", p.BaseLatencyDirect},
		{"packet_loss_nat", p.PacketLossShared},
		{"censorship_throttle", p.CensorshipThrottle},
		{"congestion_probability", p.CongestionProbability},
		{"congestion_latency_multiplier", p.CongestionLatencyMultiplier},
		{"congestion_throughput_multiplier", p.CongestionThroughputMultiplier},
		{"nat_anchor_penalty", p.AnchorPenalty},
		{"jitter_factor", p.JitterFactor},
	}
	for _, name := range p.ClassNames() {
		prof := p.TrafficProfiles[name]
		field := "traffic_profiles." + name
		fields = append(fields,
			floatField{field, prof.LatencyScale},
			floatField{field, prof.ThroughputMin},
			floatField{field, prof.ThroughputMax},
		)
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return invalid(f.field, "must be a finite number, got %f", f.value)
		}
	}
	return nil
}
