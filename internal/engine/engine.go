// Package engine runs scenarios: it evaluates every user of a population on a
// bounded worker pool, reduces the outcomes into a summary, and sequences
// several scenarios into one run.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/natsim/internal/metrics"
	"github.com/GoSim-25-26J-441/natsim/internal/resource"
	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/GoSim-25-26J-441/natsim/pkg/utils"
)

// classStream is the PCG stream the orchestrator draws classes and scenario
// seeds from. User streams use the user index, so this one stays out of
// their range.
const classStream = math.MaxUint64

// Engine evaluates scenarios for one immutable parameter set
type Engine struct {
	params       *config.SimulationParameters
	seed         int64
	logger       *slog.Logger
	hostProbe    resource.HostProbe
	recorder     *metrics.Recorder
	progress     ProgressFunc
	progressBuf  int
	keepOutcomes bool
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine's logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHostProbe stamps every scenario of RunMany with a host snapshot
func WithHostProbe(p resource.HostProbe) Option {
	return func(e *Engine) { e.hostProbe = p }
}

// WithRecorder exports every finished scenario to r
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithProgress registers a progress callback for RunMany. The callback runs
// on its own goroutine; notifications are dropped when it falls more than
// buffer notifications behind.
func WithProgress(fn ProgressFunc, buffer int) Option {
	return func(e *Engine) {
		e.progress = fn
		e.progressBuf = buffer
	}
}

// WithOutcomes keeps the raw per-user outcomes on every ScenarioResult
func WithOutcomes(keep bool) Option {
	return func(e *Engine) { e.keepOutcomes = keep }
}

// WithSeed overrides the parameter seed
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// New validates params and returns an Engine bound to a private copy of them.
// A zero seed is replaced by a time-based one, reported by Seed.
func New(params *config.SimulationParameters, opts ...Option) (*Engine, error) {
	if params == nil {
		return nil, &config.ConfigurationError{Msg: "no simulation parameters", Err: config.ErrInvalidParameter}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		params:      params.Clone(),
		seed:        params.Seed,
		logger:      logger.Default,
		progressBuf: 16,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seed == 0 {
		e.seed = time.Now().UnixNano()
	}
	return e, nil
}

// Seed returns the seed that reproduces this engine's results
func (e *Engine) Seed() int64 {
	return e.seed
}

// Params returns a copy of the engine's parameters
func (e *Engine) Params() *config.SimulationParameters {
	return e.params.Clone()
}

// RunScenario evaluates one scenario of class under the engine seed
func (e *Engine) RunScenario(ctx context.Context, class string) (models.ScenarioSummary, error) {
	res, err := e.runScenario(ctx, class, e.seed)
	if err != nil {
		return models.ScenarioSummary{}, err
	}
	return res.Summary, nil
}

// RunScenarioResult is RunScenario with the raw outcomes attached when the
// engine keeps them.
func (e *Engine) RunScenarioResult(ctx context.Context, class string) (models.ScenarioResult, error) {
	return e.runScenario(ctx, class, e.seed)
}

// RunScenario is a convenience wrapper evaluating one scenario with params
func RunScenario(ctx context.Context, class string, params *config.SimulationParameters) (models.ScenarioSummary, error) {
	e, err := New(params)
	if err != nil {
		return models.ScenarioSummary{}, err
	}
	return e.RunScenario(ctx, class)
}

// RunMany is a convenience wrapper running n scenarios with params
func RunMany(ctx context.Context, n int, params *config.SimulationParameters) ([]models.ScenarioSummary, error) {
	e, err := New(params)
	if err != nil {
		return nil, err
	}
	return e.RunMany(ctx, n)
}

func summaryAttrs(s models.ScenarioSummary) []any {
	attrs := []any{
		"scenario", s.Scenario,
		"traffic_class", s.TrafficClass,
		"mean_throughput_mbps", utils.Round(s.MeanThroughputMbps, 2),
		"drop_rate", utils.Round(s.DropRate, 4),
	}
	if s.Reachable() {
		attrs = append(attrs,
			"mean_latency_ms", utils.Round(s.MeanLatencyMs, 2),
			"efficiency_gain_pct", utils.Round(s.EfficiencyGainPct, 2))
	} else {
		attrs = append(attrs, "reachable", false)
	}
	return attrs
}

func errScenario(class string, err error) error {
	return fmt.Errorf("scenario %s: %w", class, err)
}
