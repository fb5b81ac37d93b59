package engine

import (
	"context"

	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/GoSim-25-26J-441/natsim/pkg/utils"
)

// RunMany runs n scenarios one after another, each with a traffic class drawn
// uniformly from the sorted class names. Summaries come back in scenario
// order, numbered from 1. On error nothing is returned; use RunManyResults to
// keep the scenarios finished so far.
func (e *Engine) RunMany(ctx context.Context, n int) ([]models.ScenarioSummary, error) {
	results, err := e.RunManyResults(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]models.ScenarioSummary, len(results))
	for i, r := range results {
		out[i] = r.Summary
	}
	return out, nil
}

// RunManyResults is RunMany returning full results. When a scenario fails,
// the results completed before it are returned alongside the error.
func (e *Engine) RunManyResults(ctx context.Context, n int) ([]models.ScenarioResult, error) {
	if n < 0 {
		return nil, &config.ConfigurationError{Field: "scenarios", Msg: "scenario count cannot be negative", Err: config.ErrInvalidParameter}
	}

	classes := e.params.ClassNames()
	picker := utils.NewRandStream(e.seed, classStream)

	pump := newProgressPump(e.progress, e.progressBuf, e.logger)
	defer pump.close()

	e.logger.Info("starting scenarios",
		"scenarios", n,
		"users", e.params.Population,
		"direct_users", e.params.DirectUsers(),
		"workers", e.params.MaxThreads,
		"seed", e.seed)

	results := make([]models.ScenarioResult, 0, n)
	for i := 1; i <= n; i++ {
		class := classes[picker.Intn(len(classes))]
		scenarioSeed := picker.Int63()

		res, err := e.runScenario(ctx, class, scenarioSeed)
		if err != nil {
			e.logger.Error("scenario failed", "scenario", i, "traffic_class", class, "error", err)
			return results, err
		}
		res.Summary.Scenario = i

		if e.hostProbe != nil {
			snap, err := e.hostProbe.Snapshot(ctx)
			if err != nil {
				e.logger.Warn("host snapshot unavailable", "scenario", i, "error", err)
			} else {
				res.Summary.Host = &snap
			}
		}
		if e.recorder != nil {
			e.recorder.ObserveScenario(res.Summary)
		}

		results = append(results, res)
		e.logger.Info("scenario complete", summaryAttrs(res.Summary)...)
		pump.notify(Progress{Completed: i, Total: n, Summary: res.Summary})
	}
	return results, nil
}
