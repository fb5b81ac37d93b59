package engine

import (
	"context"
	"sync/atomic"

	"github.com/GoSim-25-26J-441/natsim/internal/metrics"
	"github.com/GoSim-25-26J-441/natsim/internal/traffic"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/GoSim-25-26J-441/natsim/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// runScenario evaluates every user on a pool of MaxThreads workers. Each user
// draws from its own stream of seed, and results land in a slice indexed by
// user, so the outcome set does not depend on scheduling. The reduction then
// walks that slice in order on the calling goroutine.
func (e *Engine) runScenario(ctx context.Context, class string, seed int64) (models.ScenarioResult, error) {
	if _, err := e.params.Profile(class); err != nil {
		return models.ScenarioResult{}, err
	}

	n := e.params.Population
	workers := e.params.MaxThreads
	if workers > n {
		workers = n
	}

	outcomes := make([]models.UserOutcome, n)
	var next atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1) - 1)
				if i >= n {
					return nil
				}
				rng := utils.NewRandStream(seed, uint64(i))
				out, err := traffic.Evaluate(i, class, e.params, rng)
				if err != nil {
					return err
				}
				outcomes[i] = out
			}
		})
	}
	if err := g.Wait(); err != nil {
		return models.ScenarioResult{}, errScenario(class, err)
	}
	// A parent cancelled after the last worker returned still counts.
	if err := ctx.Err(); err != nil {
		return models.ScenarioResult{}, errScenario(class, err)
	}

	acc := metrics.NewAccumulator(n)
	for _, o := range outcomes {
		acc.Add(o)
	}

	res := models.ScenarioResult{Summary: acc.Summary(class, e.params.BaseLatencyShared)}
	if e.keepOutcomes {
		res.Outcomes = outcomes
	}
	return res, nil
}
