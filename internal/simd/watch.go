package simd

import (
	"context"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
)

// Event types emitted while watching a run
const (
	EventStatusChange = "status_change"
	EventScenario     = "scenario"
	EventComplete     = "complete"
)

const defaultWatchInterval = time.Second

// RunEvent is one observation of a run's progress
type RunEvent struct {
	Type    string                  `json:"type"`
	Run     models.Run              `json:"run"`
	Summary *models.ScenarioSummary `json:"summary,omitempty"`
}

// Watch polls a run and calls emit for every status change and every newly
// finished scenario. It returns nil after emitting the complete event for a
// terminal run, ctx.Err() when the watcher is cancelled, or the first error
// returned by emit.
func (s *RunStore) Watch(ctx context.Context, runID string, interval time.Duration, emit func(RunEvent) error) error {
	if interval <= 0 {
		interval = defaultWatchInterval
	}

	rec, ok := s.Get(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err := emit(RunEvent{Type: EventStatusChange, Run: rec.Run}); err != nil {
		return err
	}

	lastStatus := rec.Run.Status
	// Progress can drop a scenario that the final summary list restores, so
	// track by scenario number rather than position.
	sent := make(map[int]bool)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for i := range rec.Summaries {
			summary := rec.Summaries[i]
			if sent[summary.Scenario] {
				continue
			}
			sent[summary.Scenario] = true
			if err := emit(RunEvent{Type: EventScenario, Run: rec.Run, Summary: &summary}); err != nil {
				return err
			}
		}
		if rec.Run.Status != lastStatus {
			if err := emit(RunEvent{Type: EventStatusChange, Run: rec.Run}); err != nil {
				return err
			}
			lastStatus = rec.Run.Status
		}
		if rec.Run.Status.Terminal() {
			return emit(RunEvent{Type: EventComplete, Run: rec.Run})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		rec, ok = s.Get(runID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
	}
}
