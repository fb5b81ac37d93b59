package simd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoSim-25-26J-441/natsim/internal/engine"
	"github.com/GoSim-25-26J-441/natsim/internal/metrics"
	"github.com/GoSim-25-26J-441/natsim/internal/resource"
	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
)

// Archiver persists finished runs. *archive.Archive implements it.
type Archiver interface {
	SaveRun(ctx context.Context, runID string, seed int64, params *config.SimulationParameters, summaries []models.ScenarioSummary) error
}

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store     *RunStore
	recorder  *metrics.Recorder
	archive   Archiver
	notifier  *Notifier
	hostProbe resource.HostProbe
	logger    *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// ExecutorOption configures a RunExecutor
type ExecutorOption func(*RunExecutor)

// WithRecorder exports scenario and run metrics
func WithRecorder(r *metrics.Recorder) ExecutorOption {
	return func(e *RunExecutor) { e.recorder = r }
}

// WithArchive stores completed runs
func WithArchive(a Archiver) ExecutorOption {
	return func(e *RunExecutor) { e.archive = a }
}

// WithNotifier overrides the callback notifier
func WithNotifier(n *Notifier) ExecutorOption {
	return func(e *RunExecutor) { e.notifier = n }
}

// WithHostProbe stamps scenarios with host snapshots
func WithHostProbe(p resource.HostProbe) ExecutorOption {
	return func(e *RunExecutor) { e.hostProbe = p }
}

func NewRunExecutor(store *RunStore, opts ...ExecutorOption) *RunExecutor {
	e := &RunExecutor{
		store:    store,
		notifier: NewNotifier(),
		logger:   logger.Default,
		cancels:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recorder returns the metrics recorder, if any
func (e *RunExecutor) Recorder() *metrics.Recorder {
	return e.recorder
}

// Start begins executing a run asynchronously.
// Returns the updated run state (running) or an error.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	// e.mu is held across the transition so a concurrent Stop sees the
	// cancel func of the run it is stopping.
	e.mu.Lock()
	updated, started, err := e.store.MarkRunning(runID)
	if err != nil || !started {
		e.mu.Unlock()
		return updated, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancels[runID] = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		e.runSimulation(ctx, runID)
	}()
	return updated, nil
}

// Stop requests cancellation for a run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()

	if ok {
		cancel()
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "")
	if err != nil {
		return nil, err
	}
	e.finish(updated)
	return updated, nil
}

// Wait blocks until every started run has returned
func (e *RunExecutor) Wait() {
	e.wg.Wait()
}

// Shutdown cancels every active run, waits for them to return and marks
// the interrupted ones cancelled.
func (e *RunExecutor) Shutdown() {
	e.mu.Lock()
	active := make([]string, 0, len(e.cancels))
	for runID, cancel := range e.cancels {
		cancel()
		active = append(active, runID)
	}
	e.mu.Unlock()
	e.wg.Wait()

	for _, runID := range active {
		updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "daemon shutdown")
		if err != nil {
			continue
		}
		e.finish(updated)
	}
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) runSimulation(ctx context.Context, runID string) {
	defer e.cleanup(runID)

	rec, ok := e.store.Get(runID)
	if !ok {
		e.logger.Error("run not found", "run_id", runID)
		return
	}
	log := e.logger.With("run_id", runID)

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithProgress(func(p engine.Progress) {
			if err := e.store.AppendSummary(runID, p.Summary); err != nil {
				log.Warn("failed to record progress", "error", err)
			}
		}, 64),
	}
	if e.recorder != nil {
		opts = append(opts, engine.WithRecorder(e.recorder))
	}
	if e.hostProbe != nil {
		opts = append(opts, engine.WithHostProbe(e.hostProbe))
	}

	eng, err := engine.New(rec.Params, opts...)
	if err != nil {
		e.fail(runID, fmt.Sprintf("invalid configuration: %v", err))
		return
	}

	log.Info("starting run", "scenarios", rec.Input.Scenarios, "seed", eng.Seed())
	summaries, err := eng.RunMany(ctx, rec.Input.Scenarios)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			log.Info("run cancelled")
			return
		}
		log.Error("run failed", "error", err)
		e.fail(runID, err.Error())
		return
	}

	if err := e.store.SetSummaries(runID, summaries); err != nil {
		log.Error("failed to store summaries", "error", err)
	}

	if e.archive != nil {
		if err := e.archive.SaveRun(ctx, runID, eng.Seed(), rec.Params, summaries); err != nil {
			log.Warn("failed to archive run", "error", err)
		}
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusCompleted, "")
	if err != nil {
		// Stopped between the last scenario and here.
		log.Info("run not completed", "reason", err)
		return
	}
	log.Info("run completed", "scenarios", len(summaries))
	e.finish(updated)
}

func (e *RunExecutor) fail(runID, msg string) {
	updated, err := e.store.SetStatus(runID, models.RunStatusFailed, msg)
	if err != nil {
		e.logger.Error("failed to set failed status", "run_id", runID, "error", err)
		return
	}
	e.finish(updated)
}

// finish reports a run that reached a terminal status
func (e *RunExecutor) finish(rec *RunRecord) {
	if e.recorder != nil {
		e.recorder.ObserveRun(rec.Run.Status)
	}
	e.notifier.Notify(rec.Input.CallbackURL, rec.Input.CallbackSecret, rec)
}
