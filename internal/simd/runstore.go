package simd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/GoSim-25-26J-441/natsim/pkg/utils"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
	ErrRunExists    = errors.New("run already exists")
	ErrInvalidRunID = errors.New("run_id cannot contain '/' or ':'")
)

// RunRecord is everything the daemon knows about one run
type RunRecord struct {
	Run       models.Run
	Input     models.RunInput
	Params    *config.SimulationParameters
	Summaries []models.ScenarioSummary
}

func (r *RunRecord) clone() *RunRecord {
	out := *r
	out.Summaries = append([]models.ScenarioSummary(nil), r.Summaries...)
	return &out
}

// RunStore keeps runs in memory. Getters hand out copies so callers never
// race with the executor.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// Create registers a pending run. The configuration is parsed and validated
// here so a bad payload is rejected before the run exists.
func (s *RunStore) Create(runID string, input models.RunInput) (*RunRecord, error) {
	if strings.ContainsAny(runID, "/:") {
		return nil, ErrInvalidRunID
	}
	if input.Scenarios <= 0 {
		return nil, &config.ConfigurationError{Field: "scenarios", Msg: "must be positive", Err: config.ErrInvalidParameter}
	}
	if input.CallbackURL != "" {
		if err := validateCallbackURL(strings.ReplaceAll(input.CallbackURL, "{run_id}", "run")); err != nil {
			return nil, &config.ConfigurationError{Field: "callback_url", Msg: err.Error(), Err: err}
		}
	}
	params, err := config.ParseYAMLString(input.ConfigYAML)
	if err != nil {
		return nil, err
	}
	if input.Seed != 0 {
		params.Seed = input.Seed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &RunRecord{
		Run: models.Run{
			ID:              runID,
			Status:          models.RunStatusPending,
			CreatedAtUnixMs: nowUnixMs(),
		},
		Input:  input,
		Params: params,
	}
	s.runs[runID] = rec
	return rec.clone(), nil
}

func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// List returns up to limit runs after offset, oldest first. An empty status
// matches every run.
func (s *RunStore) List(limit, offset int, status models.RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	all := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != "" && rec.Run.Status != status {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Run.CreatedAtUnixMs != all[j].Run.CreatedAtUnixMs {
			return all[i].Run.CreatedAtUnixMs < all[j].Run.CreatedAtUnixMs
		}
		return all[i].Run.ID < all[j].Run.ID
	})

	if offset >= len(all) {
		return []*RunRecord{}
	}
	all = all[offset:]
	out := make([]*RunRecord, 0, minInt(limit, len(all)))
	for _, rec := range all[:minInt(limit, len(all))] {
		out = append(out, rec.clone())
	}
	return out
}

// SetStatus moves a run to status. Terminal runs never change again.
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, rec.Run.Status)
	}

	rec.Run.Status = status
	if errMsg != "" {
		rec.Run.Error = errMsg
	}

	switch status {
	case models.RunStatusRunning:
		if rec.Run.StartedAtUnixMs == 0 {
			rec.Run.StartedAtUnixMs = nowUnixMs()
		}
	case models.RunStatusCompleted,
		models.RunStatusFailed,
		models.RunStatusCancelled:
		rec.Run.EndedAtUnixMs = nowUnixMs()
	}

	return rec.clone(), nil
}

// MarkRunning moves a pending run to running. started reports whether this
// call made the transition; a run that is already running is returned
// unchanged with started false.
func (s *RunStore) MarkRunning(runID string) (rec *RunRecord, started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	switch {
	case r.Run.Status.Terminal():
		return nil, false, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, r.Run.Status)
	case r.Run.Status == models.RunStatusRunning:
		return r.clone(), false, nil
	}

	r.Run.Status = models.RunStatusRunning
	if r.Run.StartedAtUnixMs == 0 {
		r.Run.StartedAtUnixMs = nowUnixMs()
	}
	return r.clone(), true, nil
}

// AppendSummary records a scenario finished while the run is in progress
func (s *RunStore) AppendSummary(runID string, summary models.ScenarioSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return nil
	}
	rec.Summaries = append(rec.Summaries, summary)
	rec.Run.Completed = len(rec.Summaries)
	return nil
}

// SetSummaries replaces the summaries with the final, complete list
func (s *RunStore) SetSummaries(runID string, summaries []models.ScenarioSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.Summaries = append([]models.ScenarioSummary(nil), summaries...)
	rec.Run.Completed = len(rec.Summaries)
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
