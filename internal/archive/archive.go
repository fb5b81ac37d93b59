// Package archive keeps finished runs and their scenario summaries in a
// SQLite database.
package archive

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	seed       INTEGER NOT NULL,
	scenarios  INTEGER NOT NULL,
	params     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS summaries (
	run_id               TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	scenario             INTEGER NOT NULL,
	traffic_class        TEXT NOT NULL,
	users                INTEGER NOT NULL,
	mean_latency_ms      REAL,
	mean_throughput_mbps REAL NOT NULL,
	drop_rate            REAL NOT NULL,
	efficiency_gain_pct  REAL NOT NULL,
	latency_p50_ms       REAL NOT NULL,
	latency_p95_ms       REAL NOT NULL,
	latency_p99_ms       REAL NOT NULL,
	latency_stddev_ms    REAL NOT NULL,
	cpu_percent          REAL,
	memory_used_mb       REAL,
	PRIMARY KEY (run_id, scenario)
);`

// Run is one archived run
type Run struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	Seed      int64     `db:"seed"`
	Scenarios int       `db:"scenarios"`
	Params    string    `db:"params"` // YAML
}

// summaryRow is the database shape of a ScenarioSummary. An unreachable
// mean latency is stored as NULL.
type summaryRow struct {
	RunID              string          `db:"run_id"`
	Scenario           int             `db:"scenario"`
	TrafficClass       string          `db:"traffic_class"`
	Users              int             `db:"users"`
	MeanLatencyMs      sql.NullFloat64 `db:"mean_latency_ms"`
	MeanThroughputMbps float64         `db:"mean_throughput_mbps"`
	DropRate           float64         `db:"drop_rate"`
	EfficiencyGainPct  float64         `db:"efficiency_gain_pct"`
	LatencyP50Ms       float64         `db:"latency_p50_ms"`
	LatencyP95Ms       float64         `db:"latency_p95_ms"`
	LatencyP99Ms       float64         `db:"latency_p99_ms"`
	LatencyStdDevMs    float64         `db:"latency_stddev_ms"`
	CPUPercent         sql.NullFloat64 `db:"cpu_percent"`
	MemoryUsedMB       sql.NullFloat64 `db:"memory_used_mb"`
}

// Archive is a handle on the run database. It is safe for concurrent use.
type Archive struct {
	db   *sqlx.DB
	path string
}

// Open connects to (and if needed creates) the database at path
func Open(path string) (*Archive, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fail(path, errors.Wrap(err, "connecting to archive"))
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fail(path, errors.Wrap(err, "creating archive schema"))
	}
	return &Archive{db: db, path: path}, nil
}

// Close closes the database
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveRun stores a run and all its summaries in one transaction
func (a *Archive) SaveRun(ctx context.Context, runID string, seed int64, params *config.SimulationParameters, summaries []models.ScenarioSummary) error {
	paramsYAML, err := config.Marshal(params)
	if err != nil {
		return fail(a.path, err)
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fail(a.path, errors.Wrap(err, "starting transaction"))
	}
	defer tx.Rollback()

	run := Run{
		ID:        runID,
		CreatedAt: time.Now().UTC(),
		Seed:      seed,
		Scenarios: len(summaries),
		Params:    string(paramsYAML),
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO runs
		(id, created_at, seed, scenarios, params)
		VALUES (:id, :created_at, :seed, :scenarios, :params)`, run); err != nil {
		return fail(a.path, errors.Wrap(err, "inserting run"))
	}

	for _, s := range summaries {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO summaries
			(run_id, scenario, traffic_class, users,
				mean_latency_ms, mean_throughput_mbps, drop_rate, efficiency_gain_pct,
				latency_p50_ms, latency_p95_ms, latency_p99_ms, latency_stddev_ms,
				cpu_percent, memory_used_mb)
			VALUES (:run_id, :scenario, :traffic_class, :users,
				:mean_latency_ms, :mean_throughput_mbps, :drop_rate, :efficiency_gain_pct,
				:latency_p50_ms, :latency_p95_ms, :latency_p99_ms, :latency_stddev_ms,
				:cpu_percent, :memory_used_mb)`, toRow(runID, s)); err != nil {
			return fail(a.path, errors.Wrapf(err, "inserting scenario %d", s.Scenario))
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(a.path, errors.Wrap(err, "committing run"))
	}
	return nil
}

// ListRuns returns archived runs, newest first
func (a *Archive) ListRuns(ctx context.Context) ([]Run, error) {
	runs := []Run{}
	err := a.db.SelectContext(ctx, &runs, `SELECT id, created_at, seed, scenarios, params
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fail(a.path, errors.Wrap(err, "listing runs"))
	}
	return runs, nil
}

// Summaries returns the summaries of a run in scenario order
func (a *Archive) Summaries(ctx context.Context, runID string) ([]models.ScenarioSummary, error) {
	rows := []summaryRow{}
	err := a.db.SelectContext(ctx, &rows, `SELECT * FROM summaries
		WHERE run_id = ? ORDER BY scenario`, runID)
	if err != nil {
		return nil, fail(a.path, errors.Wrapf(err, "loading summaries of %s", runID))
	}
	out := make([]models.ScenarioSummary, len(rows))
	for i, r := range rows {
		out[i] = r.summary()
	}
	return out, nil
}

func toRow(runID string, s models.ScenarioSummary) summaryRow {
	r := summaryRow{
		RunID:              runID,
		Scenario:           s.Scenario,
		TrafficClass:       s.TrafficClass,
		Users:              s.Users,
		MeanThroughputMbps: s.MeanThroughputMbps,
		DropRate:           s.DropRate,
		EfficiencyGainPct:  s.EfficiencyGainPct,
		LatencyP50Ms:       s.LatencyP50Ms,
		LatencyP95Ms:       s.LatencyP95Ms,
		LatencyP99Ms:       s.LatencyP99Ms,
		LatencyStdDevMs:    s.LatencyStdDevMs,
	}
	if s.Reachable() {
		r.MeanLatencyMs = sql.NullFloat64{Float64: s.MeanLatencyMs, Valid: true}
	}
	if s.Host != nil {
		r.CPUPercent = sql.NullFloat64{Float64: s.Host.CPUPercent, Valid: true}
		r.MemoryUsedMB = sql.NullFloat64{Float64: s.Host.MemoryUsedMB, Valid: true}
	}
	return r
}

func (r summaryRow) summary() models.ScenarioSummary {
	s := models.ScenarioSummary{
		Scenario:           r.Scenario,
		TrafficClass:       r.TrafficClass,
		Users:              r.Users,
		MeanLatencyMs:      math.Inf(1),
		MeanThroughputMbps: r.MeanThroughputMbps,
		DropRate:           r.DropRate,
		EfficiencyGainPct:  r.EfficiencyGainPct,
		LatencyP50Ms:       r.LatencyP50Ms,
		LatencyP95Ms:       r.LatencyP95Ms,
		LatencyP99Ms:       r.LatencyP99Ms,
		LatencyStdDevMs:    r.LatencyStdDevMs,
	}
	if r.MeanLatencyMs.Valid {
		s.MeanLatencyMs = r.MeanLatencyMs.Float64
	}
	if r.CPUPercent.Valid || r.MemoryUsedMB.Valid {
		s.Host = &models.HostSnapshot{CPUPercent: r.CPUPercent.Float64, MemoryUsedMB: r.MemoryUsedMB.Float64}
	}
	return s
}

func fail(path string, err error) error {
	return &models.PersistenceFailure{Target: path, Err: err}
}
