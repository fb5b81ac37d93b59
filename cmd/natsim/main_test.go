package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/natsim/internal/archive"
	"github.com/GoSim-25-26J-441/natsim/internal/export"
	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func testOptions(dir string) *simulateOptions {
	return &simulateOptions{
		Users:      300,
		Adoption:   0.2,
		Scenarios:  3,
		ConfigPath: filepath.Join(dir, "config.yaml"),
		Seed:       42,
		OutDir:     filepath.Join(dir, "out"),
		LogFile:    filepath.Join(dir, "simulation.log"),
		NoProbe:    true,
		NoProgress: true,
	}
}

func TestLoadParametersWritesDefaultWithOverrides(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.Users = 1234

	params, err := loadParameters(opts)
	require.NoError(t, err)
	require.Equal(t, 1234, params.Population)
	require.Equal(t, 0.2, params.Adoption)
	require.Equal(t, int64(42), params.Seed)

	data, err := os.ReadFile(opts.ConfigPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "num_users: 1234")
}

func TestLoadParametersOverridesExistingFile(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	require.NoError(t, os.WriteFile(opts.ConfigPath, []byte("num_users: 10\nnat_users_per_ip: 8\n"), 0o644))

	params, err := loadParameters(opts)
	require.NoError(t, err)
	require.Equal(t, opts.Users, params.Population)
	require.Equal(t, 8, params.SharingDensity)
}

func TestLoadParametersRejectsInvalidAdoption(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.Adoption = 1.5

	_, err := loadParameters(opts)
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "ipv6_adoption", cfgErr.Field)
}

func TestRunSimulateWritesReports(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.ArchivePath = filepath.Join(dir, "runs.db")

	var out, errOut bytes.Buffer
	require.NoError(t, runSimulate(context.Background(), opts, &out, &errOut))

	csvData, err := os.ReadFile(filepath.Join(opts.OutDir, ResultsFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, strings.Join(export.CSVHeader, ","), lines[0])

	for _, name := range []string{export.TrendsFile, export.HistogramFile} {
		info, err := os.Stat(filepath.Join(opts.OutDir, name))
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}

	logData, err := os.ReadFile(opts.LogFile)
	require.NoError(t, err)
	require.Contains(t, string(logData), "starting simulation")

	arc, err := archive.Open(opts.ArchivePath)
	require.NoError(t, err)
	defer arc.Close()
	runs, err := arc.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, int64(42), runs[0].Seed)

	require.Contains(t, out.String(), "SCENARIO")
	require.Contains(t, out.String(), "overall:")
}

func TestRunSimulateReportsExportFailure(t *testing.T) {
	color.NoColor = true
	opts := testOptions(t.TempDir())
	opts.LogFile = ""
	csvPath := filepath.Join(opts.OutDir, ResultsFile)
	require.NoError(t, os.MkdirAll(csvPath, 0o755))

	var out bytes.Buffer
	err := runSimulate(context.Background(), opts, &out, &bytes.Buffer{})
	require.Error(t, err)
	var persistErr *models.PersistenceFailure
	require.True(t, errors.As(err, &persistErr))
	require.Equal(t, csvPath, persistErr.Target)

	// the rest of the report still runs
	_, statErr := os.Stat(filepath.Join(opts.OutDir, export.TrendsFile))
	require.NoError(t, statErr)
	require.Contains(t, out.String(), "SCENARIO")
}

func TestRunSimulateReopensLoggerAtConfiguredLevel(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	require.NoError(t, os.WriteFile(opts.ConfigPath, []byte("log_level: debug\n"), 0o644))

	require.NoError(t, runSimulate(context.Background(), opts, &bytes.Buffer{}, &bytes.Buffer{}))
	logData, err := os.ReadFile(opts.LogFile)
	require.NoError(t, err)
	require.Contains(t, string(logData), "starting simulation")
}

func TestRunSimulateCancelled(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.LogFile = ""
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runSimulate(ctx, opts, &bytes.Buffer{}, &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(opts.OutDir, ResultsFile))
	require.True(t, os.IsNotExist(statErr))
}

func TestPrintSummaryTable(t *testing.T) {
	color.NoColor = true
	summaries := []models.ScenarioSummary{
		{Scenario: 1, TrafficClass: "http", MeanLatencyMs: 25, MeanThroughputMbps: 30, EfficiencyGainPct: -25,
			Host: &models.HostSnapshot{CPUPercent: 10, MemoryUsedMB: 2048}},
		{Scenario: 2, TrafficClass: "censored", MeanLatencyMs: math.Inf(1), DropRate: 1},
	}

	var buf bytes.Buffer
	printSummaryTable(&buf, summaries)
	text := buf.String()

	require.Contains(t, text, "unreachable")
	require.Contains(t, text, "-25.00")
	require.Contains(t, text, "2048")
	require.Contains(t, text, "mean latency 25.00 ms over 1 reachable")
	require.Contains(t, text, "mean throughput 15.00 Mbps (sd 15.00)")
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	run := func() string {
		var buf bytes.Buffer
		cmd := newRootCommand()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"init-config", "--config", path})
		require.NoError(t, cmd.Execute())
		return buf.String()
	}

	require.Contains(t, run(), "wrote")
	require.Contains(t, run(), "already exists")

	params, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.Default().Population, params.Population)
}
