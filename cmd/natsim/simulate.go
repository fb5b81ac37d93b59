package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/natsim/internal/archive"
	"github.com/GoSim-25-26J-441/natsim/internal/engine"
	"github.com/GoSim-25-26J-441/natsim/internal/export"
	"github.com/GoSim-25-26J-441/natsim/internal/resource"
	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/GoSim-25-26J-441/natsim/pkg/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// ResultsFile is the CSV written next to the charts
const ResultsFile = "simulation_results.csv"

type simulateOptions struct {
	Users        int
	Adoption     float64
	Scenarios    int
	ConfigPath   string
	Seed         int64
	OutDir       string
	LogFile      string
	ArchivePath  string
	NoProbe      bool
	NoProgress   bool
	ProbeTimeout time.Duration
}

func registerSimulate(rootCmd *cobra.Command) {
	opts := &simulateOptions{}
	subCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Runs a batch of scenarios and writes CSV and HTML reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulate(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	flags := subCmd.Flags()
	flags.IntVar(&opts.Users, "users", 5000, "number of users to simulate")
	flags.Float64Var(&opts.Adoption, "ipv6", 0.05, "direct path (IPv6) adoption rate, 0 to 1")
	flags.IntVar(&opts.Scenarios, "scenarios", 10, "number of scenarios to run")
	flags.StringVar(&opts.ConfigPath, "config", "config.yaml", "path to the YAML configuration")
	flags.Int64Var(&opts.Seed, "seed", 0, "random seed (0 picks one from the clock)")
	flags.StringVar(&opts.OutDir, "out-dir", ".", "directory for the CSV and charts")
	flags.StringVar(&opts.LogFile, "log-file", "simulation.log", "log file, appended to (empty disables)")
	flags.StringVar(&opts.ArchivePath, "archive", "", "SQLite file to archive the run in")
	flags.BoolVar(&opts.NoProbe, "no-probe", false, "skip the ICMP reachability probe")
	flags.BoolVar(&opts.NoProgress, "no-progress", false, "hide the progress bar")
	flags.DurationVar(&opts.ProbeTimeout, "probe-timeout", 2*time.Second, "reply timeout for the reachability probe")
	rootCmd.AddCommand(subCmd)
}

// loadParameters writes a default config carrying the CLI overrides when none
// exists, then loads it and applies the overrides on top.
func loadParameters(opts *simulateOptions) (*config.SimulationParameters, error) {
	defaults := config.Default()
	applyOverrides(defaults, opts)
	created, err := config.WriteDefault(opts.ConfigPath, defaults)
	if err != nil {
		logger.Warn("could not write default config", "path", opts.ConfigPath, "error", err)
	} else if created {
		logger.Info("created default config file", "path", opts.ConfigPath)
	}

	params, err := config.Read(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(params, opts)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func applyOverrides(p *config.SimulationParameters, opts *simulateOptions) {
	p.Population = opts.Users
	p.Adoption = opts.Adoption
	if opts.Seed != 0 {
		p.Seed = opts.Seed
	}
}

// setupLogger points the default logger at the console and, when a log file
// is configured, at that file too.
func setupLogger(level, logFile string, errOut io.Writer) (func() error, error) {
	if logFile == "" {
		logger.SetDefault(logger.NewText(level, errOut))
		return func() error { return nil }, nil
	}
	l, closeLog, err := logger.NewTee(level, logFile, errOut)
	if err != nil {
		return nil, err
	}
	logger.SetDefault(l)
	return closeLog, nil
}

func runSimulate(ctx context.Context, opts *simulateOptions, out, errOut io.Writer) error {
	closeLog, err := setupLogger("info", opts.LogFile, errOut)
	if err != nil {
		return err
	}
	defer func() { closeLog() }()

	params, err := loadParameters(opts)
	if err != nil {
		return err
	}
	if params.LogLevel != "" && params.LogLevel != "info" {
		closeLog()
		reopened, err := setupLogger(params.LogLevel, opts.LogFile, errOut)
		if err != nil {
			closeLog = func() error { return nil }
			return err
		}
		closeLog = reopened
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return &models.PersistenceFailure{Target: opts.OutDir, Err: err}
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger.Default),
		engine.WithHostProbe(resource.NewSystemProbe(0)),
	}
	if !opts.NoProgress {
		bar := progressbar.NewOptions(opts.Scenarios,
			progressbar.OptionSetWriter(errOut),
			progressbar.OptionSetDescription("scenarios"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
		)
		defer bar.Finish()
		engineOpts = append(engineOpts, engine.WithProgress(func(engine.Progress) {
			_ = bar.Add(1)
		}, opts.Scenarios))
	}

	eng, err := engine.New(params, engineOpts...)
	if err != nil {
		return err
	}
	logger.Info("starting simulation",
		"users", params.Population,
		"ipv6_adoption", params.Adoption,
		"direct_users", params.DirectUsers(),
		"scenarios", opts.Scenarios,
		"seed", eng.Seed())

	results, err := eng.RunManyResults(ctx, opts.Scenarios)
	if err != nil {
		return fmt.Errorf("simulation stopped after %d of %d scenarios: %w", len(results), opts.Scenarios, err)
	}
	summaries := make([]models.ScenarioSummary, len(results))
	for i, r := range results {
		summaries[i] = r.Summary
	}

	// Export failures do not stop the report: the table and probe still run
	// and the failures are returned at the end.
	var persistErrs []error
	csvPath := filepath.Join(opts.OutDir, ResultsFile)
	if err := export.WriteCSVFile(csvPath, summaries); err != nil {
		logger.Error("failed to write results", "path", csvPath, "error", err)
		persistErrs = append(persistErrs, err)
	} else {
		logger.Info("results saved", "path", csvPath)
	}

	charts, err := export.RenderAll(opts.OutDir, summaries, params.ClassNames())
	if err != nil {
		logger.Error("failed to render charts", "error", err)
		persistErrs = append(persistErrs, err)
	}
	for _, c := range charts {
		logger.Info("chart saved", "path", c)
	}

	if opts.ArchivePath != "" {
		if err := archiveRun(ctx, opts.ArchivePath, eng.Seed(), params, summaries); err != nil {
			logger.Error("failed to archive run", "path", opts.ArchivePath, "error", err)
			persistErrs = append(persistErrs, err)
		}
	}

	printSummaryTable(out, summaries)

	if !opts.NoProbe {
		runProbe(ctx, out, opts.ProbeTimeout)
	}
	return errors.Join(persistErrs...)
}

func archiveRun(ctx context.Context, path string, seed int64, params *config.SimulationParameters, summaries []models.ScenarioSummary) error {
	arc, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer arc.Close()

	runID := utils.GenerateRunID()
	if err := arc.SaveRun(ctx, runID, seed, params, summaries); err != nil {
		return err
	}
	logger.Info("run archived", "path", path, "run_id", runID)
	return nil
}
