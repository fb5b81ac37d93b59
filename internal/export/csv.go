// Package export writes scenario summaries to CSV and renders them as HTML
// charts. Raw per-user outcomes are never exported.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
)

// CSVHeader lists the exported columns in order
var CSVHeader = []string{
	"scenario",
	"avg_latency_ms",
	"avg_throughput_mbps",
	"drop_rate",
	"efficiency_gain_pct",
	"traffic_type",
	"cpu_usage",
	"memory_usage_mb",
}

// WriteCSV writes one row per summary
func WriteCSV(w io.Writer, summaries []models.ScenarioSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := cw.Write(csvRow(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes summaries to path, creating parent directories
func WriteCSVFile(path string, summaries []models.ScenarioSummary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &models.PersistenceFailure{Target: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &models.PersistenceFailure{Target: path, Err: err}
	}
	if err := WriteCSV(f, summaries); err != nil {
		f.Close()
		return &models.PersistenceFailure{Target: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &models.PersistenceFailure{Target: path, Err: err}
	}
	return nil
}

func csvRow(s models.ScenarioSummary) []string {
	row := []string{
		strconv.Itoa(s.Scenario),
		formatFloat(s.MeanLatencyMs),
		formatFloat(s.MeanThroughputMbps),
		formatFloat(s.DropRate),
		formatFloat(s.EfficiencyGainPct),
		s.TrafficClass,
		"",
		"",
	}
	if s.Host != nil {
		row[6] = formatFloat(s.Host.CPUPercent)
		row[7] = formatFloat(s.Host.MemoryUsedMB)
	}
	return row
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseFloat reverses formatFloat
func ParseFloat(s string) (float64, error) {
	switch s {
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}
