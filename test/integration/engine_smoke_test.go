//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/natsim/internal/engine"
	"github.com/GoSim-25-26J-441/natsim/internal/export"
	"github.com/GoSim-25-26J-441/natsim/pkg/config"
)

// TestIntegration_DefaultRunExportsCSV runs the default population end to end
// and reads the CSV back.
func TestIntegration_DefaultRunExportsCSV(t *testing.T) {
	params := config.Default()
	params.Seed = 5

	summaries, err := engine.RunMany(context.Background(), 5, params)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, summaries); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header and 5 rows, got %d", len(rows))
	}
	for i, row := range rows[1:] {
		lat, err := export.ParseFloat(row[1])
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		want := summaries[i].MeanLatencyMs
		if lat != want && !(math.IsInf(lat, 1) && math.IsInf(want, 1)) {
			t.Fatalf("row %d latency %v, want %v", i, lat, want)
		}
	}
}
