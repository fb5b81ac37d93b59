package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/fatih/color"
	"github.com/montanaflynn/stats"
)

// printSummaryTable prints one row per scenario. Gains are green when the
// direct path wins and red otherwise. The coloured column comes last so
// escape codes do not skew the tabwriter alignment.
func printSummaryTable(out io.Writer, summaries []models.ScenarioSummary) {
	good := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tCLASS\tLATENCY (ms)\tTHROUGHPUT (Mbps)\tDROP RATE\tCPU (%)\tMEM (MB)\tGAIN (%)")
	for _, s := range summaries {
		latency := fmt.Sprintf("%.2f", s.MeanLatencyMs)
		if !s.Reachable() {
			latency = "unreachable"
		}
		gain := fmt.Sprintf("%+.2f", s.EfficiencyGainPct)
		if s.EfficiencyGainPct > 0 {
			gain = good(gain)
		} else if s.EfficiencyGainPct < 0 {
			gain = bad(gain)
		}
		cpu, mem := "-", "-"
		if s.Host != nil {
			cpu = fmt.Sprintf("%.1f", s.Host.CPUPercent)
			mem = fmt.Sprintf("%.0f", s.Host.MemoryUsedMB)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.4f\t%s\t%s\t%s\n",
			s.Scenario, s.TrafficClass, latency, s.MeanThroughputMbps, s.DropRate, cpu, mem, gain)
	}
	tw.Flush()

	if len(summaries) == 0 {
		return
	}
	latencies := make([]float64, 0, len(summaries))
	throughputs := make([]float64, 0, len(summaries))
	for _, s := range summaries {
		throughputs = append(throughputs, s.MeanThroughputMbps)
		if s.Reachable() {
			latencies = append(latencies, s.MeanLatencyMs)
		}
	}
	avgLat := math.Inf(1)
	if len(latencies) > 0 {
		avgLat, _ = stats.Mean(latencies)
	}
	avgTput, _ := stats.Mean(throughputs)
	sdTput, _ := stats.StandardDeviation(throughputs)
	fmt.Fprintf(out, "\n%s %d scenarios, mean latency %.2f ms over %d reachable, mean throughput %.2f Mbps (sd %.2f)\n",
		bold("overall:"), len(summaries), avgLat, len(latencies), avgTput, sdTput)
}
