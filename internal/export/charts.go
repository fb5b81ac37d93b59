package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	// TrendsFile is the file name RenderAll uses for the trend charts
	TrendsFile = "performance_trends.html"
	// HistogramFile is the file name RenderAll uses for the histogram
	HistogramFile = "throughput_distribution.html"
	// DefaultBins is the histogram bin count used by RenderAll
	DefaultBins = 20
)

// echarts skips points whose value is "-"
const missing = "-"

// RenderTrends renders latency and throughput per scenario, one series per
// traffic class. Scenarios of other classes and unreachable scenarios are
// gaps in a series.
func RenderTrends(w io.Writer, summaries []models.ScenarioSummary, classes []string) error {
	classes = classList(summaries, classes)
	xs := make([]int, len(summaries))
	for i, s := range summaries {
		xs[i] = s.Scenario
	}

	latency := charts.NewLine()
	latency.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Average latency per scenario"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Scenario"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latency (ms)"}),
	)
	latency.SetXAxis(xs)

	throughput := charts.NewLine()
	throughput.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Average throughput per scenario"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Scenario"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Throughput (Mbps)"}),
	)
	throughput.SetXAxis(xs)

	for _, class := range classes {
		lat := make([]opts.LineData, len(summaries))
		thr := make([]opts.LineData, len(summaries))
		for i, s := range summaries {
			lat[i] = opts.LineData{Value: missing}
			thr[i] = opts.LineData{Value: missing}
			if s.TrafficClass != class {
				continue
			}
			thr[i] = opts.LineData{Value: s.MeanThroughputMbps}
			if !math.IsInf(s.MeanLatencyMs, 0) {
				lat[i] = opts.LineData{Value: s.MeanLatencyMs}
			}
		}
		latency.AddSeries(class, lat)
		throughput.AddSeries(class, thr)
	}

	page := components.NewPage()
	page.PageTitle = "Network performance trends"
	page.AddCharts(latency, throughput)
	return page.Render(w)
}

// RenderThroughputHistogram renders the distribution of scenario mean
// throughput as overlaid bars, one series per traffic class.
func RenderThroughputHistogram(w io.Writer, summaries []models.ScenarioSummary, classes []string, bins int) error {
	classes = classList(summaries, classes)
	edges := binEdges(summaries, bins)

	labels := make([]string, len(edges)-1)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.1f-%.1f", edges[i], edges[i+1])
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Throughput distribution"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Throughput (Mbps)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Scenarios"}),
	)
	bar.SetXAxis(labels)

	for _, class := range classes {
		counts := Histogram(summaries, class, edges)
		data := make([]opts.BarData, len(counts))
		for i, c := range counts {
			data[i] = opts.BarData{Value: c}
		}
		bar.AddSeries(class, data)
	}

	page := components.NewPage()
	page.PageTitle = "Throughput distribution"
	page.AddCharts(bar)
	return page.Render(w)
}

// RenderAll writes both chart files into dir and returns their paths
func RenderAll(dir string, summaries []models.ScenarioSummary, classes []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &models.PersistenceFailure{Target: dir, Err: err}
	}
	outputs := []struct {
		name   string
		render func(io.Writer) error
	}{
		{TrendsFile, func(w io.Writer) error { return RenderTrends(w, summaries, classes) }},
		{HistogramFile, func(w io.Writer) error { return RenderThroughputHistogram(w, summaries, classes, DefaultBins) }},
	}

	paths := make([]string, 0, len(outputs))
	for _, out := range outputs {
		path := filepath.Join(dir, out.name)
		if err := renderFile(path, out.render); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func renderFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return &models.PersistenceFailure{Target: path, Err: err}
	}
	if err := render(f); err != nil {
		f.Close()
		return &models.PersistenceFailure{Target: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &models.PersistenceFailure{Target: path, Err: err}
	}
	return nil
}

// Histogram counts the scenarios of class whose mean throughput falls in
// each [edges[i], edges[i+1]) bin. The last bin is closed.
func Histogram(summaries []models.ScenarioSummary, class string, edges []float64) []int {
	if len(edges) < 2 {
		return nil
	}
	counts := make([]int, len(edges)-1)
	last := len(counts) - 1
	for _, s := range summaries {
		if s.TrafficClass != class {
			continue
		}
		v := s.MeanThroughputMbps
		if v < edges[0] || v > edges[len(edges)-1] {
			continue
		}
		i := sort.SearchFloat64s(edges, v)
		if i < len(edges) && edges[i] == v {
			i++
		}
		i--
		if i > last {
			i = last
		}
		if i < 0 {
			i = 0
		}
		counts[i]++
	}
	return counts
}

// binEdges spans all summaries' mean throughput with bins equal-width bins
func binEdges(summaries []models.ScenarioSummary, bins int) []float64 {
	if bins < 1 {
		bins = 1
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range summaries {
		lo = math.Min(lo, s.MeanThroughputMbps)
		hi = math.Max(hi, s.MeanThroughputMbps)
	}
	if len(summaries) == 0 {
		lo, hi = 0, 1
	}
	if hi <= lo {
		hi = lo + 1
	}
	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi
	return edges
}

// classList returns classes, or the sorted distinct classes of summaries
// when classes is empty.
func classList(summaries []models.ScenarioSummary, classes []string) []string {
	if len(classes) > 0 {
		return classes
	}
	seen := make(map[string]bool)
	for _, s := range summaries {
		if !seen[s.TrafficClass] {
			seen[s.TrafficClass] = true
			classes = append(classes, s.TrafficClass)
		}
	}
	sort.Strings(classes)
	return classes
}
