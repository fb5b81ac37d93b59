package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestRenderTrends(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTrends(&buf, sampleSummaries(), nil))
	html := buf.String()
	require.Contains(t, html, "echarts")
	require.Contains(t, html, "Average latency per scenario")
	require.Contains(t, html, "Average throughput per scenario")
	require.Contains(t, html, "video")
}

func TestRenderThroughputHistogram(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderThroughputHistogram(&buf, sampleSummaries(), []string{"http", "video"}, 4))
	require.Contains(t, buf.String(), "Throughput distribution")
}

func TestRenderAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	paths, err := RenderAll(dir, sampleSummaries(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, TrendsFile), filepath.Join(dir, HistogramFile)}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		require.Positive(t, info.Size())
	}
}

func TestRenderAllFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := RenderAll(blocker, sampleSummaries(), nil)
	var persistErr *models.PersistenceFailure
	require.True(t, errors.As(err, &persistErr), "got %v", err)
}

func TestHistogram(t *testing.T) {
	summaries := []models.ScenarioSummary{
		{TrafficClass: "http", MeanThroughputMbps: 0},
		{TrafficClass: "http", MeanThroughputMbps: 4.9},
		{TrafficClass: "http", MeanThroughputMbps: 5},
		{TrafficClass: "http", MeanThroughputMbps: 10},
		{TrafficClass: "video", MeanThroughputMbps: 7},
	}
	edges := []float64{0, 5, 10}
	require.Equal(t, []int{2, 2}, Histogram(summaries, "http", edges))
	require.Equal(t, []int{0, 1}, Histogram(summaries, "video", edges))
	require.Nil(t, Histogram(summaries, "http", []float64{1}))
}

func TestBinEdges(t *testing.T) {
	edges := binEdges(sampleSummaries(), 4)
	require.Len(t, edges, 5)
	require.Equal(t, 18.25, edges[0])
	require.Equal(t, 30.0, edges[4])

	single := binEdges([]models.ScenarioSummary{{MeanThroughputMbps: 3}}, 2)
	require.Equal(t, []float64{3, 3.5, 4}, single)
}
