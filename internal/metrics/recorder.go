package metrics

import (
	"net/http"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exports scenario and run telemetry. Each Recorder owns its own
// registry so several can coexist in one process (tests, embedded daemons).
type Recorder struct {
	registry *prometheus.Registry

	scenarios       *prometheus.CounterVec
	userEvaluations prometheus.Counter
	dropRate        *prometheus.HistogramVec
	meanLatency     *prometheus.HistogramVec
	meanThroughput  *prometheus.HistogramVec
	unreachable     *prometheus.CounterVec
	runs            *prometheus.CounterVec
}

// NewRecorder creates a Recorder with all collectors registered
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natsim_scenarios_total",
			Help: "Number of completed scenarios",
		}, []string{"traffic_class"}),
		userEvaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "natsim_user_evaluations_total",
			Help: "Number of per-user outcomes evaluated",
		}),
		dropRate: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "natsim_scenario_drop_rate",
			Help:    "Fraction of users dropped per scenario",
			Buckets: prometheus.LinearBuckets(0, 0.01, 11),
		}, []string{"traffic_class"}),
		meanLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "natsim_scenario_mean_latency_ms",
			Help:    "Mean latency of surviving users per scenario",
			Buckets: prometheus.ExponentialBuckets(5, 1.5, 10),
		}, []string{"traffic_class"}),
		meanThroughput: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "natsim_scenario_mean_throughput_mbps",
			Help:    "Mean throughput per scenario",
			Buckets: prometheus.LinearBuckets(0, 10, 12),
		}, []string{"traffic_class"}),
		unreachable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natsim_scenarios_unreachable_total",
			Help: "Scenarios in which every user was dropped",
		}, []string{"traffic_class"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "natsim_runs_total",
			Help: "Number of finished daemon runs by status",
		}, []string{"status"}),
	}
	reg.MustRegister(
		r.scenarios,
		r.userEvaluations,
		r.dropRate,
		r.meanLatency,
		r.meanThroughput,
		r.unreachable,
		r.runs,
	)
	return r
}

// ObserveScenario records one finished scenario
func (r *Recorder) ObserveScenario(s models.ScenarioSummary) {
	class := s.TrafficClass
	r.scenarios.WithLabelValues(class).Inc()
	r.userEvaluations.Add(float64(s.Users))
	r.dropRate.WithLabelValues(class).Observe(s.DropRate)
	r.meanThroughput.WithLabelValues(class).Observe(s.MeanThroughputMbps)
	if !s.Reachable() {
		r.unreachable.WithLabelValues(class).Inc()
		return
	}
	r.meanLatency.WithLabelValues(class).Observe(s.MeanLatencyMs)
}

// ObserveRun records a run reaching a terminal status
func (r *Recorder) ObserveRun(status models.RunStatus) {
	r.runs.WithLabelValues(string(status)).Inc()
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
