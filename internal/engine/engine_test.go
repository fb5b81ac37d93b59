package engine

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/natsim/internal/metrics"
	"github.com/GoSim-25-26J-441/natsim/internal/resource"
	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/google/go-cmp/cmp"
)

var quiet = WithLogger(logger.New("error", io.Discard))

func smallParams() *config.SimulationParameters {
	p := config.Default()
	p.Population = 500
	p.Seed = 42
	return p
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	p := config.Default()
	p.Adoption = 2
	_, err := New(p)
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}

	if _, err := New(nil); !errors.Is(err, config.ErrInvalidParameter) {
		t.Fatalf("Expected ErrInvalidParameter for nil params, got %v", err)
	}
}

func TestNewCopiesParameters(t *testing.T) {
	p := smallParams()
	e, err := New(p, quiet)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Population = 1
	p.TrafficProfiles["http"] = config.TrafficProfile{}
	if got := e.Params(); got.Population != 500 || got.TrafficProfiles["http"].ThroughputMax != 60 {
		t.Errorf("engine parameters changed with the caller's copy: %+v", got)
	}
}

func TestNewPicksSeed(t *testing.T) {
	p := smallParams()
	p.Seed = 0
	e, err := New(p, quiet)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Seed() == 0 {
		t.Error("Expected a non-zero seed")
	}

	e, err = New(p, quiet, WithSeed(99))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Seed() != 99 {
		t.Errorf("Expected seed 99, got %d", e.Seed())
	}
}

func TestRunScenarioUnknownClass(t *testing.T) {
	_, err := RunScenario(context.Background(), "ftp", smallParams())
	if !errors.Is(err, config.ErrUnknownTrafficClass) {
		t.Fatalf("Expected ErrUnknownTrafficClass, got %v", err)
	}
}

func TestRunScenarioInvariants(t *testing.T) {
	e, err := New(smallParams(), quiet)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, class := range []string{"http", "video", "censored"} {
		s, err := e.RunScenario(context.Background(), class)
		if err != nil {
			t.Fatalf("RunScenario(%s): %v", class, err)
		}
		if s.DropRate < 0 || s.DropRate > 1 {
			t.Errorf("%s: drop rate %v out of range", class, s.DropRate)
		}
		if s.MeanThroughputMbps < 0 {
			t.Errorf("%s: negative throughput %v", class, s.MeanThroughputMbps)
		}
		if s.Users != 500 {
			t.Errorf("%s: expected 500 users, got %d", class, s.Users)
		}
		if s.TrafficClass != class {
			t.Errorf("Expected class %s, got %s", class, s.TrafficClass)
		}
	}
}

func TestRunScenarioIsReproducible(t *testing.T) {
	p := smallParams()
	first, err := RunScenario(context.Background(), "video", p)
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}

	for _, workers := range []int{1, 3, 8, 64} {
		p := smallParams()
		p.MaxThreads = workers
		again, err := RunScenario(context.Background(), "video", p)
		if err != nil {
			t.Fatalf("RunScenario: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Errorf("workers=%d: summary differs (-first +again):\n%s", workers, diff)
		}
	}
}

func TestRunScenarioWithoutNoise(t *testing.T) {
	p := config.Default()
	p.Population = 1000
	p.Adoption = 0
	p.PacketLossShared = 0
	p.CongestionProbability = 0
	p.JitterFactor = 0
	p.Seed = 3

	s, err := RunScenario(context.Background(), "http", p)
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	if s.DropRate != 0 {
		t.Errorf("Expected no drops, got %v", s.DropRate)
	}
	// base 20 plus a translation overhead averaging 10
	if math.Abs(s.MeanLatencyMs-30) > 2 {
		t.Errorf("Expected mean latency near 30, got %v", s.MeanLatencyMs)
	}
	if want := (20 - s.MeanLatencyMs) / 20 * 100; s.EfficiencyGainPct != want {
		t.Errorf("Expected efficiency gain %v, got %v", want, s.EfficiencyGainPct)
	}
}

func TestRunScenarioAllDropped(t *testing.T) {
	p := smallParams()
	p.Adoption = 0
	p.PacketLossShared = 1

	s, err := RunScenario(context.Background(), "http", p)
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	if s.DropRate != 1 {
		t.Errorf("Expected drop rate 1, got %v", s.DropRate)
	}
	if !math.IsInf(s.MeanLatencyMs, 1) || s.EfficiencyGainPct != 0 {
		t.Errorf("Expected unreachable summary, got %+v", s)
	}
}

func TestRunScenarioOutcomes(t *testing.T) {
	p := smallParams()
	p.Adoption = 0.3
	p.PacketLossShared = 0.5
	e, err := New(p, quiet, WithOutcomes(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := e.RunScenarioResult(context.Background(), "http")
	if err != nil {
		t.Fatalf("RunScenarioResult: %v", err)
	}
	if len(res.Outcomes) != p.Population {
		t.Fatalf("Expected %d outcomes, got %d", p.Population, len(res.Outcomes))
	}

	dropped := 0
	for i, o := range res.Outcomes {
		if o.UserIndex != i {
			t.Fatalf("outcome %d has index %d", i, o.UserIndex)
		}
		wantLabel := models.PathShared
		if i < p.DirectUsers() {
			wantLabel = models.PathDirect
		}
		if o.Path != wantLabel {
			t.Errorf("user %d: label %s, want %s", i, o.Path, wantLabel)
		}
		if o.Routed == models.PathDirect && o.Dropped {
			t.Errorf("user %d: direct-routed outcome dropped", i)
		}
		if o.Dropped {
			dropped++
		}
	}
	if want := float64(dropped) / float64(p.Population); res.Summary.DropRate != want {
		t.Errorf("Expected drop rate %v, got %v", want, res.Summary.DropRate)
	}

	e, err = New(p, quiet)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err = e.RunScenarioResult(context.Background(), "http")
	if err != nil {
		t.Fatalf("RunScenarioResult: %v", err)
	}
	if res.Outcomes != nil {
		t.Error("Expected outcomes to be discarded by default")
	}
}

func TestRunScenarioCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(smallParams(), quiet)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := e.RunScenario(ctx, "http")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if diff := cmp.Diff(models.ScenarioSummary{}, s); diff != "" {
		t.Errorf("Expected zero summary on cancel:\n%s", diff)
	}
}

func TestRunManyDefaults(t *testing.T) {
	p := config.Default()
	p.Seed = 7

	var mu sync.Mutex
	var seen []Progress
	rec := metrics.NewRecorder()
	probe := resource.StaticProbe{Value: models.HostSnapshot{CPUPercent: 10, MemoryUsedMB: 512}}

	e, err := New(p, quiet,
		WithHostProbe(probe),
		WithRecorder(rec),
		WithProgress(func(ev Progress) {
			mu.Lock()
			seen = append(seen, ev)
			mu.Unlock()
		}, 8))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summaries, err := e.RunMany(context.Background(), 5)
	if err != nil {
		t.Fatalf("RunMany: %v", err)
	}
	if len(summaries) != 5 {
		t.Fatalf("Expected 5 summaries, got %d", len(summaries))
	}
	for i, s := range summaries {
		if s.Scenario != i+1 {
			t.Errorf("summary %d has scenario %d", i, s.Scenario)
		}
		if _, ok := p.TrafficProfiles[s.TrafficClass]; !ok {
			t.Errorf("unexpected class %q", s.TrafficClass)
		}
		if s.Host == nil || s.Host.MemoryUsedMB != 512 {
			t.Errorf("scenario %d: missing host snapshot", s.Scenario)
		}
	}
	if got := scenarioCount(t, rec); got != 5 {
		t.Errorf("Expected 5 recorded scenarios, got %v", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 5 {
		t.Fatalf("Expected 5 progress notifications, got %d", len(seen))
	}
	for i, ev := range seen {
		if ev.Completed != i+1 || ev.Total != 5 || ev.Summary.Scenario != i+1 {
			t.Errorf("unexpected progress %d: %+v", i, ev)
		}
	}
}

func scenarioCount(t *testing.T, rec *metrics.Recorder) float64 {
	t.Helper()
	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != "natsim_scenarios_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestRunManyIsReproducible(t *testing.T) {
	run := func() []models.ScenarioSummary {
		e, err := New(smallParams(), quiet)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		out, err := e.RunMany(context.Background(), 6)
		if err != nil {
			t.Fatalf("RunMany: %v", err)
		}
		return out
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("seeded runs differ:\n%s", diff)
	}
}

func TestRunManyHostProbeFailure(t *testing.T) {
	probe := resource.StaticProbe{Err: errors.New("no procfs")}
	e, err := New(smallParams(), quiet, WithHostProbe(probe))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	summaries, err := e.RunMany(context.Background(), 2)
	if err != nil {
		t.Fatalf("RunMany should not fail on probe errors: %v", err)
	}
	for _, s := range summaries {
		if s.Host != nil {
			t.Errorf("scenario %d: expected no host snapshot", s.Scenario)
		}
	}
}

func TestRunManyZeroAndNegative(t *testing.T) {
	summaries, err := RunMany(context.Background(), 0, smallParams())
	if err != nil || len(summaries) != 0 {
		t.Fatalf("RunMany(0) = %v, %v", summaries, err)
	}
	if _, err := RunMany(context.Background(), -1, smallParams()); !errors.Is(err, config.ErrInvalidParameter) {
		t.Fatalf("Expected ErrInvalidParameter, got %v", err)
	}
}

func TestRunManyCancelledKeepsFinishedScenarios(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e, err := New(smallParams(), quiet, WithProgress(func(ev Progress) {
		if ev.Completed >= 2 {
			cancel()
		}
	}, 64))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := e.RunManyResults(ctx, 1000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(results) < 2 || len(results) >= 1000 {
		t.Fatalf("Expected a partial run, got %d results", len(results))
	}
	for i, r := range results {
		if r.Summary.Scenario != i+1 {
			t.Errorf("result %d has scenario %d", i, r.Summary.Scenario)
		}
	}

	if _, err := e.RunMany(ctx, 3); err == nil {
		t.Error("Expected RunMany to fail on a cancelled context")
	}
}

func TestProgressPumpNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	delivered := 0
	pump := newProgressPump(func(Progress) {
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
	}, 1, logger.New("error", io.Discard))

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 50; i++ {
			pump.notify(Progress{Completed: i, Total: 50})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("notify blocked on a slow consumer")
	}

	close(release)
	pump.close()
	pump.close()

	mu.Lock()
	defer mu.Unlock()
	if delivered < 1 || delivered > 2 {
		t.Errorf("Expected 1 or 2 delivered notifications, got %d", delivered)
	}
}

func TestProgressPumpWithoutCallback(t *testing.T) {
	pump := newProgressPump(nil, 4, logger.New("error", io.Discard))
	pump.notify(Progress{Completed: 1, Total: 1})
	pump.close()
}
