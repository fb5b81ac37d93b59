package resource

import (
	"context"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostProbe takes a snapshot of the host running the simulation
type HostProbe interface {
	Snapshot(ctx context.Context) (models.HostSnapshot, error)
}

// SystemProbe reads CPU and memory usage from the operating system
type SystemProbe struct {
	// Interval is how long CPU usage is sampled; zero compares against the
	// previous call.
	Interval time.Duration

	mu   sync.RWMutex
	last *models.HostSnapshot
}

// NewSystemProbe creates a probe sampling CPU over interval
func NewSystemProbe(interval time.Duration) *SystemProbe {
	return &SystemProbe{Interval: interval}
}

// Snapshot returns current CPU percent and used memory in MB
func (p *SystemProbe) Snapshot(ctx context.Context) (models.HostSnapshot, error) {
	percents, err := cpu.PercentWithContext(ctx, p.Interval, false)
	if err != nil {
		return models.HostSnapshot{}, &models.ResourceProbeFailure{Resource: "cpu", Err: err}
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.HostSnapshot{}, &models.ResourceProbeFailure{Resource: "memory", Err: err}
	}

	snap := models.HostSnapshot{MemoryUsedMB: float64(vm.Used) / (1024 * 1024)}
	if len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	p.mu.Lock()
	p.last = &snap
	p.mu.Unlock()
	return snap, nil
}

// Last returns the most recent successful snapshot, if any
func (p *SystemProbe) Last() (models.HostSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return models.HostSnapshot{}, false
	}
	return *p.last, true
}

// StaticProbe always returns the same snapshot or error
type StaticProbe struct {
	Value models.HostSnapshot
	Err   error
}

// Snapshot implements HostProbe
func (p StaticProbe) Snapshot(context.Context) (models.HostSnapshot, error) {
	if p.Err != nil {
		return models.HostSnapshot{}, &models.ResourceProbeFailure{Resource: "static", Err: p.Err}
	}
	return p.Value, nil
}
