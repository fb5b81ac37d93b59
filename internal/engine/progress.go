package engine

import (
	"log/slog"
	"sync"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
)

// Progress is emitted after each scenario of RunMany
type Progress struct {
	Completed int
	Total     int
	Summary   models.ScenarioSummary
}

// ProgressFunc receives progress notifications
type ProgressFunc func(Progress)

// progressPump hands notifications to fn on a separate goroutine. notify
// never blocks: when the buffer is full the notification is dropped.
type progressPump struct {
	ch     chan Progress
	wg     sync.WaitGroup
	logger *slog.Logger
	once   sync.Once
}

func newProgressPump(fn ProgressFunc, buffer int, logger *slog.Logger) *progressPump {
	if fn == nil {
		return &progressPump{logger: logger}
	}
	if buffer < 1 {
		buffer = 1
	}
	p := &progressPump{ch: make(chan Progress, buffer), logger: logger}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for ev := range p.ch {
			fn(ev)
		}
	}()
	return p
}

func (p *progressPump) notify(ev Progress) {
	if p.ch == nil {
		return
	}
	select {
	case p.ch <- ev:
	default:
		p.logger.Debug("progress notification dropped", "completed", ev.Completed, "total", ev.Total)
	}
}

// close waits for queued notifications to be delivered
func (p *progressPump) close() {
	p.once.Do(func() {
		if p.ch == nil {
			return
		}
		close(p.ch)
		p.wg.Wait()
	})
}
