package simd

import (
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
)

// smallConfig keeps daemon runs fast
const smallConfig = `
num_users: 200
ipv6_adoption: 0.3
max_threads: 4
seed: 7
`

func waitForStatus(t *testing.T, store *RunStore, runID string, want models.RunStatus, timeout time.Duration) *RunRecord {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, ok := store.Get(runID)
		if ok && rec.Run.Status == want {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	rec, _ := store.Get(runID)
	if rec == nil {
		t.Fatalf("run %s not found", runID)
	}
	t.Fatalf("expected %s, got %s", want, rec.Run.Status)
	return nil
}
