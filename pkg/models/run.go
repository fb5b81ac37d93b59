package models

// RunStatus represents the status of a simulation run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transition is possible
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// RunInput is what a client submits to create a run
type RunInput struct {
	ConfigYAML  string `json:"config_yaml,omitempty"`
	Scenarios   int    `json:"scenarios"`
	Seed        int64  `json:"seed,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
	// CallbackSecret is echoed in a header so the receiver can authenticate us
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// Run is the daemon-side record of a multi-scenario run
type Run struct {
	ID              string    `json:"id"`
	Status          RunStatus `json:"status"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	StartedAtUnixMs int64     `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64     `json:"ended_at_unix_ms,omitempty"`
	Error           string    `json:"error,omitempty"`
	Completed       int       `json:"completed_scenarios"`
}
