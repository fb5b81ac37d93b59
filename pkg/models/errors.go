package models

import "fmt"

// ResourceProbeFailure reports that host metrics or reachability could not
// be obtained. Callers log it and carry on without the reading.
type ResourceProbeFailure struct {
	Resource string
	Err      error
}

func (e *ResourceProbeFailure) Error() string {
	return fmt.Sprintf("resource probe %s failed: %v", e.Resource, e.Err)
}

func (e *ResourceProbeFailure) Unwrap() error {
	return e.Err
}

// PersistenceFailure reports that results could not be written. The
// in-memory results stay valid.
type PersistenceFailure struct {
	Target string
	Err    error
}

func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Target, e.Err)
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}
