// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Log management metrics
	IncLogCreated()
	IncLogReplaced()
	IncLogDeleted()
	IncLogConflict()
	ObserveListDuration(duration time.Duration)

	// Authentication metrics
	IncLoginSuccess()
	IncLoginFailure()
	IncFederatedLogin()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
