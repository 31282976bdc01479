package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncLogCreated is a no-op.
func (n *NoopRecorder) IncLogCreated() {}

// IncLogReplaced is a no-op.
func (n *NoopRecorder) IncLogReplaced() {}

// IncLogDeleted is a no-op.
func (n *NoopRecorder) IncLogDeleted() {}

// IncLogConflict is a no-op.
func (n *NoopRecorder) IncLogConflict() {}

// ObserveListDuration is a no-op.
func (n *NoopRecorder) ObserveListDuration(duration time.Duration) {}

// IncLoginSuccess is a no-op.
func (n *NoopRecorder) IncLoginSuccess() {}

// IncLoginFailure is a no-op.
func (n *NoopRecorder) IncLoginFailure() {}

// IncFederatedLogin is a no-op.
func (n *NoopRecorder) IncFederatedLogin() {}
