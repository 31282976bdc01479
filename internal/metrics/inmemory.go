package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	LogsCreated         uint64
	LogsReplaced        uint64
	LogsDeleted         uint64
	LogConflicts        uint64
	ListDurationCount   uint64
	ListDurationTotalNs int64
	LoginSuccesses      uint64
	LoginFailures       uint64
	FederatedLogins     uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	logsCreated         uint64
	logsReplaced        uint64
	logsDeleted         uint64
	logConflicts        uint64
	listDurationCount   uint64
	listDurationTotalNs int64
	loginSuccesses      uint64
	loginFailures       uint64
	federatedLogins     uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		LogsCreated:         atomic.LoadUint64(&m.logsCreated),
		LogsReplaced:        atomic.LoadUint64(&m.logsReplaced),
		LogsDeleted:         atomic.LoadUint64(&m.logsDeleted),
		LogConflicts:        atomic.LoadUint64(&m.logConflicts),
		ListDurationCount:   atomic.LoadUint64(&m.listDurationCount),
		ListDurationTotalNs: atomic.LoadInt64(&m.listDurationTotalNs),
		LoginSuccesses:      atomic.LoadUint64(&m.loginSuccesses),
		LoginFailures:       atomic.LoadUint64(&m.loginFailures),
		FederatedLogins:     atomic.LoadUint64(&m.federatedLogins),
	}
}

// IncLogCreated increments the created counter.
func (m *InMemoryRecorder) IncLogCreated() {
	atomic.AddUint64(&m.logsCreated, 1)
}

// IncLogReplaced increments the replaced counter.
func (m *InMemoryRecorder) IncLogReplaced() {
	atomic.AddUint64(&m.logsReplaced, 1)
}

// IncLogDeleted increments the deleted counter.
func (m *InMemoryRecorder) IncLogDeleted() {
	atomic.AddUint64(&m.logsDeleted, 1)
}

// IncLogConflict increments the duplicate-title counter.
func (m *InMemoryRecorder) IncLogConflict() {
	atomic.AddUint64(&m.logConflicts, 1)
}

// ObserveListDuration records a listing duration.
func (m *InMemoryRecorder) ObserveListDuration(duration time.Duration) {
	atomic.AddUint64(&m.listDurationCount, 1)
	atomic.AddInt64(&m.listDurationTotalNs, duration.Nanoseconds())
}

// IncLoginSuccess increments the successful login counter.
func (m *InMemoryRecorder) IncLoginSuccess() {
	atomic.AddUint64(&m.loginSuccesses, 1)
}

// IncLoginFailure increments the failed login counter.
func (m *InMemoryRecorder) IncLoginFailure() {
	atomic.AddUint64(&m.loginFailures, 1)
}

// IncFederatedLogin increments the federated login counter.
func (m *InMemoryRecorder) IncFederatedLogin() {
	atomic.AddUint64(&m.federatedLogins, 1)
}
