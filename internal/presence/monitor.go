// internal/presence/monitor.go
package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Monitor watches live sessions and turns transport closures and
// heartbeat silences into exactly one disconnect event per session. The
// transport may report closure any number of times; only the first
// signal for a tracked session reaches the callback.
type Monitor struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer

	interval     time.Duration
	onDisconnect func(uuid.UUID)

	logger *logrus.Logger
}

// NewMonitor builds a monitor that fires onDisconnect when a session's
// transport closes or no heartbeat arrives within interval.
func NewMonitor(logger *logrus.Logger, interval time.Duration, onDisconnect func(uuid.UUID)) *Monitor {
	return &Monitor{
		timers:       make(map[uuid.UUID]*time.Timer),
		interval:     interval,
		onDisconnect: onDisconnect,
		logger:       logger,
	}
}

// Track starts watching a session. The heartbeat clock starts now.
func (m *Monitor) Track(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timers[id]; ok {
		return
	}
	m.timers[id] = time.AfterFunc(m.interval, func() {
		m.expire(id)
	})
}

// Heartbeat resets the session's silence clock. Unknown ids (already
// disconnected) are ignored.
func (m *Monitor) Heartbeat(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[id]; ok {
		t.Reset(m.interval)
	}
}

// Closed reports a transport-level closure. Safe to call repeatedly;
// only the first report for a tracked session emits a disconnect.
func (m *Monitor) Closed(id uuid.UUID) {
	if m.untrack(id) {
		m.onDisconnect(id)
	}
}

// Tracking reports whether the session is still being watched.
func (m *Monitor) Tracking(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[id]
	return ok
}

// expire handles a heartbeat timeout: treated exactly like a disconnect.
func (m *Monitor) expire(id uuid.UUID) {
	if m.untrack(id) {
		m.logger.WithField("session", id).Warn("heartbeat timeout, forfeiting session")
		m.onDisconnect(id)
	}
}

// untrack removes the session and reports whether it was still tracked.
// Removal is the dedup: after the first untrack, later closure reports
// and stale timer fires find nothing.
func (m *Monitor) untrack(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(m.timers, id)
	return true
}
