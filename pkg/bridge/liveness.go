package bridge

// FailsafeTimeout is the default liveness timeout in microseconds.
const FailsafeTimeout = 100000

// Monitor tracks the age of the last channel update from the host.
type Monitor struct {
	// Timeout in microseconds, FailsafeTimeout if 0.
	Timeout uint64

	last    uint64
	updated bool
}

// MarkUpdate records a valid channel update.
func (m *Monitor) MarkUpdate(now uint64) {
	m.last, m.updated = now, true
}

// IsFailsafe indicates channel input is missing or stale.
func (m *Monitor) IsFailsafe(now uint64) bool {
	if !m.updated {
		return true
	}
	timeout := m.Timeout
	if timeout == 0 {
		timeout = FailsafeTimeout
	}
	return now-m.last > timeout
}
