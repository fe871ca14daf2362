package backup

import "time"

// SetClock replaces the time source used for branch names.
func SetClock(m *Manager, now func() time.Time) {
	m.now = now
}
