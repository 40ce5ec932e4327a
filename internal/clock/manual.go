package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Clock that only moves when Advance is called.
//
// Scheduled callbacks run synchronously inside Advance, in deadline order
// (ties in scheduling order), on the caller's goroutine. A callback may
// schedule further callbacks; those run in the same Advance call when their
// deadline falls inside the advanced window.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks are
// invoked without the internal lock held.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int64
	pending []*manualTimer
}

type manualTimer struct {
	id       int64
	deadline time.Time
	fn       func()
	m        *Manual
	done     bool
}

// NewManual creates a manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the manual clock's current time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f to run once the clock has advanced by d.
// Negative durations are treated as zero.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &manualTimer{id: m.nextID, deadline: m.now.Add(d), fn: f, m: m}
	m.pending = append(m.pending, t)
	return t
}

// Stop cancels the timer.
func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.m.removeLocked(t)
	return true
}

func (m *Manual) removeLocked(t *manualTimer) {
	for i, p := range m.pending {
		if p == t {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, running every callback that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.runUntil(target)
}

// AdvanceToNext moves the clock to the earliest pending deadline and runs the
// callbacks due at that instant. It reports false when nothing is pending.
func (m *Manual) AdvanceToNext() bool {
	next, ok := m.NextDeadline()
	if !ok {
		return false
	}
	m.runUntil(next)
	return true
}

// NextDeadline returns the earliest pending deadline.
func (m *Manual) NextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return time.Time{}, false
	}
	earliest := m.pending[0].deadline
	for _, p := range m.pending[1:] {
		if p.deadline.Before(earliest) {
			earliest = p.deadline
		}
	}
	return earliest, true
}

// Pending returns the number of scheduled, unfired callbacks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manual) runUntil(target time.Time) {
	for {
		m.mu.Lock()
		due := m.popDueLocked(target)
		if due == nil {
			if target.After(m.now) {
				m.now = target
			}
			m.mu.Unlock()
			return
		}
		if due.deadline.After(m.now) {
			m.now = due.deadline
		}
		m.mu.Unlock()
		due.fn()
	}
}

// popDueLocked removes and returns the earliest timer due at or before target.
func (m *Manual) popDueLocked(target time.Time) *manualTimer {
	if len(m.pending) == 0 {
		return nil
	}
	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].deadline.Equal(m.pending[j].deadline) {
			return m.pending[i].id < m.pending[j].id
		}
		return m.pending[i].deadline.Before(m.pending[j].deadline)
	})
	first := m.pending[0]
	if first.deadline.After(target) {
		return nil
	}
	m.pending = m.pending[1:]
	first.done = true
	return first
}
