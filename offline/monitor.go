package offline

import (
	"sync"
	"sync/atomic"
)

// Status is the connectivity state
type Status int32

const (
	Online Status = iota
	Offline
)

func (s Status) String() string {
	if s == Offline {
		return "offline"
	}
	return "online"
}

// Monitor holds the connectivity status and notifies subscribers on every
// transition. Setting the current status again is not a transition.
type Monitor struct {
	status atomic.Int32

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Status)
}

// NewMonitor creates a monitor starting in initial
func NewMonitor(initial Status) *Monitor {
	m := &Monitor{subs: make(map[int]func(Status))}
	m.status.Store(int32(initial))
	return m
}

// Status returns the current status
func (m *Monitor) Status() Status {
	return Status(m.status.Load())
}

// Online reports whether the status is Online
func (m *Monitor) Online() bool {
	return m.Status() == Online
}

// Set records s and, when it differs from the previous status, calls every
// subscriber synchronously. It reports whether a transition happened.
func (m *Monitor) Set(s Status) bool {
	prev := Status(m.status.Swap(int32(s)))
	if prev == s {
		return false
	}

	m.mu.Lock()
	subs := make([]func(Status), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
	return true
}

// Subscribe registers fn for transitions and returns a function removing it
func (m *Monitor) Subscribe(fn func(Status)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
