package session

import (
	"sync"

	"optimus/internal/lang"
)

// Status is the indicator state shown by the presentation layer.
type Status int

const (
	Standby Status = iota
	Listening
	Awaiting
	Processing
	Speaking
)

func (s Status) String() string {
	switch s {
	case Standby:
		return "standby"
	case Listening:
		return "listening"
	case Awaiting:
		return "awaiting"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of the machine state.
type Snapshot struct {
	Status   Status
	Language lang.Mode
}

// StatusMachine owns the status and the language selection. Readers
// get snapshots or watch channels, never the fields themselves.
type StatusMachine struct {
	mu       sync.Mutex
	status   Status
	mode     lang.Mode
	watchers []chan Snapshot
}

func NewStatusMachine(mode lang.Mode) *StatusMachine {
	return &StatusMachine{status: Standby, mode: mode}
}

func (m *StatusMachine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{Status: m.status, Language: m.mode}
}

func (m *StatusMachine) Status() Status { return m.Snapshot().Status }

func (m *StatusMachine) Language() lang.Mode { return m.Snapshot().Language }

func (m *StatusMachine) Set(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = s
	m.publish()
}

// CompareAndSet moves to s only if the current status is one of from.
func (m *StatusMachine) CompareAndSet(s Status, from ...Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range from {
		if m.status == f {
			m.status = s
			m.publish()
			return true
		}
	}
	return false
}

func (m *StatusMachine) SetLanguage(mode lang.Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mode = mode
	m.publish()
}

// Watch returns a channel carrying the latest snapshot. Slow readers
// miss intermediate states but always see the most recent one.
func (m *StatusMachine) Watch() <-chan Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Snapshot, 1)
	ch <- Snapshot{Status: m.status, Language: m.mode}
	m.watchers = append(m.watchers, ch)
	return ch
}

// publish must be called with mu held.
func (m *StatusMachine) publish() {
	snap := Snapshot{Status: m.status, Language: m.mode}
	for _, ch := range m.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
