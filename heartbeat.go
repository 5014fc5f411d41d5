package canopen

import (
	"fmt"
	"sync"
)

// NodeState is the NMT state reported by a node in heartbeat and node
// guarding responses.
type NodeState struct {
	code  uint8
	known bool
}

var (
	Stopped        = NodeState{code: 4, known: true}
	Operational    = NodeState{code: 5, known: true}
	PreOperational = NodeState{code: 127, known: true}
)

var nodeStates = map[uint8]NodeState{
	4:   Stopped,
	5:   Operational,
	127: PreOperational,
}

// UnknownNodeState returns the state for a code outside the state table.
func UnknownNodeState(code uint8) NodeState {
	return NodeState{code: code}
}

// NodeStateFromCode maps a state code to its NodeState. Unmapped codes
// give an unknown state carrying the code.
func NodeStateFromCode(code uint8) NodeState {
	if state, ok := nodeStates[code]; ok {
		return state
	}
	return UnknownNodeState(code)
}

// Code returns the raw state code.
func (s NodeState) Code() uint8 { return s.code }

// Known reports whether the code is part of the state table.
func (s NodeState) Known() bool { return s.known }

func (s NodeState) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Operational:
		return "OPERATIONAL"
	case PreOperational:
		return "PRE-OPERATIONAL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s.code)
	}
}

// StateChangeHandler is invoked when the monitored state changes.
//
// Note: handlers run while the monitor holds its lock, so they must not
// call back into the monitor.
type StateChangeHandler func(prevState NodeState, newState NodeState)

// FormatStateChange renders the notice printed for a state change.
func FormatStateChange(prevState NodeState, newState NodeState) string {
	return fmt.Sprintf("Detected NMT state change from %s to %s", prevState, newState)
}

// HeartbeatMonitor tracks the last NMT state a node reported. It is fed
// from the network goroutine and read from the console, so every access
// goes through mu.
type HeartbeatMonitor struct {
	mu       sync.Mutex
	state    NodeState
	seen     bool
	handlers []StateChangeHandler
}

func NewHeartbeatMonitor(handlers ...StateChangeHandler) *HeartbeatMonitor {
	return &HeartbeatMonitor{handlers: handlers}
}

// AddHandler registers a handler for state changes.
func (m *HeartbeatMonitor) AddHandler(handler StateChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = append(m.handlers, handler)
}

// OnNotification records the state code of a heartbeat or guarding
// response. The first notification is stored silently; later ones notify
// the handlers only when the state differs from the stored one.
func (m *HeartbeatMonitor) OnNotification(code uint8) {
	newState := NodeStateFromCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	prevState, seen := m.state, m.seen
	m.state, m.seen = newState, true

	if !seen || prevState == newState {
		return
	}
	for _, handler := range m.handlers {
		handler(prevState, newState)
	}
}

// State returns the last reported state and whether any was reported.
func (m *HeartbeatMonitor) State() (NodeState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state, m.seen
}
