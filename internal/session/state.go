// Package session provides the connection state machine and the controller
// that keeps a single live conferencing widget instance healthy.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the connection state of a room session.
type State int

const (
	// StateConnecting - initial widget instance is joining.
	StateConnecting State = iota
	// StateConnected - the widget reported a successful join.
	StateConnected
	// StateDisconnected - the widget left while the page was visible and the
	// user did not ask for it.
	StateDisconnected
	// StateReconnecting - a replacement widget instance is being brought up.
	StateReconnecting
	// StateEnded - user-initiated termination. Terminal.
	StateEnded
	// StateFailed - reconnect attempts exhausted; only a hard reset (a fresh
	// controller) recovers. Terminal.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateEnded:
		return "ENDED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for ENDED and FAILED.
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateFailed
}

// Errors for invalid state transitions.
var (
	ErrSessionTerminal     = errors.New("session is in a terminal state")
	ErrNotConnecting       = errors.New("connected is only reachable from connecting or reconnecting")
	ErrNotReconnectable    = errors.New("reconnecting is only reachable from disconnected or connected")
	ErrAlreadyDisconnected = errors.New("session already disconnected")
)

// Machine is the connection state machine for one room session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	CONNECTING ──→ CONNECTED ──→ DISCONNECTED ──→ RECONNECTING
//	     │              │              │               │
//	     │              │              │               ├──→ CONNECTED
//	     │              │              │               └──→ DISCONNECTED
//	     │              │              └── (attempts exhausted) ──→ FAILED
//	     │              └── (deferred hidden disconnect) ──→ RECONNECTING
//	     └──→ DISCONNECTED
//
//	any state ──→ ENDED (user-initiated only)
//
// CONNECTING never transitions straight to RECONNECTING; a join outcome
// (CONNECTED or DISCONNECTED) is always observed first.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// NewMachine creates a machine in CONNECTING state.
func NewMachine() *Machine {
	return &Machine{state: StateConnecting}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsTerminal reports whether the machine reached ENDED or FAILED.
func (m *Machine) IsTerminal() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.IsTerminal()
}

// MarkConnected records a successful join outcome.
func (m *Machine) MarkConnected() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateConnecting, StateReconnecting:
		m.state = StateConnected
		return nil
	case StateEnded, StateFailed:
		return ErrSessionTerminal
	default:
		return ErrNotConnecting
	}
}

// MarkDisconnected records an unwanted leave while visible, or a failed
// join outcome of a (re)connect attempt.
func (m *Machine) MarkDisconnected() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateConnecting, StateConnected, StateReconnecting:
		m.state = StateDisconnected
		return nil
	case StateDisconnected:
		return ErrAlreadyDisconnected
	default:
		return ErrSessionTerminal
	}
}

// MarkReconnecting records the start of a reconnect attempt. CONNECTED is a
// legal source: a disconnect observed while hidden is deferred and collapsed
// into a single reconnect transition on visibility restore.
func (m *Machine) MarkReconnecting() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateDisconnected, StateConnected:
		m.state = StateReconnecting
		return nil
	case StateEnded, StateFailed:
		return ErrSessionTerminal
	default:
		return ErrNotReconnectable
	}
}

// End records user-initiated termination. Legal from any non-terminal
// state; idempotent once ended.
func (m *Machine) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateFailed {
		return
	}
	m.state = StateEnded
}

// Fail marks the session terminally failed (reconnect budget exhausted).
// Returns false if already terminal.
func (m *Machine) Fail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.IsTerminal() {
		return false
	}
	m.state = StateFailed
	return true
}
