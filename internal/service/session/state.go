// Package session runs the interpreter session: it owns the streaming connection,
// the audio recorder and the reconciliation engine, and serializes every change
// to them through a single event loop.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session.
type State int

const (
	// StateIdle - no capture, no connection.
	StateIdle State = iota
	// StateConnecting - audio acquired, waiting for the first connection to open.
	StateConnecting
	// StateActive - capturing and streaming for the active speaker.
	StateActive
	// StateSwitchingSpeaker - tearing down one connection and opening the next.
	StateSwitchingSpeaker
	// StateStopping - flushing and releasing resources.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateSwitchingSpeaker:
		return "SWITCHING_SPEAKER"
	case StateStopping:
		return "STOPPING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsLive returns true while a session holds audio and a connection slot.
func (s State) IsLive() bool {
	return s == StateConnecting || s == StateActive || s == StateSwitchingSpeaker
}

// Errors for invalid state transitions.
var (
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrSessionActive     = errors.New("session already active")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrSameSpeaker       = errors.New("speaker is already active")
)

// Machine manages the session state machine.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → CONNECTING → ACTIVE ⇄ SWITCHING_SPEAKER
//	         │            │
//	         │            └── BeginStop() ──→ STOPPING → IDLE
//	         │
//	         └── Abort() ──→ IDLE (audio or connection failure)
type Machine struct {
	mu    sync.RWMutex
	state State
}

// NewMachine creates a machine in IDLE state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// BeginStart transitions IDLE → CONNECTING.
func (m *Machine) BeginStart() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle:
		m.state = StateConnecting
		return nil
	case StateConnecting, StateActive, StateSwitchingSpeaker:
		return ErrSessionActive
	default:
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, m.state)
	}
}

// Activate transitions CONNECTING → ACTIVE.
func (m *Machine) Activate() error {
	return m.move(StateConnecting, StateActive)
}

// Abort transitions CONNECTING → IDLE.
func (m *Machine) Abort() error {
	return m.move(StateConnecting, StateIdle)
}

// BeginSwitch transitions ACTIVE → SWITCHING_SPEAKER.
func (m *Machine) BeginSwitch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateActive:
		m.state = StateSwitchingSpeaker
		return nil
	case StateIdle:
		return ErrSessionNotActive
	default:
		return fmt.Errorf("%w: switch from %s", ErrInvalidTransition, m.state)
	}
}

// EndSwitch transitions SWITCHING_SPEAKER → ACTIVE.
func (m *Machine) EndSwitch() error {
	return m.move(StateSwitchingSpeaker, StateActive)
}

// BeginStop transitions ACTIVE → STOPPING.
func (m *Machine) BeginStop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateActive:
		m.state = StateStopping
		return nil
	case StateIdle:
		return ErrSessionNotActive
	default:
		return fmt.Errorf("%w: stop from %s", ErrInvalidTransition, m.state)
	}
}

// Finish transitions STOPPING → IDLE.
func (m *Machine) Finish() error {
	return m.move(StateStopping, StateIdle)
}

func (m *Machine) move(from, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return fmt.Errorf("%w: %s → %s from %s", ErrInvalidTransition, from, to, m.state)
	}
	m.state = to
	return nil
}
