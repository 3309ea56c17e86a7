// Package stt defines the interface for streaming speech-to-text-and-translation connections.
package stt

import (
	"context"
	"errors"
	"fmt"

	"live-interpreter-service/internal/models"
)

// ConnState is the lifecycle state of a streaming connection.
type ConnState int

const (
	// StateConnecting - dial or handshake in progress.
	StateConnecting ConnState = iota
	// StateOpen - configuration sent, audio accepted.
	StateOpen
	// StateClosing - close requested, waiting for the peer.
	StateClosing
	// StateClosed - terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors shared by adapters.
var (
	ErrNotOpen        = errors.New("stt connection is not open")
	ErrAlreadyStarted = errors.New("stt connection already started")
)

// StreamConfig is the per-connection language pair.
type StreamConfig struct {
	SourceLanguage string
	TargetLanguage string
}

// Translating reports whether the connection should request translation.
func (c StreamConfig) Translating() bool {
	return c.TargetLanguage != "" && c.SourceLanguage != c.TargetLanguage
}

// Callback receives events from a connection. Calls may arrive on any goroutine.
type Callback interface {
	// OnTokens is called once per parsed server message.
	OnTokens(batch models.TokenBatch)

	// OnError is called for transport failures and server-reported errors.
	OnError(err error)

	// OnClose is called once when the connection ends.
	OnClose(code int, reason string)
}

// Adapter is one streaming connection.
type Adapter interface {
	// Start begins connecting. It returns without waiting for the connection to open;
	// callers poll State.
	Start(ctx context.Context, cb Callback) error

	// SendAudio forwards one audio chunk. Returns ErrNotOpen unless State is StateOpen.
	SendAudio(ctx context.Context, audio []byte) error

	// State reports the current connection state.
	State() ConnState

	// Close ends the connection and releases resources. Safe to call more than once.
	Close() error
}

// Factory creates a fresh adapter per connection.
type Factory interface {
	New(cfg StreamConfig) Adapter
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(cfg StreamConfig) Adapter

// New calls f.
func (f FactoryFunc) New(cfg StreamConfig) Adapter { return f(cfg) }
