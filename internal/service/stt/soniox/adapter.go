// Package soniox implements stt.Adapter over the Soniox real-time WebSocket API,
// which returns source-language tokens and their translation on one connection.
package soniox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-interpreter-service/internal/observability/logging"
	"live-interpreter-service/internal/observability/metrics"
	"live-interpreter-service/internal/service/stt"
)

// Config holds connection settings shared by every adapter the factory creates.
type Config struct {
	URL          string
	APIKey       string
	Model        string
	AudioFormat  string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// CloseGrace bounds how long Close waits for the peer's close frame.
	CloseGrace time.Duration
}

// DefaultConfig returns the production endpoint and model.
func DefaultConfig() Config {
	return Config{
		URL:          "wss://stt-rt.soniox.com/transcribe-websocket",
		Model:        "stt-rt-preview",
		AudioFormat:  "auto",
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		CloseGrace:   time.Second,
	}
}

// Adapter is a single streaming connection. Create one per speaker turn.
type Adapter struct {
	cfg    Config
	stream stt.StreamConfig
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu     sync.Mutex
	state  stt.ConnState
	conn   *websocket.Conn
	cb     stt.Callback
	cancel context.CancelFunc
	done   chan struct{}

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex
}

// New creates an adapter for one connection.
func New(cfg Config, stream stt.StreamConfig) *Adapter {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = def.AudioFormat
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.CloseGrace <= 0 {
		cfg.CloseGrace = def.CloseGrace
	}

	return &Adapter{
		cfg:    cfg,
		stream: stream,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		logger: logging.WithComponent("soniox").With().
			Str("source", stream.SourceLanguage).
			Str("target", stream.TargetLanguage).
			Logger(),
		state: stt.StateConnecting,
		done:  make(chan struct{}),
	}
}

// NewFactory returns a factory producing adapters that share cfg.
func NewFactory(cfg Config) stt.Factory {
	return stt.FactoryFunc(func(stream stt.StreamConfig) stt.Adapter {
		return New(cfg, stream)
	})
}

// Request builds the configuration message for this connection.
func (a *Adapter) Request() Request {
	req := Request{
		APIKey:          a.cfg.APIKey,
		Model:           a.cfg.Model,
		AudioFormat:     a.cfg.AudioFormat,
		IncludeNonfinal: true,
	}
	if a.stream.SourceLanguage != "" {
		req.LanguageHints = []string{a.stream.SourceLanguage}
	}
	if a.stream.Translating() {
		req.Translation = &TranslationConfig{
			Type:           "one_way",
			TargetLanguage: a.stream.TargetLanguage,
		}
	}
	return req
}

// Start dials in the background. Poll State to learn when the connection opens.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cb != nil {
		return stt.ErrAlreadyStarted
	}
	if a.state != stt.StateConnecting {
		return stt.ErrNotOpen
	}
	a.cb = cb

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go a.run(runCtx)
	return nil
}

// State reports the current connection state.
func (a *Adapter) State() stt.ConnState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) run(ctx context.Context) {
	defer close(a.done)
	defer a.cancel()

	conn, resp, err := a.dialer.DialContext(ctx, a.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Error().Err(err).Msg("Failed to connect to Soniox")
			metrics.DefaultMetrics.RecordConnectionFailure("dial")
		}
		a.finish(websocket.CloseAbnormalClosure, err.Error(), fmt.Errorf("dial soniox: %w", err))
		return
	}

	a.mu.Lock()
	if a.state != stt.StateConnecting {
		// Closed while dialing.
		a.mu.Unlock()
		conn.Close()
		a.finish(websocket.CloseNormalClosure, "closed before open", nil)
		return
	}
	a.conn = conn
	a.mu.Unlock()

	if err := a.writeJSON(a.Request()); err != nil {
		a.logger.Error().Err(err).Msg("Failed to send configuration")
		metrics.DefaultMetrics.RecordConnectionFailure("config")
		conn.Close()
		a.finish(websocket.CloseAbnormalClosure, err.Error(), fmt.Errorf("send soniox config: %w", err))
		return
	}

	a.mu.Lock()
	if a.state == stt.StateConnecting {
		a.state = stt.StateOpen
	}
	a.mu.Unlock()
	metrics.DefaultMetrics.RecordConnectionOpened()
	a.logger.Info().Msg("Soniox connection open")

	a.readLoop(conn)
}

func (a *Adapter) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			a.handleReadError(err)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		msg, err := ParseMessage(data)
		if err != nil {
			var serr *ServerError
			if errors.As(err, &serr) {
				a.logger.Warn().Err(serr).Msg("Soniox reported an error")
				metrics.DefaultMetrics.RecordStreamMessage("error")
				continue
			}
			a.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Dropping malformed message")
			metrics.DefaultMetrics.RecordMalformedMessage()
			continue
		}

		metrics.DefaultMetrics.RecordStreamMessage("tokens")
		a.callback().OnTokens(msg.Batch())
		if msg.Finished {
			a.logger.Debug().Msg("Soniox stream finished")
		}
	}
}

func (a *Adapter) handleReadError(err error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
			a.finish(ce.Code, ce.Text, nil)
			return
		}
		metrics.DefaultMetrics.RecordConnectionFailure("close")
		a.finish(ce.Code, ce.Text, fmt.Errorf("soniox connection closed: %w", err))
		return
	}

	a.mu.Lock()
	closing := a.state == stt.StateClosing
	a.mu.Unlock()
	if closing {
		a.finish(websocket.CloseNormalClosure, "closed", nil)
		return
	}

	a.logger.Error().Err(err).Msg("Soniox connection lost")
	metrics.DefaultMetrics.RecordConnectionFailure("read")
	a.finish(websocket.CloseAbnormalClosure, err.Error(), fmt.Errorf("read soniox: %w", err))
}

// finish moves to Closed and reports the outcome once.
func (a *Adapter) finish(code int, reason string, err error) {
	a.mu.Lock()
	if a.state == stt.StateClosing {
		// Close was requested, so this is a normal closure.
		code, reason, err = websocket.CloseNormalClosure, "closed", nil
	}
	a.state = stt.StateClosed
	a.conn = nil
	a.mu.Unlock()

	cb := a.callback()
	if err != nil {
		cb.OnError(err)
	}
	cb.OnClose(code, reason)
}

func (a *Adapter) callback() stt.Callback {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cb
}

// SendAudio writes one binary audio frame.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	conn := a.conn
	open := a.state == stt.StateOpen
	a.mu.Unlock()
	if !open || conn == nil {
		return stt.ErrNotOpen
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	deadline := time.Now().Add(a.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (a *Adapter) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return stt.ErrNotOpen
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close starts a graceful close and returns without waiting for the peer.
func (a *Adapter) Close() error {
	a.mu.Lock()
	switch a.state {
	case stt.StateClosing, stt.StateClosed:
		a.mu.Unlock()
		return nil
	}
	started := a.cb != nil
	conn := a.conn
	if started {
		a.state = stt.StateClosing
	} else {
		a.state = stt.StateClosed
	}
	a.mu.Unlock()

	if !started {
		close(a.done)
		return nil
	}
	if conn == nil {
		// Still dialing; abort it.
		a.cancel()
		return nil
	}

	a.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(a.cfg.WriteTimeout))
	a.writeMu.Unlock()
	if err != nil {
		conn.Close()
		return nil
	}

	go func() {
		select {
		case <-a.done:
		case <-time.After(a.cfg.CloseGrace):
			conn.Close()
		}
	}()
	return nil
}

// Done is closed once the connection has fully ended.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}
