package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/observability/logging"
	"live-interpreter-service/internal/observability/metrics"
	"live-interpreter-service/internal/service/audio"
	"live-interpreter-service/internal/service/reconcile"
	"live-interpreter-service/internal/service/stt"
	"live-interpreter-service/internal/service/transcript"
)

// Errors surfaced by orchestrator actions.
var (
	ErrAudioUnavailable    = errors.New("audio capture unavailable")
	ErrConnectTimeout      = errors.New("streaming connection did not open in time")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInvalidSpeaker      = errors.New("invalid speaker role")
	ErrNotRunning          = errors.New("session loop is not running")
)

// Options tune the orchestrator's timing.
type Options struct {
	// SettleDelay is the pause between closing one connection and opening the next.
	SettleDelay time.Duration
	// PollInterval is how often a new connection is checked for the open state.
	PollInterval time.Duration
	// ConnectTimeout bounds the wait for the first connection of a session.
	ConnectTimeout time.Duration
	// SwitchTimeout bounds the wait for the connection opened by a speaker switch.
	SwitchTimeout time.Duration
	Recorder      audio.RecorderConfig
	Engine        reconcile.Options
	EventBuffer   int
}

// DefaultOptions returns the production timing.
func DefaultOptions() Options {
	return Options{
		SettleDelay:    100 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
		ConnectTimeout: 3 * time.Second,
		SwitchTimeout:  3 * time.Second,
		Recorder:       audio.DefaultRecorderConfig(),
		Engine:         reconcile.DefaultOptions(),
		EventBuffer:    256,
	}
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Factory stt.Factory
	Device  audio.Device
	Log     *transcript.Log
	Speaker reconcile.Speaker
	Clock   reconcile.Clock
}

// Orchestrator is the session actor. Every state change runs on the goroutine
// executing Run; public methods post actions to it and wait for the reply.
type Orchestrator struct {
	opts    Options
	factory stt.Factory
	device  audio.Device
	log     *transcript.Log
	machine *Machine
	engine  *reconcile.Engine
	metrics *metrics.Metrics
	logger  zerolog.Logger

	events  chan any
	done    chan struct{}
	running atomic.Bool

	// Owned by the loop goroutine.
	runCtx    context.Context
	sessionID string
	config    models.SessionConfig
	active    models.SpeakerRole
	conn      *connHandle
	connGen   uint64
	connected bool
	source    audio.Source
	recorder  *audio.Recorder

	// Read by the recorder goroutine.
	audioTarget atomic.Pointer[connHandle]
}

type streamEvent struct {
	gen    uint64
	batch  *models.TokenBatch
	err    error
	closed bool
	code   int
	reason string
}

type timerEvent struct {
	fn func()
}

type actionEvent struct {
	name  string
	fn    func() error
	reply chan actionResult
}

type actionResult struct {
	status models.SessionStatus
	err    error
}

// New creates an orchestrator. Call Run before issuing actions.
func New(cfg models.SessionConfig, opts Options, deps Deps) *Orchestrator {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.SwitchTimeout <= 0 {
		opts.SwitchTimeout = def.SwitchTimeout
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = def.EventBuffer
	}
	if deps.Log == nil {
		deps.Log = transcript.NewLog(0)
	}

	o := &Orchestrator{
		opts:    opts,
		factory: deps.Factory,
		device:  deps.Device,
		log:     deps.Log,
		machine: NewMachine(),
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("session"),
		events:  make(chan any, opts.EventBuffer),
		done:    make(chan struct{}),
		config:  cfg,
		active:  models.RoleProvider,
		runCtx:  context.Background(),
	}
	o.engine = reconcile.NewEngine(reconcile.Config{
		Options:  opts.Engine,
		Clock:    deps.Clock,
		Dispatch: o.dispatch,
		Emitter:  deps.Log,
		Speaker:  deps.Speaker,
	})
	return o
}

// Log returns the transcript log the engine emits into.
func (o *Orchestrator) Log() *transcript.Log {
	return o.log
}

// Run processes events until ctx is cancelled. A live session is stopped on the way out.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("session loop already running")
	}
	defer close(o.done)
	o.runCtx = ctx

	o.logger.Info().Msg("Session loop started")
	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			o.logger.Info().Msg("Session loop stopped")
			return nil
		case ev := <-o.events:
			o.handle(ev)
		}
	}
}

func (o *Orchestrator) handle(ev any) {
	switch ev := ev.(type) {
	case timerEvent:
		ev.fn()
	case streamEvent:
		o.handleStream(ev)
	case actionEvent:
		err := ev.fn()
		if err != nil {
			o.logger.Debug().Err(err).Str("action", ev.name).Msg("Action rejected")
		}
		ev.reply <- actionResult{status: o.status(), err: err}
	}
}

// post delivers an event to the loop, giving up if the loop has exited.
func (o *Orchestrator) post(ev any) bool {
	select {
	case o.events <- ev:
		return true
	case <-o.done:
		return false
	}
}

// dispatch is the engine's Dispatcher: timer expiries run on the loop.
func (o *Orchestrator) dispatch(fn func()) {
	o.post(timerEvent{fn: fn})
}

func (o *Orchestrator) do(ctx context.Context, name string, fn func() error) (models.SessionStatus, error) {
	reply := make(chan actionResult, 1)
	select {
	case o.events <- actionEvent{name: name, fn: fn, reply: reply}:
	case <-o.done:
		return models.SessionStatus{}, ErrNotRunning
	case <-ctx.Done():
		return models.SessionStatus{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.status, res.err
	case <-o.done:
		return models.SessionStatus{}, ErrNotRunning
	case <-ctx.Done():
		return models.SessionStatus{}, ctx.Err()
	}
}

// Start begins a session for the active speaker.
func (o *Orchestrator) Start(ctx context.Context) (models.SessionStatus, error) {
	return o.do(ctx, "start", o.start)
}

// Switch makes role the active speaker. While idle it only selects the role
// for the next Start.
func (o *Orchestrator) Switch(ctx context.Context, role models.SpeakerRole) (models.SessionStatus, error) {
	if !role.Valid() {
		return models.SessionStatus{}, fmt.Errorf("%w: %q", ErrInvalidSpeaker, role)
	}
	return o.do(ctx, "switch", func() error { return o.switchSpeaker(role) })
}

// Stop flushes the active speaker and tears the session down.
func (o *Orchestrator) Stop(ctx context.Context) (models.SessionStatus, error) {
	return o.do(ctx, "stop", o.stop)
}

// Clear empties the transcript, the dedup ledger and both buffers.
func (o *Orchestrator) Clear(ctx context.Context) (models.SessionStatus, error) {
	return o.do(ctx, "clear", func() error {
		o.engine.Clear()
		o.log.Clear()
		o.logger.Info().Str("sessionId", o.sessionID).Msg("Transcripts cleared")
		return nil
	})
}

// UpdateConfig stores a new language pair and TTS setting. It applies from the next connection.
func (o *Orchestrator) UpdateConfig(ctx context.Context, cfg models.SessionConfig) (models.SessionStatus, error) {
	cfg = cfg.Normalized()
	for _, code := range []string{cfg.ProviderLanguage, cfg.PatientLanguage} {
		if !models.IsSupportedLanguage(code) {
			return models.SessionStatus{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
		}
	}
	return o.do(ctx, "config", func() error {
		o.config = cfg
		o.logger.Info().
			Str("providerLanguage", cfg.ProviderLanguage).
			Str("patientLanguage", cfg.PatientLanguage).
			Bool("ttsEnabled", cfg.TTSEnabled).
			Msg("Session config updated")
		return nil
	})
}

// Status returns a snapshot of the session.
func (o *Orchestrator) Status(ctx context.Context) (models.SessionStatus, error) {
	return o.do(ctx, "status", func() error { return nil })
}

func (o *Orchestrator) status() models.SessionStatus {
	return models.SessionStatus{
		SessionID: o.sessionID,
		State:     o.machine.State().String(),
		Speaker:   o.active,
		Connected: o.connected,
		Config:    o.config,
		Entries:   o.log.Len(),
	}
}

// --- actions, run on the loop ---

func (o *Orchestrator) start() error {
	if err := o.machine.BeginStart(); err != nil {
		return err
	}

	o.sessionID = uuid.NewString()
	o.logger = logging.WithSession("session", o.sessionID)
	o.engine.Begin(o.sessionID, o.config, o.active)

	src, err := o.device.Acquire(o.runCtx)
	if err != nil {
		o.checkTransition("abort", o.machine.Abort())
		o.metrics.RecordSessionFailure("audio")
		o.logger.Error().Err(err).Msg("Audio acquisition failed")
		return fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	o.source = src

	if !o.connect(o.opts.ConnectTimeout) {
		o.disconnect()
		o.source.Close()
		o.source = nil
		o.checkTransition("abort", o.machine.Abort())
		o.metrics.RecordSessionFailure("connect")
		o.logger.Error().Dur("timeout", o.opts.ConnectTimeout).Msg("Connection did not open, session aborted")
		return ErrConnectTimeout
	}

	o.startRecorder()
	o.checkTransition("activate", o.machine.Activate())
	o.metrics.RecordSessionStart()
	o.logger.Info().
		Str("speaker", string(o.active)).
		Str("source", o.config.SourceLanguage(o.active)).
		Str("target", o.config.TargetLanguage(o.active)).
		Msg("Session started")
	return nil
}

func (o *Orchestrator) switchSpeaker(role models.SpeakerRole) error {
	if o.machine.State() == StateIdle {
		o.active = role
		return nil
	}
	if role == o.active {
		return ErrSameSpeaker
	}
	if err := o.machine.BeginSwitch(); err != nil {
		return err
	}

	began := time.Now()
	previous := o.active

	o.stopRecorder()
	o.disconnect()
	o.sleep(o.opts.SettleDelay)

	o.active = role
	ok := o.connect(o.opts.SwitchTimeout)
	if !ok {
		o.logger.Warn().
			Str("speaker", string(role)).
			Dur("timeout", o.opts.SwitchTimeout).
			Msg("Connection did not open after switch, continuing disconnected")
	}
	o.startRecorder()

	o.checkTransition("end switch", o.machine.EndSwitch())
	o.metrics.RecordSpeakerSwitch(time.Since(began).Seconds(), ok)
	o.logger.Info().
		Str("from", string(previous)).
		Str("to", string(role)).
		Bool("connected", ok).
		Msg("Speaker switched")
	return nil
}

func (o *Orchestrator) stop() error {
	if err := o.machine.BeginStop(); err != nil {
		return err
	}

	flushed := o.engine.Flush(o.active)
	o.engine.CancelAll()
	o.disconnect()
	o.stopRecorder()
	if o.source != nil {
		o.source.Close()
		o.source = nil
	}
	o.recorder = nil
	o.engine.ResetBuffers()

	o.checkTransition("finish", o.machine.Finish())
	o.metrics.RecordSessionEnd()
	o.logger.Info().Bool("flushed", flushed).Int("entries", o.log.Len()).Msg("Session stopped")
	return nil
}

// checkTransition logs a transition the machine refused. The loop carries on so
// the session can still be stopped.
func (o *Orchestrator) checkTransition(name string, err error) {
	if err != nil {
		o.logger.Warn().Err(err).Str("transition", name).Str("state", o.machine.State().String()).Msg("Session state transition rejected")
	}
}

func (o *Orchestrator) shutdown() {
	if o.machine.State() == StateActive {
		o.stop()
	}
}

// connect opens a connection for the active role and waits for it to open.
func (o *Orchestrator) connect(timeout time.Duration) bool {
	o.connGen++
	role := o.active
	stream := stt.StreamConfig{
		SourceLanguage: o.config.SourceLanguage(role),
		TargetLanguage: o.config.TargetLanguage(role),
	}
	o.engine.SetConfig(o.config)
	o.engine.SetActive(role)

	h := &connHandle{o: o, gen: o.connGen, role: role, adapter: o.factory.New(stream)}
	o.conn = h
	if err := h.adapter.Start(o.runCtx, h); err != nil {
		o.logger.Error().Err(err).Msg("Failed to start connection")
		return false
	}

	if !o.waitOpen(h.adapter, timeout) {
		return false
	}
	o.connected = true
	o.audioTarget.Store(h)
	return true
}

func (o *Orchestrator) waitOpen(a stt.Adapter, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		switch a.State() {
		case stt.StateOpen:
			return true
		case stt.StateClosing, stt.StateClosed:
			return false
		}
		if time.Now().After(deadline) {
			return false
		}
		if !o.sleep(o.opts.PollInterval) {
			return false
		}
	}
}

// disconnect detaches the current connection's callbacks, then closes it.
func (o *Orchestrator) disconnect() {
	h := o.conn
	if h == nil {
		return
	}
	o.audioTarget.Store(nil)
	h.detached.Store(true)
	if err := h.adapter.Close(); err != nil {
		o.logger.Warn().Err(err).Msg("Error closing connection")
	}
	o.conn = nil
	o.connected = false
}

func (o *Orchestrator) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-o.runCtx.Done():
		return false
	}
}

func (o *Orchestrator) startRecorder() {
	if o.source == nil {
		return
	}
	if o.recorder == nil {
		o.recorder = audio.NewRecorder(o.source, o.opts.Recorder, o.forward)
	}
	if err := o.recorder.Start(o.runCtx); err != nil {
		o.logger.Warn().Err(err).Msg("Recorder start failed")
	}
}

func (o *Orchestrator) stopRecorder() {
	if o.recorder != nil {
		o.recorder.Stop()
	}
}

// forward is the recorder sink. It runs off the loop and only reads audioTarget.
func (o *Orchestrator) forward(chunk []byte) {
	h := o.audioTarget.Load()
	if h == nil || h.detached.Load() || h.adapter.State() != stt.StateOpen {
		o.metrics.RecordAudioDropped()
		return
	}
	if err := h.adapter.SendAudio(o.runCtx, chunk); err != nil {
		o.metrics.RecordAudioDropped()
		o.logger.Debug().Err(err).Msg("Audio chunk dropped")
		return
	}
	o.metrics.RecordAudioSent(len(chunk))
}

func (o *Orchestrator) handleStream(ev streamEvent) {
	if o.conn == nil || ev.gen != o.conn.gen {
		o.metrics.RecordStaleEvent()
		return
	}

	switch {
	case ev.batch != nil:
		o.engine.HandleTokens(o.conn.role, ev.batch.Tokens)
	case ev.err != nil:
		o.logger.Error().Err(ev.err).Msg("Streaming connection error")
		o.markDisconnected()
	case ev.closed:
		o.logger.Warn().Int("code", ev.code).Str("reason", ev.reason).Msg("Streaming connection closed")
		o.markDisconnected()
	}
}

func (o *Orchestrator) markDisconnected() {
	if o.connected {
		o.metrics.RecordConnectionFailure("session")
	}
	o.connected = false
	o.audioTarget.Store(nil)
}

// connHandle is the stt.Callback for one connection. Once detached it drops
// everything, so a closing connection cannot reach the engine.
type connHandle struct {
	o        *Orchestrator
	gen      uint64
	role     models.SpeakerRole
	adapter  stt.Adapter
	detached atomic.Bool
}

func (h *connHandle) OnTokens(batch models.TokenBatch) {
	if h.detached.Load() {
		h.o.metrics.RecordStaleEvent()
		return
	}
	h.o.post(streamEvent{gen: h.gen, batch: &batch})
}

func (h *connHandle) OnError(err error) {
	if h.detached.Load() {
		return
	}
	h.o.post(streamEvent{gen: h.gen, err: err})
}

func (h *connHandle) OnClose(code int, reason string) {
	if h.detached.Load() {
		return
	}
	h.o.post(streamEvent{gen: h.gen, closed: true, code: code, reason: reason})
}
