package reconcile

import (
	"time"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/observability/logging"
	"live-interpreter-service/internal/observability/metrics"
	"live-interpreter-service/internal/service/segment"
)

// Finalization paths, used as metric and log labels.
const (
	PathDebounce = "debounce"
	PathFlush    = "flush"
)

// Options tune the finalization scheduler.
type Options struct {
	// Debounce is the quiet period after the last final token before a
	// candidate utterance is committed.
	Debounce time.Duration
	// MinDebounceChars is the length both final texts must exceed before a
	// debounce timer is armed.
	MinDebounceChars int
	// MinFlushChars is the length both final texts must exceed for the
	// stop-session flush to emit.
	MinFlushChars int
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		Debounce:         time.Second,
		MinDebounceChars: 5,
		MinFlushChars:    2,
	}
}

// Emitter receives engine output. Implementations must not block the caller.
type Emitter interface {
	EmitEntry(entry models.TranscriptEntry)
	EmitPartial(update models.PartialUpdate)
}

// Speaker plays a committed translation aloud. Speak is called on its own
// goroutine and its failures never reach the engine.
type Speaker interface {
	Speak(entry models.TranscriptEntry, language string)
}

// Config wires an Engine to its collaborators. Nil fields get defaults.
type Config struct {
	Options  Options
	Clock    Clock
	Dispatch Dispatcher
	Emitter  Emitter
	Speaker  Speaker
	IDs      *segment.Generator
	Metrics  *metrics.Metrics
}

// Engine reconciles per-speaker token streams into transcript entries.
type Engine struct {
	opts     Options
	clock    Clock
	dispatch Dispatcher
	emitter  Emitter
	speaker  Speaker
	ids      *segment.Generator
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	sessionID string
	config    models.SessionConfig
	active    models.SpeakerRole
	buffers   map[models.SpeakerRole]*Buffer
	ledger    *Ledger
}

// NewEngine creates an idle engine. Call Begin before feeding tokens.
func NewEngine(cfg Config) *Engine {
	if cfg.Options.Debounce <= 0 {
		cfg.Options = DefaultOptions()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Dispatch == nil {
		cfg.Dispatch = Immediate
	}
	if cfg.Emitter == nil {
		cfg.Emitter = discardEmitter{}
	}
	if cfg.IDs == nil {
		cfg.IDs = segment.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}

	e := &Engine{
		opts:     cfg.Options,
		clock:    cfg.Clock,
		dispatch: cfg.Dispatch,
		emitter:  cfg.Emitter,
		speaker:  cfg.Speaker,
		ids:      cfg.IDs,
		metrics:  cfg.Metrics,
		logger:   logging.WithComponent("reconcile"),
		active:   models.RoleProvider,
		buffers:  make(map[models.SpeakerRole]*Buffer, len(models.Roles)),
		ledger:   NewLedger(),
	}
	for _, role := range models.Roles {
		e.buffers[role] = &Buffer{}
	}
	return e
}

// Begin starts a new session: timers are cancelled and buffers and ledger emptied.
func (e *Engine) Begin(sessionID string, cfg models.SessionConfig, active models.SpeakerRole) {
	e.CancelAll()
	e.ResetBuffers()
	e.ledger.Reset()
	e.sessionID = sessionID
	e.config = cfg
	e.active = active
	e.logger = logging.WithSession("reconcile", sessionID)
}

// SetActive changes which role is currently speaking.
func (e *Engine) SetActive(role models.SpeakerRole) {
	e.active = role
}

// Active returns the role currently speaking.
func (e *Engine) Active() models.SpeakerRole {
	return e.active
}

// SetConfig replaces the language pair and TTS flag used for later messages.
func (e *Engine) SetConfig(cfg models.SessionConfig) {
	e.config = cfg
}

// HandleTokens folds one message from the streaming connection into role's
// buffer, publishes the resulting partial view and reschedules finalization.
func (e *Engine) HandleTokens(role models.SpeakerRole, tokens []models.Token) ApplyResult {
	b, ok := e.buffers[role]
	if !ok {
		return ApplyResult{}
	}
	source := e.config.SourceLanguage(role)
	target := e.config.TargetLanguage(role)

	res := b.Apply(tokens, source, target, e.clock.Now())
	e.metrics.RecordTokens(ClassSource.String(), res.Source)
	e.metrics.RecordTokens(ClassTranslation.String(), res.Translation)
	e.metrics.RecordTokens(ClassUnknown.String(), res.Discarded)
	e.metrics.RecordStaleTranslations(res.StaleTranslations)
	if res.StaleTranslations > 0 {
		e.logger.Debug().
			Str("speaker", string(role)).
			Int("dropped", res.StaleTranslations).
			Msg("Translation tokens without source context discarded")
	}

	e.emitter.EmitPartial(e.Snapshot(role))
	e.schedule(role)
	return res
}

// schedule re-arms role's debounce timer if the buffer looks like a complete
// utterance. Any previous timer is cancelled first.
func (e *Engine) schedule(role models.SpeakerRole) {
	b := e.buffers[role]
	if b.cancel() {
		e.metrics.RecordTimerCancelled()
	}
	if !IsCandidate(b) {
		return
	}
	orig, trans := b.Committed()
	if runeLen(orig) <= e.opts.MinDebounceChars || runeLen(trans) <= e.opts.MinDebounceChars {
		return
	}

	gen := b.timerGen
	b.timer = e.clock.AfterFunc(e.opts.Debounce, func() {
		e.dispatch(func() { e.expire(role, gen) })
	})
	e.metrics.RecordTimerArmed()
}

// expire runs on the owning goroutine when a debounce timer fires.
func (e *Engine) expire(role models.SpeakerRole, gen uint64) {
	b := e.buffers[role]
	if gen != b.timerGen {
		e.metrics.RecordStaleTimer()
		return
	}
	b.timer = nil

	orig, trans := b.Committed()
	if orig == "" || trans == "" {
		return
	}
	if !e.commit(role, orig, trans, PathDebounce) {
		return
	}
	b.Reset()
	e.emitter.EmitPartial(e.Snapshot(role))
}

// Flush commits whatever role has buffered, bypassing punctuation and debounce.
// It reports whether an entry was emitted.
func (e *Engine) Flush(role models.SpeakerRole) bool {
	b, ok := e.buffers[role]
	if !ok {
		return false
	}
	b.cancel()
	orig, trans := b.Committed()
	if runeLen(orig) <= e.opts.MinFlushChars || runeLen(trans) <= e.opts.MinFlushChars {
		return false
	}
	if !e.commit(role, orig, trans, PathFlush) {
		return false
	}
	b.Reset()
	return true
}

// commit emits an entry for the pair unless the ledger has already seen it.
func (e *Engine) commit(role models.SpeakerRole, orig, trans, path string) bool {
	if !e.ledger.Add(Key(orig, trans)) {
		e.metrics.RecordDuplicateSuppressed(path)
		e.logger.Debug().
			Str("speaker", string(role)).
			Str("path", path).
			Msg("Duplicate segment suppressed")
		return false
	}

	entry := models.TranscriptEntry{
		ID:             e.ids.Next(e.sessionID),
		Speaker:        role,
		OriginalText:   orig,
		TranslatedText: trans,
		Timestamp:      e.clock.Now(),
		IsFinal:        true,
	}
	e.emitter.EmitEntry(entry)
	e.metrics.RecordEntryEmitted(path, string(role))
	e.logger.Info().
		Str("entryId", entry.ID).
		Str("speaker", string(role)).
		Str("path", path).
		Int("originalLen", len(orig)).
		Int("translatedLen", len(trans)).
		Msg("Transcript entry committed")

	// A stop flush lands after the session ended; nobody is speaking any more.
	if e.speaker != nil && e.config.TTSEnabled && role == e.active && path != PathFlush {
		language := e.config.TargetLanguage(role)
		go e.speaker.Speak(entry, language)
	}
	return true
}

// CancelAll stops every pending debounce timer.
func (e *Engine) CancelAll() {
	for _, b := range e.buffers {
		if b.cancel() {
			e.metrics.RecordTimerCancelled()
		}
	}
}

// ResetBuffers empties both buffers without emitting anything.
func (e *Engine) ResetBuffers() {
	for _, b := range e.buffers {
		b.Reset()
	}
}

// Clear cancels timers, empties buffers and forgets every emitted segment.
func (e *Engine) Clear() {
	e.CancelAll()
	e.ResetBuffers()
	e.ledger.Reset()
}

// Pending reports whether role has an armed debounce timer.
func (e *Engine) Pending(role models.SpeakerRole) bool {
	b, ok := e.buffers[role]
	return ok && b.pending()
}

// Snapshot returns the live view of role's buffer.
func (e *Engine) Snapshot(role models.SpeakerRole) models.PartialUpdate {
	b, ok := e.buffers[role]
	if !ok {
		return models.PartialUpdate{SessionID: e.sessionID, Speaker: role}
	}
	return models.PartialUpdate{
		SessionID:         e.sessionID,
		Speaker:           role,
		FinalOriginal:     b.FinalOriginal,
		FinalTranslated:   b.FinalTranslated,
		PartialOriginal:   b.PartialOriginal,
		PartialTranslated: b.PartialTranslated,
		Timestamp:         e.clock.Now(),
	}
}

// SegmentCount returns the number of segments emitted this session.
func (e *Engine) SegmentCount() int {
	return e.ledger.Len()
}

func runeLen(s string) int {
	return len([]rune(s))
}

type discardEmitter struct{}

func (discardEmitter) EmitEntry(models.TranscriptEntry)  {}
func (discardEmitter) EmitPartial(models.PartialUpdate) {}
