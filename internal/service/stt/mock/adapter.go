// Package mock provides a scripted streaming adapter for running without cloud credentials.
// Each audio chunk advances a script of bilingual utterances: a partial of the original,
// then the final original with a partial translation, then the final translation.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/service/stt"
)

// Utterance is one scripted line and its translation.
type Utterance struct {
	Original   string
	Translated string
}

// DefaultUtterances provides sample lines for simulation.
var DefaultUtterances = []Utterance{
	{"Hello, what brings you in today?", "Hola, ¿qué le trae por aquí hoy?"},
	{"I have had a headache for three days.", "Tengo dolor de cabeza desde hace tres días."},
	{"Are you taking any medication?", "¿Está tomando algún medicamento?"},
	{"Only ibuprofen in the morning.", "Solo ibuprofeno por la mañana."},
	{"Let me check your blood pressure.", "Déjeme tomarle la presión arterial."},
}

// Config controls timing and content of the simulation.
type Config struct {
	OpenDelay     time.Duration
	ResponseDelay time.Duration
	Utterances    []Utterance
}

// DefaultConfig returns a config with short, realistic delays.
func DefaultConfig() Config {
	return Config{
		OpenDelay:     50 * time.Millisecond,
		ResponseDelay: 50 * time.Millisecond,
		Utterances:    DefaultUtterances,
	}
}

// utteranceCounter rotates the starting line across connections.
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// Adapter implements stt.Adapter with scripted responses.
type Adapter struct {
	cfg    Config
	stream stt.StreamConfig
	steps  []models.TokenBatch

	mu      sync.Mutex
	cb      stt.Callback
	state   stt.ConnState
	next    int
	queue   chan models.TokenBatch
	stop    chan struct{}
	started bool
}

// New creates a mock adapter for one connection.
func New(cfg Config, stream stt.StreamConfig) *Adapter {
	if len(cfg.Utterances) == 0 {
		cfg.Utterances = DefaultUtterances
	}

	counterMu.Lock()
	offset := utteranceCounter % len(cfg.Utterances)
	utteranceCounter++
	counterMu.Unlock()

	ordered := append(append([]Utterance{}, cfg.Utterances[offset:]...), cfg.Utterances[:offset]...)
	return &Adapter{
		cfg:    cfg,
		stream: stream,
		steps:  Script(ordered, stream),
		state:  stt.StateConnecting,
		queue:  make(chan models.TokenBatch, 16),
		stop:   make(chan struct{}),
	}
}

// NewFactory returns a factory producing mock adapters.
func NewFactory(cfg Config) stt.Factory {
	return stt.FactoryFunc(func(stream stt.StreamConfig) stt.Adapter {
		return New(cfg, stream)
	})
}

// Script expands utterances into the batches a translating recognizer would send.
func Script(utterances []Utterance, stream stt.StreamConfig) []models.TokenBatch {
	src := stream.SourceLanguage
	tgt := stream.TargetLanguage
	var steps []models.TokenBatch
	for _, u := range utterances {
		steps = append(steps,
			models.TokenBatch{Tokens: []models.Token{
				{Text: " " + firstHalf(u.Original), LanguageCode: src},
			}},
			models.TokenBatch{Tokens: []models.Token{
				{Text: " " + u.Original, LanguageCode: src, IsFinal: true},
				{Text: " " + firstHalf(u.Translated), LanguageCode: tgt, TranslationMarker: true},
			}},
			models.TokenBatch{Tokens: []models.Token{
				{Text: " " + u.Translated, LanguageCode: tgt, IsFinal: true, TranslationMarker: true},
			}},
		)
	}
	return steps
}

func firstHalf(s string) string {
	words := strings.Fields(s)
	return strings.Join(words[:(len(words)+1)/2], " ")
}

// Start opens the simulated connection after OpenDelay.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return stt.ErrAlreadyStarted
	}
	if a.state != stt.StateConnecting {
		return stt.ErrNotOpen
	}
	a.started = true
	a.cb = cb

	go a.pump(ctx)
	return nil
}

func (a *Adapter) pump(ctx context.Context) {
	select {
	case <-time.After(a.cfg.OpenDelay):
	case <-a.stop:
		return
	case <-ctx.Done():
		a.Close()
		return
	}

	a.mu.Lock()
	if a.state == stt.StateConnecting {
		a.state = stt.StateOpen
	}
	a.mu.Unlock()

	for {
		select {
		case <-a.stop:
			return
		case <-ctx.Done():
			a.Close()
			return
		case batch := <-a.queue:
			time.Sleep(a.cfg.ResponseDelay)
			a.mu.Lock()
			open := a.state == stt.StateOpen
			cb := a.cb
			a.mu.Unlock()
			if open {
				cb.OnTokens(batch)
			}
		}
	}
}

// State reports the simulated connection state.
func (a *Adapter) State() stt.ConnState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SendAudio advances the script by one step per chunk.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != stt.StateOpen {
		return stt.ErrNotOpen
	}
	if len(a.steps) == 0 {
		return nil
	}

	batch := a.steps[a.next%len(a.steps)]
	select {
	case a.queue <- batch:
		a.next++
	default:
	}
	return nil
}

// Close ends the simulated connection and reports a normal closure.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.state == stt.StateClosed {
		a.mu.Unlock()
		return nil
	}
	a.state = stt.StateClosed
	close(a.stop)
	cb := a.cb
	a.mu.Unlock()

	if cb != nil {
		go cb.OnClose(1000, "closed")
	}
	return nil
}
