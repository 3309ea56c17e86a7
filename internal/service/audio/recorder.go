package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/observability/logging"
)

// ErrRecorderRunning is returned by Start when the recorder is already running.
var ErrRecorderRunning = errors.New("recorder already running")

// Sink receives each captured chunk. It runs on the recorder goroutine.
type Sink func(chunk []byte)

// RecorderConfig controls the chunk cadence.
type RecorderConfig struct {
	Interval   time.Duration
	ChunkBytes int
}

// DefaultRecorderConfig returns 250 ms chunks of 16 kHz 16-bit mono audio.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Interval:   250 * time.Millisecond,
		ChunkBytes: 8000,
	}
}

// Recorder reads ChunkBytes from a source on every tick and hands them to a sink.
// Stopping it leaves the source open so it can be restarted on the same device.
type Recorder struct {
	src    Source
	cfg    RecorderConfig
	sink   Sink
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder creates a stopped recorder.
func NewRecorder(src Source, cfg RecorderConfig, sink Sink) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = def.ChunkBytes
	}
	return &Recorder{
		src:    src,
		cfg:    cfg,
		sink:   sink,
		logger: logging.WithComponent("recorder"),
	}
}

// Start begins chunking. Sources implementing Restarter are restarted first.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrRecorderRunning
	}
	if rs, ok := r.src.(Restarter); ok {
		rs.Restart()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx, r.done)
	return nil
}

func (r *Recorder) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			chunk := make([]byte, r.cfg.ChunkBytes)
			n, err := io.ReadFull(r.src, chunk)
			if n > 0 {
				r.sink(chunk[:n])
			}
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				if ctx.Err() == nil {
					r.logger.Warn().Err(err).Msg("Audio source ended")
				}
				return
			}
		}
	}
}

// Stop halts chunking and waits for the loop to exit. Safe to call when stopped.
func (r *Recorder) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the recorder is chunking.
func (r *Recorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}
