// Package soniox provides a batch transcriber backed by the Soniox REST API.
package soniox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/observability/logging"
	"live-interpreter-service/internal/observability/metrics"
	"live-interpreter-service/internal/service/transcribe"
)

// Config for the REST transcriber.
type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns the short-file endpoint settings.
func DefaultConfig() Config {
	return Config{
		URL:     "https://api.soniox.com/transcribe-file-short",
		Model:   "en_v2",
		Timeout: 30 * time.Second,
	}
}

// APIError is a non-2xx response from the API. Details carries the raw body.
type APIError struct {
	Status  int
	Details string
}

// StatusCode returns the upstream HTTP status.
func (e *APIError) StatusCode() int { return e.Status }

func (e *APIError) Error() string {
	return fmt.Sprintf("soniox transcribe: status %d: %s", e.Status, e.Details)
}

type request struct {
	Audio           string `json:"audio"`
	Model           string `json:"model"`
	IncludeNonfinal bool   `json:"include_nonfinal"`
}

type response struct {
	Text  string `json:"text"`
	Words []struct {
		Text       string  `json:"text"`
		StartMs    int64   `json:"start_ms"`
		DurationMs int64   `json:"duration_ms"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

// Transcriber implements transcribe.Transcriber.
type Transcriber struct {
	cfg     Config
	http    *http.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a transcriber. Zero fields in cfg take their defaults.
func New(cfg Config) *Transcriber {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Transcriber{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logging.WithComponent("transcribe.soniox"),
		metrics: metrics.DefaultMetrics,
	}
}

// Transcribe uploads audio base64-encoded and returns final text only.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (transcribe.Result, error) {
	if len(audio) == 0 {
		return transcribe.Result{}, transcribe.ErrEmptyAudio
	}
	if t.cfg.APIKey == "" {
		return transcribe.Result{}, transcribe.ErrNotConfigured
	}

	body, err := json.Marshal(request{
		Audio:           base64.StdEncoding.EncodeToString(audio),
		Model:           t.cfg.Model,
		IncludeNonfinal: false,
	})
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.http.Do(req)
	if err != nil {
		t.metrics.RecordCollaborator("soniox_transcribe", "error", time.Since(start).Seconds())
		return transcribe.Result{}, fmt.Errorf("soniox transcribe: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.metrics.RecordCollaborator("soniox_transcribe", "error", time.Since(start).Seconds())
		return transcribe.Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.metrics.RecordCollaborator("soniox_transcribe", "rejected", time.Since(start).Seconds())
		t.log.Error().Int("status", resp.StatusCode).Str("body", string(raw)).Msg("Soniox API error")
		return transcribe.Result{}, &APIError{Status: resp.StatusCode, Details: string(raw)}
	}
	t.metrics.RecordCollaborator("soniox_transcribe", "ok", time.Since(start).Seconds())

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return transcribe.Result{}, fmt.Errorf("decode response: %w", err)
	}

	res := transcribe.Result{Transcript: out.Text, Words: make([]transcribe.Word, 0, len(out.Words))}
	for _, w := range out.Words {
		s := time.Duration(w.StartMs) * time.Millisecond
		res.Words = append(res.Words, transcribe.Word{
			Text:       w.Text,
			Start:      s,
			End:        s + time.Duration(w.DurationMs)*time.Millisecond,
			Confidence: w.Confidence,
		})
	}
	return res, nil
}
