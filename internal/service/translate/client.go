// Package translate translates standalone text through the Soniox REST API.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/observability/logging"
	"live-interpreter-service/internal/observability/metrics"
)

var (
	// ErrInvalidRequest is returned when text or either language is missing.
	ErrInvalidRequest = errors.New("missing required parameters")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("translation API key not configured")
)

// Request is a single translation call.
type Request struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

// Validate checks that every field is present.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" || r.SourceLanguage == "" || r.TargetLanguage == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Response carries the translated text.
type Response struct {
	TranslatedText string `json:"translatedText"`
}

// APIError is a non-2xx response. Details is the raw body.
type APIError struct {
	Status  int
	Details string
}

// StatusCode returns the upstream HTTP status.
func (e *APIError) StatusCode() int { return e.Status }

func (e *APIError) Error() string {
	return fmt.Sprintf("translation failed: status %d: %s", e.Status, e.Details)
}

// Config for the client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// DefaultConfig returns the public endpoint.
func DefaultConfig() Config {
	return Config{
		URL:     "https://api.soniox.com/translate",
		Timeout: 15 * time.Second,
	}
}

// Client calls the translation endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a client. Zero fields take defaults.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logging.WithComponent("translate"),
		metrics: metrics.DefaultMetrics,
	}
}

type apiRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type apiResponse struct {
	TranslatedText string `json:"translated_text"`
	Text           string `json:"text"`
}

// Translate sends r and returns translated_text, or text when the former is absent.
func (c *Client) Translate(ctx context.Context, r Request) (Response, error) {
	if err := r.Validate(); err != nil {
		return Response{}, err
	}
	if c.cfg.APIKey == "" {
		return Response{}, ErrNotConfigured
	}

	body, err := json.Marshal(apiRequest{
		Text:           r.Text,
		SourceLanguage: r.SourceLanguage,
		TargetLanguage: r.TargetLanguage,
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordCollaborator("translate", "error", time.Since(start).Seconds())
		return Response{}, fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordCollaborator("translate", "error", time.Since(start).Seconds())
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.RecordCollaborator("translate", "rejected", time.Since(start).Seconds())
		c.log.Error().Int("status", resp.StatusCode).Str("body", string(raw)).Msg("Soniox translation error")
		return Response{}, &APIError{Status: resp.StatusCode, Details: string(raw)}
	}
	c.metrics.RecordCollaborator("translate", "ok", time.Since(start).Seconds())

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	text := out.TranslatedText
	if text == "" {
		text = out.Text
	}

	c.log.Debug().
		Str("source", r.SourceLanguage).
		Str("target", r.TargetLanguage).
		Int("chars", len(r.Text)).
		Msg("Translated text")
	return Response{TranslatedText: text}, nil
}
