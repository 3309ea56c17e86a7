// Package tts synthesizes translated text through the Azure Speech REST API.
package tts

import (
	"bytes"
	"context"
	"encoding/xml"
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

const (
	// OutputFormat is the Azure output format requested for every synthesis.
	OutputFormat = "audio-16khz-32kbitrate-mono-mp3"
	// DefaultVoice is used for languages missing from Voices.
	DefaultVoice = "en-US-AvaMultilingualNeural"

	notConfiguredMessage = "TTS not configured"
)

// ErrInvalidRequest is returned when text or language is missing.
var ErrInvalidRequest = errors.New("missing required parameters")

// Voices maps a language code to its neural voice.
var Voices = map[string]string{
	"en": "en-US-AvaMultilingualNeural",
	"es": "es-ES-ElviraNeural",
	"zh": "zh-CN-XiaoxiaoNeural",
	"ar": "ar-SA-ZariyahNeural",
	"fr": "fr-FR-DeniseNeural",
	"de": "de-DE-KatjaNeural",
	"hi": "hi-IN-SwaraNeural",
	"ru": "ru-RU-SvetlanaNeural",
	"pt": "pt-BR-FranciscaNeural",
	"ja": "ja-JP-NanamiNeural",
	"ko": "ko-KR-SunHiNeural",
	"vi": "vi-VN-HoaiMyNeural",
	"it": "it-IT-ElsaNeural",
	"pl": "pl-PL-ZofiaNeural",
	"uk": "uk-UA-PolinaNeural",
	"fa": "fa-IR-DilaraNeural",
	"tr": "tr-TR-EmelNeural",
	"nl": "nl-NL-ColetteNeural",
	"th": "th-TH-PremwadeeNeural",
	"sv": "sv-SE-SofieNeural",
}

// VoiceFor returns the voice for language, falling back to DefaultVoice.
func VoiceFor(language string) string {
	if v, ok := Voices[strings.ToLower(language)]; ok {
		return v
	}
	return DefaultVoice
}

// Request is one synthesis call.
type Request struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Result is the synthesized audio, or a NotConfigured marker when credentials are absent.
type Result struct {
	Audio         []byte `json:"audio,omitempty"`
	Format        string `json:"format,omitempty"`
	Voice         string `json:"voice,omitempty"`
	NotConfigured bool   `json:"notConfigured,omitempty"`
	Message       string `json:"message,omitempty"`
}

// SynthesisError is a failed synthesis reported by the service.
type SynthesisError struct {
	Status  int
	Details string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech synthesis failed: status %d: %s", e.Status, e.Details)
}

// Config holds the Azure credentials. Endpoint overrides the region URL.
type Config struct {
	Key      string
	Region   string
	Endpoint string
	Timeout  time.Duration
}

// Configured reports whether both credentials are present.
func (c Config) Configured() bool {
	return c.Key != "" && c.Region != ""
}

func (c Config) url() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", c.Region)
}

// Synthesizer calls the Azure text-to-speech endpoint.
type Synthesizer struct {
	cfg     Config
	http    *http.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a synthesizer. Missing credentials are not an error; Synthesize reports them.
func New(cfg Config) *Synthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	s := &Synthesizer{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logging.WithComponent("tts"),
		metrics: metrics.DefaultMetrics,
	}
	if !cfg.Configured() {
		s.log.Warn().Msg("Azure Speech credentials not configured, TTS disabled")
	}
	return s
}

// Synthesize renders r.Text with the voice for r.Language as MP3.
// Failures are terminal; the caller decides whether to try again.
func (s *Synthesizer) Synthesize(ctx context.Context, r Request) (Result, error) {
	if strings.TrimSpace(r.Text) == "" || r.Language == "" {
		return Result{}, ErrInvalidRequest
	}
	if !s.cfg.Configured() {
		return Result{NotConfigured: true, Message: notConfiguredMessage}, nil
	}

	voice := VoiceFor(r.Language)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.url(), bytes.NewReader(ssml(voice, r.Text)))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.cfg.Key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", OutputFormat)
	req.Header.Set("User-Agent", "live-interpreter-service")

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		s.metrics.RecordCollaborator("tts", "error", time.Since(start).Seconds())
		return Result{}, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		s.metrics.RecordCollaborator("tts", "error", time.Since(start).Seconds())
		return Result{}, fmt.Errorf("read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		s.metrics.RecordCollaborator("tts", "rejected", time.Since(start).Seconds())
		s.log.Error().Int("status", resp.StatusCode).Str("voice", voice).Msg("Speech synthesis failed")
		return Result{}, &SynthesisError{Status: resp.StatusCode, Details: string(audio)}
	}
	s.metrics.RecordCollaborator("tts", "ok", time.Since(start).Seconds())

	s.log.Debug().
		Str("voice", voice).
		Int("chars", len(r.Text)).
		Int("bytes", len(audio)).
		Msg("Synthesis complete")
	return Result{Audio: audio, Format: "mp3", Voice: voice}, nil
}

func ssml(voice, text string) []byte {
	var b bytes.Buffer
	locale := voice
	if i := strings.Index(voice, "-"); i > 0 {
		if j := strings.Index(voice[i+1:], "-"); j > 0 {
			locale = voice[:i+1+j]
		}
	}
	fmt.Fprintf(&b, `<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s">`, locale, voice)
	xml.EscapeText(&b, []byte(text))
	b.WriteString(`</voice></speak>`)
	return b.Bytes()
}
