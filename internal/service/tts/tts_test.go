package tts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"live-interpreter-service/internal/models"
)

func TestVoiceFor(t *testing.T) {
	tests := []struct {
		language string
		want     string
	}{
		{"en", "en-US-AvaMultilingualNeural"},
		{"es", "es-ES-ElviraNeural"},
		{"JA", "ja-JP-NanamiNeural"},
		{"sv", "sv-SE-SofieNeural"},
		{"xx", DefaultVoice},
		{"", DefaultVoice},
	}
	for _, tt := range tests {
		if got := VoiceFor(tt.language); got != tt.want {
			t.Errorf("VoiceFor(%q) = %s, want %s", tt.language, got, tt.want)
		}
	}
	if len(Voices) != len(models.SupportedLanguages) {
		t.Errorf("expected a voice per supported language, got %d", len(Voices))
	}
}

func azure(t *testing.T, status int, body string, gotSSML *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "az-key" {
			t.Errorf("missing subscription key")
		}
		if r.Header.Get("X-Microsoft-OutputFormat") != OutputFormat {
			t.Errorf("output format = %q", r.Header.Get("X-Microsoft-OutputFormat"))
		}
		b, _ := io.ReadAll(r.Body)
		if gotSSML != nil {
			*gotSSML = string(b)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSynthesize_Success(t *testing.T) {
	var body string
	srv := azure(t, http.StatusOK, "mp3-bytes", &body)
	s := New(Config{Key: "az-key", Region: "eastus", Endpoint: srv.URL})

	res, err := s.Synthesize(context.Background(), Request{Text: "Tome <dos> pastillas & agua", Language: "es"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "mp3-bytes" || res.Format != "mp3" || res.Voice != "es-ES-ElviraNeural" {
		t.Errorf("unexpected result %+v", res)
	}
	if !strings.Contains(body, `name="es-ES-ElviraNeural"`) || !strings.Contains(body, `xml:lang="es-ES"`) {
		t.Errorf("unexpected SSML %s", body)
	}
	if !strings.Contains(body, "Tome &lt;dos&gt; pastillas &amp; agua") {
		t.Errorf("text not escaped: %s", body)
	}
}

func TestSynthesize_NotConfigured(t *testing.T) {
	for _, cfg := range []Config{{}, {Key: "k"}, {Region: "eastus"}} {
		res, err := New(cfg).Synthesize(context.Background(), Request{Text: "hi", Language: "en"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.NotConfigured || res.Message != "TTS not configured" || res.Audio != nil {
			t.Errorf("unexpected result %+v", res)
		}
	}
}

func TestSynthesize_Errors(t *testing.T) {
	srv := azure(t, http.StatusUnauthorized, "bad key", nil)
	s := New(Config{Key: "az-key", Region: "eastus", Endpoint: srv.URL})

	if _, err := s.Synthesize(context.Background(), Request{Language: "en"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}

	_, err := s.Synthesize(context.Background(), Request{Text: "hi", Language: "en"})
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) || synthErr.Status != http.StatusUnauthorized {
		t.Errorf("expected SynthesisError 401, got %v", err)
	}
}

type spokenCollector struct {
	mu  sync.Mutex
	got []models.SpokenTranslation
}

func (c *spokenCollector) EmitSpoken(s models.SpokenTranslation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, s)
}

func TestAnnouncer_Speak(t *testing.T) {
	var body string
	srv := azure(t, http.StatusOK, "audio", &body)
	out := &spokenCollector{}
	a := NewAnnouncer(New(Config{Key: "az-key", Region: "eastus", Endpoint: srv.URL}), out, 0)

	entry := models.TranscriptEntry{ID: "s-seg-1", Speaker: models.RoleProvider, OriginalText: "Hello.", TranslatedText: "Hola."}
	a.Speak(entry, "es")
	a.Speak(models.TranscriptEntry{ID: "s-seg-2", OriginalText: "Hi."}, "es")

	if len(out.got) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(out.got))
	}
	got := out.got[0]
	if got.EntryID != "s-seg-1" || got.Speaker != models.RoleProvider || got.Language != "es" || string(got.Audio) != "audio" {
		t.Errorf("unexpected broadcast %+v", got)
	}
	if !strings.Contains(body, "Hola.") {
		t.Errorf("should speak the translated text, sent %s", body)
	}
}

func TestAnnouncer_NotConfiguredIsSilent(t *testing.T) {
	out := &spokenCollector{}
	NewAnnouncer(New(Config{}), out, 0).Speak(models.TranscriptEntry{ID: "x", TranslatedText: "Hola."}, "es")
	if len(out.got) != 0 {
		t.Errorf("expected no broadcast, got %d", len(out.got))
	}
}
