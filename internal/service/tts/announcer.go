package tts

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/observability/logging"
)

// Broadcaster receives synthesized audio.
type Broadcaster interface {
	EmitSpoken(models.SpokenTranslation)
}

// Announcer speaks the translated text of finalized entries and broadcasts the audio.
// Speak blocks; the engine calls it from its own goroutine.
type Announcer struct {
	synth   *Synthesizer
	out     Broadcaster
	timeout time.Duration
	log     zerolog.Logger
}

// NewAnnouncer wires a synthesizer to a broadcaster.
func NewAnnouncer(synth *Synthesizer, out Broadcaster, timeout time.Duration) *Announcer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Announcer{
		synth:   synth,
		out:     out,
		timeout: timeout,
		log:     logging.WithComponent("tts.announcer"),
	}
}

// Speak synthesizes entry.TranslatedText in language. Errors are logged and dropped.
func (a *Announcer) Speak(entry models.TranscriptEntry, language string) {
	if entry.TranslatedText == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	res, err := a.synth.Synthesize(ctx, Request{Text: entry.TranslatedText, Language: language})
	if err != nil {
		a.log.Error().Err(err).Str("entryId", entry.ID).Str("language", language).Msg("TTS failed")
		return
	}
	if res.NotConfigured {
		a.log.Debug().Str("entryId", entry.ID).Msg(res.Message)
		return
	}

	a.out.EmitSpoken(models.SpokenTranslation{
		EntryID:  entry.ID,
		Speaker:  entry.Speaker,
		Language: language,
		Audio:    res.Audio,
		Format:   res.Format,
	})
}
