package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/service/transcribe"
	"live-interpreter-service/internal/service/transcript"
	"live-interpreter-service/internal/service/translate"
	"live-interpreter-service/internal/service/tts"
)

const maxAudioUpload = 32 << 20

// SessionController is the session surface the API drives.
type SessionController interface {
	Start(ctx context.Context) (models.SessionStatus, error)
	Switch(ctx context.Context, role models.SpeakerRole) (models.SessionStatus, error)
	Stop(ctx context.Context) (models.SessionStatus, error)
	Clear(ctx context.Context) (models.SessionStatus, error)
	UpdateConfig(ctx context.Context, cfg models.SessionConfig) (models.SessionStatus, error)
	Status(ctx context.Context) (models.SessionStatus, error)
}

// Translator translates standalone text.
type Translator interface {
	Translate(ctx context.Context, r translate.Request) (translate.Response, error)
}

// Synthesizer renders speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, r tts.Request) (tts.Result, error)
}

type handlers struct {
	session     SessionController
	log         *transcript.Log
	translator  Translator
	synthesizer Synthesizer
	transcriber transcribe.Transcriber
	logger      zerolog.Logger
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *handlers) sessionResult(w http.ResponseWriter, msg string, st models.SessionStatus, err error) {
	if err != nil {
		writeError(w, msg, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Status(r.Context())
	h.sessionResult(w, "Failed to read session", st, err)
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Start(r.Context())
	h.sessionResult(w, "Failed to start session", st, err)
}

type switchRequest struct {
	Speaker string `json:"speaker"`
}

func (h *handlers) switchSpeaker(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, "Invalid request body", err)
		return
	}
	role, err := models.ParseSpeakerRole(req.Speaker)
	if err != nil {
		writeError(w, "Invalid speaker", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	st, err := h.session.Switch(r.Context(), role)
	h.sessionResult(w, "Failed to switch speaker", st, err)
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Stop(r.Context())
	h.sessionResult(w, "Failed to stop session", st, err)
}

func (h *handlers) clear(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Clear(r.Context())
	h.sessionResult(w, "Failed to clear transcripts", st, err)
}

func (h *handlers) updateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.SessionConfig
	if err := decode(r, &cfg); err != nil {
		writeError(w, "Invalid request body", err)
		return
	}
	st, err := h.session.UpdateConfig(r.Context(), cfg)
	h.sessionResult(w, "Failed to update config", st, err)
}

type transcriptsResponse struct {
	Entries []models.TranscriptEntry `json:"entries"`
}

func (h *handlers) transcripts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, transcriptsResponse{Entries: h.log.Entries()})
}

func (h *handlers) languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.SupportedLanguages)
}

type translateResponse struct {
	Success        bool   `json:"success"`
	TranslatedText string `json:"translatedText"`
}

func (h *handlers) translate(w http.ResponseWriter, r *http.Request) {
	var req translate.Request
	if err := decode(r, &req); err != nil {
		writeError(w, "Invalid request body", err)
		return
	}
	resp, err := h.translator.Translate(r.Context(), req)
	if err != nil {
		h.logger.Error().Err(err).Msg("Translation failed")
		writeError(w, "Failed to translate", err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{Success: true, TranslatedText: resp.TranslatedText})
}

type speakRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Speaker  string `json:"speaker,omitempty"`
}

type speakResponse struct {
	Success bool   `json:"success,omitempty"`
	Audio   string `json:"audio,omitempty"`
	Format  string `json:"format,omitempty"`
	Message string `json:"message,omitempty"`
	Note    string `json:"note,omitempty"`
}

func (h *handlers) speak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := decode(r, &req); err != nil {
		writeError(w, "Invalid request body", err)
		return
	}
	res, err := h.synthesizer.Synthesize(r.Context(), tts.Request{Text: req.Text, Language: req.Language})
	if err != nil {
		h.logger.Error().Err(err).Str("language", req.Language).Msg("Speech synthesis failed")
		writeError(w, "Failed to synthesize speech", err)
		return
	}
	if res.NotConfigured {
		writeJSON(w, http.StatusOK, speakResponse{
			Message: res.Message,
			Note:    "Set AZURE_SPEECH_KEY and AZURE_SPEECH_REGION to enable speech synthesis",
		})
		return
	}
	writeJSON(w, http.StatusOK, speakResponse{
		Success: true,
		Audio:   base64.StdEncoding.EncodeToString(res.Audio),
		Format:  res.Format,
	})
}

func (h *handlers) transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		writeError(w, "Invalid multipart form", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	f, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, "No audio file provided", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		writeError(w, "Failed to read audio", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	res, err := h.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		if !errors.Is(err, transcribe.ErrEmptyAudio) {
			h.logger.Error().Err(err).Int("bytes", len(audio)).Msg("Transcription failed")
		}
		writeError(w, "Failed to transcribe audio", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
