package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"live-interpreter-service/internal/service/session"
	"live-interpreter-service/internal/service/transcribe"
	"live-interpreter-service/internal/service/translate"
	"live-interpreter-service/internal/service/tts"
)

var errBadRequest = errors.New("bad request")

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusCoder is implemented by upstream API errors that carry their own status.
type statusCoder interface {
	StatusCode() int
}

func statusFor(err error) int {
	var sc statusCoder
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, session.ErrInvalidSpeaker),
		errors.Is(err, session.ErrUnsupportedLanguage),
		errors.Is(err, translate.ErrInvalidRequest),
		errors.Is(err, tts.ErrInvalidRequest),
		errors.Is(err, transcribe.ErrEmptyAudio):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrSessionNotActive),
		errors.Is(err, session.ErrSameSpeaker),
		errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrAudioUnavailable),
		errors.Is(err, session.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrConnectTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &sc):
		return sc.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes {error, details}.
func writeError(w http.ResponseWriter, msg string, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: msg, Details: err.Error()})
}
