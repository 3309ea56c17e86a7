// Package transcribe defines batch transcription of a complete audio clip.
package transcribe

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyAudio is returned when no audio bytes are supplied.
	ErrEmptyAudio = errors.New("no audio provided")
	// ErrNotConfigured is returned when the backend has no credentials.
	ErrNotConfigured = errors.New("transcription backend not configured")
)

// Word is one recognized word with its offsets from the start of the clip.
type Word struct {
	Text       string        `json:"text"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Confidence float64       `json:"confidence,omitempty"`
}

// Result is the outcome of a batch transcription.
type Result struct {
	Transcript string `json:"transcript"`
	Words      []Word `json:"words"`
}

// Transcriber converts a whole audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (Result, error)
}
