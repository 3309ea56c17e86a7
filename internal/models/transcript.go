// Package models defines the data structures shared by the interpreter service.
package models

import "time"

// Token is a single recognition token from the streaming service.
// Absent protocol fields default to their zero value.
type Token struct {
	Text              string `json:"text"`
	LanguageCode      string `json:"languageCode,omitempty"`
	IsFinal           bool   `json:"isFinal"`
	TranslationMarker bool   `json:"translationMarker,omitempty"`
}

// TokenBatch is one token message received from the streaming connection.
type TokenBatch struct {
	Tokens   []Token `json:"tokens"`
	Finished bool    `json:"finished,omitempty"`
}

// TranscriptEntry is a finalized bilingual transcript line. Immutable once created.
type TranscriptEntry struct {
	ID             string      `json:"id"`
	Speaker        SpeakerRole `json:"speaker"`
	OriginalText   string      `json:"originalText"`
	TranslatedText string      `json:"translatedText"`
	Timestamp      time.Time   `json:"timestamp"`
	IsFinal        bool        `json:"isFinal"`
}

// PartialUpdate is a live snapshot of one speaker buffer, published after every update.
type PartialUpdate struct {
	SessionID         string      `json:"sessionId"`
	Speaker           SpeakerRole `json:"speaker"`
	FinalOriginal     string      `json:"finalOriginal"`
	FinalTranslated   string      `json:"finalTranslated"`
	PartialOriginal   string      `json:"partialOriginal"`
	PartialTranslated string      `json:"partialTranslated"`
	Timestamp         time.Time   `json:"timestamp"`
}

// SpokenTranslation carries synthesized audio for a finalized entry.
type SpokenTranslation struct {
	EntryID  string      `json:"entryId"`
	Speaker  SpeakerRole `json:"speaker"`
	Language string      `json:"language"`
	Audio    []byte      `json:"audio"`
	Format   string      `json:"format"`
}
