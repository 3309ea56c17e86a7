// Package schema checks transcript events before they leave the process.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"live-interpreter-service/internal/models"
)

// ErrInvalidEvent is wrapped by every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks entries and partial updates. Other types are accepted as is.
func (v *Validator) Validate(event any) error {
	switch ev := event.(type) {
	case models.TranscriptEntry:
		return v.entry(ev)
	case *models.TranscriptEntry:
		if ev == nil {
			return fmt.Errorf("%w: nil entry", ErrInvalidEvent)
		}
		return v.entry(*ev)
	case models.PartialUpdate:
		return v.partial(ev)
	case *models.PartialUpdate:
		if ev == nil {
			return fmt.Errorf("%w: nil partial", ErrInvalidEvent)
		}
		return v.partial(*ev)
	}
	return nil
}

func (v *Validator) entry(e models.TranscriptEntry) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: entry id is empty", ErrInvalidEvent)
	case !e.Speaker.Valid():
		return fmt.Errorf("%w: entry %s has speaker %q", ErrInvalidEvent, e.ID, e.Speaker)
	case strings.TrimSpace(e.OriginalText) == "":
		return fmt.Errorf("%w: entry %s has no original text", ErrInvalidEvent, e.ID)
	case !e.IsFinal:
		return fmt.Errorf("%w: entry %s is not final", ErrInvalidEvent, e.ID)
	case e.Timestamp.IsZero():
		return fmt.Errorf("%w: entry %s has no timestamp", ErrInvalidEvent, e.ID)
	}
	return nil
}

func (v *Validator) partial(p models.PartialUpdate) error {
	if !p.Speaker.Valid() {
		return fmt.Errorf("%w: partial has speaker %q", ErrInvalidEvent, p.Speaker)
	}
	if p.Timestamp.IsZero() {
		return fmt.Errorf("%w: partial has no timestamp", ErrInvalidEvent)
	}
	return nil
}
