package schema

import (
	"errors"
	"testing"
	"time"

	"live-interpreter-service/internal/models"
)

func validEntry() models.TranscriptEntry {
	return models.TranscriptEntry{
		ID:             "sess-seg-1",
		Speaker:        models.RolePatient,
		OriginalText:   "Me duele la cabeza.",
		TranslatedText: "My head hurts.",
		Timestamp:      time.Now(),
		IsFinal:        true,
	}
}

func TestValidate_Entry(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *models.TranscriptEntry)
		wantErr bool
	}{
		{"valid", func(e *models.TranscriptEntry) {}, false},
		{"empty translation allowed", func(e *models.TranscriptEntry) { e.TranslatedText = "" }, false},
		{"missing id", func(e *models.TranscriptEntry) { e.ID = "" }, true},
		{"bad speaker", func(e *models.TranscriptEntry) { e.Speaker = "doctor" }, true},
		{"blank original", func(e *models.TranscriptEntry) { e.OriginalText = "  " }, true},
		{"not final", func(e *models.TranscriptEntry) { e.IsFinal = false }, true},
		{"zero timestamp", func(e *models.TranscriptEntry) { e.Timestamp = time.Time{} }, true},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)

			err := v.Validate(e)
			if tt.wantErr && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if ptrErr := v.Validate(&e); (ptrErr == nil) != (err == nil) {
				t.Errorf("pointer and value disagree: %v vs %v", ptrErr, err)
			}
		})
	}
}

func TestValidate_Partial(t *testing.T) {
	v := New()
	if err := v.Validate(models.PartialUpdate{Speaker: models.RoleProvider, Timestamp: time.Now()}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.Validate(models.PartialUpdate{Timestamp: time.Now()}); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
	var nilPartial *models.PartialUpdate
	if err := v.Validate(nilPartial); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent for nil, got %v", err)
	}
}

func TestValidate_OtherTypesPass(t *testing.T) {
	if err := New().Validate(map[string]string{"k": "v"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
