package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranslate_ResponseFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"translated_text", `{"translated_text":"Hola"}`, "Hola"},
		{"text fallback", `{"text":"Bonjour"}`, "Bonjour"},
		{"prefers translated_text", `{"translated_text":"Hallo","text":"ignored"}`, "Hallo"},
		{"neither", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got apiRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer secret" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}
				json.NewDecoder(r.Body).Decode(&got)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(Config{URL: srv.URL, APIKey: "secret"})
			resp, err := c.Translate(context.Background(), Request{Text: "Hello", SourceLanguage: "en", TargetLanguage: "es"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.TranslatedText != tt.want {
				t.Errorf("TranslatedText = %q, want %q", resp.TranslatedText, tt.want)
			}
			if got.Text != "Hello" || got.SourceLanguage != "en" || got.TargetLanguage != "es" {
				t.Errorf("unexpected request body %+v", got)
			}
		})
	}
}

func TestTranslate_InvalidRequest(t *testing.T) {
	c := New(Config{URL: "http://127.0.0.1:0", APIKey: "k"})
	for _, r := range []Request{
		{SourceLanguage: "en", TargetLanguage: "es"},
		{Text: "  ", SourceLanguage: "en", TargetLanguage: "es"},
		{Text: "hi", TargetLanguage: "es"},
		{Text: "hi", SourceLanguage: "en"},
	} {
		if _, err := c.Translate(context.Background(), r); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("Translate(%+v) = %v, want ErrInvalidRequest", r, err)
		}
	}
}

func TestTranslate_NotConfigured(t *testing.T) {
	_, err := New(Config{}).Translate(context.Background(), Request{Text: "hi", SourceLanguage: "en", TargetLanguage: "es"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTranslate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad language", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL, APIKey: "k"}).Translate(context.Background(), Request{Text: "hi", SourceLanguage: "en", TargetLanguage: "xx"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d", apiErr.Status)
	}
}
