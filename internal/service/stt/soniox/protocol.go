package soniox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"live-interpreter-service/internal/models"
)

// ErrMalformedMessage is returned for payloads that are not a JSON object.
var ErrMalformedMessage = errors.New("malformed soniox message")

// TranslationConfig requests real-time translation of the recognized speech.
type TranslationConfig struct {
	Type           string `json:"type"`
	TargetLanguage string `json:"target_language,omitempty"`
}

// Request is the configuration message sent as the first frame of a connection.
type Request struct {
	APIKey          string             `json:"api_key"`
	Model           string             `json:"model"`
	AudioFormat     string             `json:"audio_format,omitempty"`
	IncludeNonfinal bool               `json:"include_nonfinal"`
	LanguageHints   []string           `json:"language_hints,omitempty"`
	Translation     *TranslationConfig `json:"translation,omitempty"`
}

// ServerError is an error object reported by the service in place of tokens.
type ServerError struct {
	Code    int
	Message string
	Status  string
}

func (e *ServerError) Error() string {
	switch {
	case e.Code != 0 && e.Message != "":
		return fmt.Sprintf("soniox error %d: %s", e.Code, e.Message)
	case e.Message != "":
		return "soniox error: " + e.Message
	case e.Code != 0:
		return fmt.Sprintf("soniox error %d", e.Code)
	default:
		return "soniox error"
	}
}

// Message is one parsed server message.
type Message struct {
	Tokens   []models.Token
	Finished bool
}

// Batch converts the message into the engine's input shape.
func (m Message) Batch() models.TokenBatch {
	return models.TokenBatch{Tokens: m.Tokens, Finished: m.Finished}
}

// languageKeys are the token fields that may carry a language code, in priority order.
var languageKeys = []string{"language_code", "language", "lang", "language_code_bcp_47", "lang_code"}

// ParseMessage decodes a server message, tolerating variant token shapes.
// An error object yields a *ServerError; a non-object payload yields ErrMalformedMessage.
func ParseMessage(data []byte) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if raw == nil {
		return Message{}, ErrMalformedMessage
	}

	if serr := parseError(raw); serr != nil {
		return Message{}, serr
	}

	msg := Message{Finished: boolField(raw, "finished")}
	items, _ := raw["tokens"].([]any)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		msg.Tokens = append(msg.Tokens, parseToken(obj))
	}
	return msg, nil
}

func parseError(raw map[string]any) *ServerError {
	serr := &ServerError{}
	found := false

	switch v := raw["error"].(type) {
	case nil:
	case string:
		if v != "" {
			serr.Message = v
			found = true
		}
	case bool:
		found = v
	case map[string]any:
		serr.Message = stringField(v, "message")
		serr.Code = intField(v, "code")
		found = true
	default:
		serr.Message = fmt.Sprint(v)
		found = true
	}

	if status := stringField(raw, "status"); strings.EqualFold(status, "error") {
		serr.Status = status
		found = true
	}
	if _, ok := raw["error_code"]; ok {
		serr.Code = intField(raw, "error_code")
		found = true
	}
	if m := stringField(raw, "error_message"); m != "" {
		serr.Message = m
		found = true
	}

	if !found {
		return nil
	}
	return serr
}

func parseToken(obj map[string]any) models.Token {
	tok := models.Token{
		Text:    stringField(obj, "text"),
		IsFinal: boolField(obj, "is_final"),
	}
	for _, key := range languageKeys {
		if lang := stringField(obj, key); lang != "" {
			tok.LanguageCode = lang
			break
		}
	}
	status := strings.ToLower(stringField(obj, "translation_status"))
	tok.TranslationMarker = strings.Contains(status, "translation")
	return tok
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func boolField(obj map[string]any, key string) bool {
	b, _ := obj[key].(bool)
	return b
}

func intField(obj map[string]any, key string) int {
	switch v := obj[key].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}
