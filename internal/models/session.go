package models

import (
	"fmt"
	"strings"
)

// SpeakerRole identifies one of the two conversational sides.
type SpeakerRole string

const (
	RoleProvider SpeakerRole = "provider"
	RolePatient  SpeakerRole = "patient"
)

// Roles lists both speaker roles in a stable order.
var Roles = []SpeakerRole{RoleProvider, RolePatient}

// Valid reports whether r is a known role.
func (r SpeakerRole) Valid() bool {
	return r == RoleProvider || r == RolePatient
}

// Other returns the opposite role.
func (r SpeakerRole) Other() SpeakerRole {
	if r == RoleProvider {
		return RolePatient
	}
	return RoleProvider
}

// ParseSpeakerRole parses a role name, case-insensitively.
func ParseSpeakerRole(s string) (SpeakerRole, error) {
	r := SpeakerRole(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown speaker role %q", s)
	}
	return r, nil
}

// SessionConfig holds the per-session language pair and TTS switch.
// A change applies on the next (re)connect.
type SessionConfig struct {
	ProviderLanguage string `json:"providerLanguage"`
	PatientLanguage  string `json:"patientLanguage"`
	TTSEnabled       bool   `json:"ttsEnabled"`
}

// SourceLanguage is the language spoken by role.
func (c SessionConfig) SourceLanguage(role SpeakerRole) string {
	if role == RolePatient {
		return c.PatientLanguage
	}
	return c.ProviderLanguage
}

// TargetLanguage is the language role's speech is translated into.
func (c SessionConfig) TargetLanguage(role SpeakerRole) string {
	return c.SourceLanguage(role.Other())
}

// Language is a selectable conversation language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SupportedLanguages are the languages offered to both sides.
var SupportedLanguages = []Language{
	{"en", "English"},
	{"es", "Spanish"},
	{"zh", "Chinese"},
	{"ar", "Arabic"},
	{"fr", "French"},
	{"de", "German"},
	{"hi", "Hindi"},
	{"ru", "Russian"},
	{"pt", "Portuguese"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"vi", "Vietnamese"},
	{"it", "Italian"},
	{"pl", "Polish"},
	{"uk", "Ukrainian"},
	{"fa", "Persian"},
	{"tr", "Turkish"},
	{"nl", "Dutch"},
	{"th", "Thai"},
	{"sv", "Swedish"},
}

// NormalizeLanguage lowercases a language code and keeps the primary subtag,
// so "en-US" and "EN" both become "en".
func NormalizeLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return code
}

// Normalized returns cfg with both language codes normalized.
func (c SessionConfig) Normalized() SessionConfig {
	c.ProviderLanguage = NormalizeLanguage(c.ProviderLanguage)
	c.PatientLanguage = NormalizeLanguage(c.PatientLanguage)
	return c
}

// IsSupportedLanguage reports whether code, once normalized, is in SupportedLanguages.
func IsSupportedLanguage(code string) bool {
	code = NormalizeLanguage(code)
	for _, l := range SupportedLanguages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// SessionStatus is a point-in-time view of the orchestrator.
type SessionStatus struct {
	SessionID string        `json:"sessionId,omitempty"`
	State     string        `json:"state"`
	Speaker   SpeakerRole   `json:"speaker"`
	Connected bool          `json:"connected"`
	Config    SessionConfig `json:"config"`
	Entries   int           `json:"entries"`
}
