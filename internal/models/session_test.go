package models

import "testing"

func TestSessionConfig_LanguagesSwapPerRole(t *testing.T) {
	cfg := SessionConfig{ProviderLanguage: "en", PatientLanguage: "es"}

	tests := []struct {
		role   SpeakerRole
		source string
		target string
	}{
		{RoleProvider, "en", "es"},
		{RolePatient, "es", "en"},
	}

	for _, tt := range tests {
		if got := cfg.SourceLanguage(tt.role); got != tt.source {
			t.Errorf("SourceLanguage(%s) = %s, want %s", tt.role, got, tt.source)
		}
		if got := cfg.TargetLanguage(tt.role); got != tt.target {
			t.Errorf("TargetLanguage(%s) = %s, want %s", tt.role, got, tt.target)
		}
	}
}

func TestParseSpeakerRole(t *testing.T) {
	tests := []struct {
		input   string
		want    SpeakerRole
		wantErr bool
	}{
		{"provider", RoleProvider, false},
		{" Patient ", RolePatient, false},
		{"doctor", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSpeakerRole(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSpeakerRole(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSpeakerRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSpeakerRole_Other(t *testing.T) {
	if RoleProvider.Other() != RolePatient {
		t.Error("expected provider's other role to be patient")
	}
	if RolePatient.Other() != RoleProvider {
		t.Error("expected patient's other role to be provider")
	}
}

func TestIsSupportedLanguage(t *testing.T) {
	if len(SupportedLanguages) != 20 {
		t.Errorf("expected 20 supported languages, got %d", len(SupportedLanguages))
	}
	if !IsSupportedLanguage("es") {
		t.Error("expected es to be supported")
	}
	if IsSupportedLanguage("xx") {
		t.Error("expected xx to be unsupported")
	}
	if !IsSupportedLanguage("pt-BR") {
		t.Error("expected pt-BR to collapse to pt")
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"en-US", "en"},
		{"zh_Hans", "zh"},
		{" es ", "es"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeLanguage(tt.input); got != tt.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	cfg := SessionConfig{ProviderLanguage: "EN-gb", PatientLanguage: "Es-MX", TTSEnabled: true}.Normalized()
	if cfg.ProviderLanguage != "en" || cfg.PatientLanguage != "es" || !cfg.TTSEnabled {
		t.Errorf("Normalized() = %+v", cfg)
	}
}
