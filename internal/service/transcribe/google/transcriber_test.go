package google

import (
	"context"
	"errors"
	"testing"
	"time"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/protobuf/types/known/durationpb"

	"live-interpreter-service/internal/service/transcribe"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if !cfg.Punctuation {
		t.Error("expected punctuation enabled by default")
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR", speechpb.RecognitionConfig_AMR},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"SPEEX_WITH_HEADER_BYTE", speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"UNKNOWN", speechpb.RecognitionConfig_LINEAR16},
		{"linear16", speechpb.RecognitionConfig_LINEAR16},
		{"", speechpb.RecognitionConfig_LINEAR16},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func word(w string, start, end time.Duration) *speechpb.WordInfo {
	return &speechpb.WordInfo{Word: w, StartTime: durationpb.New(start), EndTime: durationpb.New(end)}
}

func TestTranscribe_BuildsRequestAndResult(t *testing.T) {
	var got *speechpb.RecognizeRequest
	tr := newTranscriber(Config{LanguageCode: "es-ES", SampleRateHz: 8000, AudioEncoding: "MULAW"},
		func(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			got = req
			return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{
					{Transcript: "hola", Confidence: 0.4},
					{Transcript: "Hola doctor", Confidence: 0.9, Words: []*speechpb.WordInfo{
						word("Hola", 0, 300*time.Millisecond),
						word("doctor", 300*time.Millisecond, 800*time.Millisecond),
					}},
				}},
				{Alternatives: nil},
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "me duele", Confidence: 0.8}}},
			}}, nil
		})

	res, err := tr.Transcribe(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := got.GetConfig()
	if cfg.GetLanguageCode() != "es-ES" || cfg.GetSampleRateHertz() != 8000 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.GetEncoding() != speechpb.RecognitionConfig_MULAW {
		t.Errorf("encoding = %v", cfg.GetEncoding())
	}
	if !cfg.GetEnableWordTimeOffsets() {
		t.Error("word offsets should be requested")
	}
	if string(got.GetAudio().GetContent()) != "\x01\x02\x03" {
		t.Error("audio content not forwarded")
	}

	if res.Transcript != "Hola doctor me duele" {
		t.Errorf("transcript = %q", res.Transcript)
	}
	if len(res.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(res.Words))
	}
	if res.Words[1].Text != "doctor" || res.Words[1].Start != 300*time.Millisecond || res.Words[1].End != 800*time.Millisecond {
		t.Errorf("unexpected word %+v", res.Words[1])
	}
}

func TestTranscribe_Errors(t *testing.T) {
	boom := errors.New("unavailable")
	tr := newTranscriber(DefaultConfig(), func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, boom
	})

	if _, err := tr.Transcribe(context.Background(), nil); !errors.Is(err, transcribe.ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio, got %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), []byte{0}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close without client = %v", err)
	}
}
