// Package google provides a Google Cloud Speech-to-Text batch transcriber.
package google

import (
	"context"
	"fmt"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"live-interpreter-service/internal/observability/logging"
	"live-interpreter-service/internal/observability/metrics"
	"live-interpreter-service/internal/service/transcribe"
)

// Config holds the recognition settings sent with every request.
type Config struct {
	LanguageCode    string
	SampleRateHz    int32
	AudioEncoding   string // LINEAR16, MULAW, FLAC, ...
	Punctuation     bool
	CredentialsFile string // empty uses application default credentials
}

// DefaultConfig matches the 16 kHz mono PCM captured by the recorder.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "en-US",
		SampleRateHz:  16000,
		AudioEncoding: "LINEAR16",
		Punctuation:   true,
	}
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Transcriber implements transcribe.Transcriber with the synchronous Recognize call.
type Transcriber struct {
	cfg       Config
	client    *speech.Client
	recognize recognizeFunc
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// New dials the Speech API.
func New(ctx context.Context, cfg Config) (*Transcriber, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	t := newTranscriber(cfg, func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return c.Recognize(ctx, req)
	})
	t.client = c
	return t, nil
}

func newTranscriber(cfg Config, fn recognizeFunc) *Transcriber {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = 16000
	}
	return &Transcriber{
		cfg:       cfg,
		recognize: fn,
		log:       logging.WithComponent("transcribe.google"),
		metrics:   metrics.DefaultMetrics,
	}
}

// Close releases the underlying client.
func (t *Transcriber) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}

// Transcribe recognizes audio and returns the best alternative of every result,
// joined in order, with word offsets.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (transcribe.Result, error) {
	if len(audio) == 0 {
		return transcribe.Result{}, transcribe.ErrEmptyAudio
	}

	start := time.Now()
	resp, err := t.recognize(ctx, t.request(audio))
	if err != nil {
		t.metrics.RecordCollaborator("google_transcribe", "error", time.Since(start).Seconds())
		t.log.Error().Err(err).Int("bytes", len(audio)).Msg("Recognize failed")
		return transcribe.Result{}, fmt.Errorf("recognize: %w", err)
	}
	t.metrics.RecordCollaborator("google_transcribe", "ok", time.Since(start).Seconds())

	res := toResult(resp)
	t.log.Debug().
		Int("bytes", len(audio)).
		Int("words", len(res.Words)).
		Msg("Transcription complete")
	return res, nil
}

func (t *Transcriber) request(audio []byte) *speechpb.RecognizeRequest {
	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(t.cfg.AudioEncoding),
			SampleRateHertz:            t.cfg.SampleRateHz,
			LanguageCode:               t.cfg.LanguageCode,
			EnableAutomaticPunctuation: t.cfg.Punctuation,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}
}

func toResult(resp *speechpb.RecognizeResponse) transcribe.Result {
	res := transcribe.Result{Words: []transcribe.Word{}}
	for _, r := range resp.GetResults() {
		alt := best(r.GetAlternatives())
		if alt == nil || alt.GetTranscript() == "" {
			continue
		}
		if res.Transcript != "" {
			res.Transcript += " "
		}
		res.Transcript += alt.GetTranscript()

		for _, w := range alt.GetWords() {
			res.Words = append(res.Words, transcribe.Word{
				Text:       w.GetWord(),
				Start:      w.GetStartTime().AsDuration(),
				End:        w.GetEndTime().AsDuration(),
				Confidence: float64(w.GetConfidence()),
			})
		}
	}
	return res
}

func best(alts []*speechpb.SpeechRecognitionAlternative) *speechpb.SpeechRecognitionAlternative {
	var out *speechpb.SpeechRecognitionAlternative
	for _, a := range alts {
		if out == nil || a.GetConfidence() > out.GetConfidence() {
			out = a
		}
	}
	return out
}

// parseAudioEncoding converts a string encoding name to the Google Speech enum.
// Unknown names fall back to LINEAR16.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
