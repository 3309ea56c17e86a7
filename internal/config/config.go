package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configuration holds all service configuration.
type Configuration struct {
	Service       ServiceConfig
	Session       SessionConfig
	Engine        EngineConfig
	Switch        SwitchConfig
	Audio         AudioConfig
	Soniox        SonioxConfig
	STT           STTConfig
	Azure         AzureConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service-level settings.
type ServiceConfig struct {
	Principal string
	Env       string
	HTTPPort  string
	GRPCPort  string
}

// SessionConfig holds the initial language pair and TTS switch.
type SessionConfig struct {
	ProviderLanguage string
	PatientLanguage  string
	TTSEnabled       bool
	EventBuffer      int
}

// EngineConfig holds the finalization thresholds.
type EngineConfig struct {
	Debounce         time.Duration
	MinDebounceChars int
	MinFlushChars    int
}

// SwitchConfig holds connection hand-off timing.
type SwitchConfig struct {
	SettleDelay    time.Duration
	PollInterval   time.Duration
	ConnectTimeout time.Duration
	SwitchTimeout  time.Duration
}

// AudioConfig selects the capture device and its cadence.
type AudioConfig struct {
	Device        string // "file" or "silence"
	FilePath      string
	ChunkInterval time.Duration
	ChunkBytes    int
}

// SonioxConfig holds streaming and REST settings for Soniox.
type SonioxConfig struct {
	APIKey       string
	StreamURL    string
	Model        string
	AudioFormat  string
	TranslateURL string
	DialTimeout  time.Duration
}

// STTConfig holds the streaming provider choice and batch transcription settings.
type STTConfig struct {
	Provider        string // "soniox" or "mock"
	BatchProvider   string // "soniox" or "google"
	BatchURL        string
	BatchModel      string
	LanguageCode    string
	SampleRateHz    int
	AudioEncoding   string
	CredentialsFile string
}

// AzureConfig holds speech synthesis credentials.
type AzureConfig struct {
	SpeechKey    string
	SpeechRegion string
	Endpoint     string
}

// KafkaConfig holds Kafka settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	Principal    string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Configuration {
	_ = godotenv.Load()

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-live-interpreter")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			Env:       envOrDefault("ENV", "prod"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
		},
		Session: SessionConfig{
			ProviderLanguage: envOrDefault("PROVIDER_LANGUAGE", "en"),
			PatientLanguage:  envOrDefault("PATIENT_LANGUAGE", "es"),
			TTSEnabled:       envOrDefaultBool("TTS_ENABLED", false),
			EventBuffer:      envOrDefaultInt("SESSION_EVENT_BUFFER", 256),
		},
		Engine: EngineConfig{
			Debounce:         envOrDefaultDuration("ENGINE_DEBOUNCE", time.Second),
			MinDebounceChars: envOrDefaultInt("ENGINE_MIN_DEBOUNCE_CHARS", 5),
			MinFlushChars:    envOrDefaultInt("ENGINE_MIN_FLUSH_CHARS", 2),
		},
		Switch: SwitchConfig{
			SettleDelay:    envOrDefaultDuration("SWITCH_SETTLE_DELAY", 100*time.Millisecond),
			PollInterval:   envOrDefaultDuration("SWITCH_POLL_INTERVAL", 50*time.Millisecond),
			ConnectTimeout: envOrDefaultDuration("CONNECT_TIMEOUT", 3*time.Second),
			SwitchTimeout:  envOrDefaultDuration("SWITCH_TIMEOUT", 3*time.Second),
		},
		Audio: AudioConfig{
			Device:        envOrDefault("AUDIO_DEVICE", "silence"),
			FilePath:      envOrDefault("AUDIO_FILE", ""),
			ChunkInterval: envOrDefaultDuration("AUDIO_CHUNK_INTERVAL", 250*time.Millisecond),
			ChunkBytes:    envOrDefaultInt("AUDIO_CHUNK_BYTES", 8000),
		},
		Soniox: SonioxConfig{
			APIKey:       envOrDefault("SONIOX_API_KEY", ""),
			StreamURL:    envOrDefault("SONIOX_STREAM_URL", "wss://stt-rt.soniox.com/transcribe-websocket"),
			Model:        envOrDefault("SONIOX_MODEL", "stt-rt-preview"),
			AudioFormat:  envOrDefault("SONIOX_AUDIO_FORMAT", "auto"),
			TranslateURL: envOrDefault("SONIOX_TRANSLATE_URL", "https://api.soniox.com/translate"),
			DialTimeout:  envOrDefaultDuration("SONIOX_DIAL_TIMEOUT", 10*time.Second),
		},
		STT: STTConfig{
			Provider:        envOrDefault("STT_PROVIDER", "mock"),
			BatchProvider:   envOrDefault("STT_BATCH_PROVIDER", "soniox"),
			BatchURL:        envOrDefault("STT_BATCH_URL", "https://api.soniox.com/transcribe-file-short"),
			BatchModel:      envOrDefault("STT_BATCH_MODEL", "en_v2"),
			LanguageCode:    envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:    envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			AudioEncoding:   envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			CredentialsFile: envOrDefault("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Azure: AzureConfig{
			SpeechKey:    envOrDefault("AZURE_SPEECH_KEY", ""),
			SpeechRegion: envOrDefault("AZURE_SPEECH_REGION", ""),
			Endpoint:     envOrDefault("AZURE_SPEECH_ENDPOINT", ""),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "interpreter.transcript.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "interpreter.transcript.final"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
