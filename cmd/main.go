package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	grpcapi "live-interpreter-service/internal/api/grpc"
	"live-interpreter-service/internal/app"
	"live-interpreter-service/internal/config"
	"live-interpreter-service/internal/events"
	httpapi "live-interpreter-service/internal/http"
	"live-interpreter-service/internal/models"
	"live-interpreter-service/internal/observability"
	"live-interpreter-service/internal/observability/metrics"
	"live-interpreter-service/internal/service/audio"
	"live-interpreter-service/internal/service/reconcile"
	"live-interpreter-service/internal/service/session"
	"live-interpreter-service/internal/service/stt"
	"live-interpreter-service/internal/service/stt/mock"
	"live-interpreter-service/internal/service/stt/soniox"
	"live-interpreter-service/internal/service/transcribe"
	googletranscribe "live-interpreter-service/internal/service/transcribe/google"
	sonioxtranscribe "live-interpreter-service/internal/service/transcribe/soniox"
	"live-interpreter-service/internal/service/transcript"
	"live-interpreter-service/internal/service/translate"
	"live-interpreter-service/internal/service/tts"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	logger := application.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := transcript.NewLog(cfg.Session.EventBuffer)

	// Kafka publisher with separate topics for partial and final transcripts
	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()
	pubEvents, unsubscribePub := log.Subscribe()
	defer unsubscribePub()
	go publisher.Relay(ctx, pubEvents)

	hub := httpapi.NewHub()
	hubEvents, unsubscribeHub := log.Subscribe()
	defer unsubscribeHub()
	go hub.Run(ctx, hubEvents)

	synth := tts.New(tts.Config{
		Key:      cfg.Azure.SpeechKey,
		Region:   cfg.Azure.SpeechRegion,
		Endpoint: cfg.Azure.Endpoint,
	})

	orch := session.New(
		models.SessionConfig{
			ProviderLanguage: cfg.Session.ProviderLanguage,
			PatientLanguage:  cfg.Session.PatientLanguage,
			TTSEnabled:       cfg.Session.TTSEnabled,
		}.Normalized(),
		session.Options{
			SettleDelay:    cfg.Switch.SettleDelay,
			PollInterval:   cfg.Switch.PollInterval,
			ConnectTimeout: cfg.Switch.ConnectTimeout,
			SwitchTimeout:  cfg.Switch.SwitchTimeout,
			Recorder: audio.RecorderConfig{
				Interval:   cfg.Audio.ChunkInterval,
				ChunkBytes: cfg.Audio.ChunkBytes,
			},
			Engine: reconcile.Options{
				Debounce:         cfg.Engine.Debounce,
				MinDebounceChars: cfg.Engine.MinDebounceChars,
				MinFlushChars:    cfg.Engine.MinFlushChars,
			},
			EventBuffer: cfg.Session.EventBuffer,
		},
		session.Deps{
			Factory: streamFactory(cfg, logger),
			Device:  audioDevice(cfg, logger),
			Log:     log,
			Speaker: tts.NewAnnouncer(synth, log, 0),
		},
	)
	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		if err := orch.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Session loop failed")
		}
	}()

	transcriber := batchTranscriber(ctx, cfg, logger)

	httpServer := &http.Server{
		Addr: ":" + cfg.Service.HTTPPort,
		Handler: httpapi.NewRouter(application, httpapi.Deps{
			Session: orch,
			Log:     log,
			Hub:     hub,
			Translator: translate.New(translate.Config{
				URL:    cfg.Soniox.TranslateURL,
				APIKey: cfg.Soniox.APIKey,
			}),
			Synthesizer: synth,
			Transcriber: transcriber,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to listen")
	}
	grpcServer := grpcapi.New(metrics.DefaultMetrics)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("grpc serve failed")
		}
	}()

	obs := observability.NewServer(":"+cfg.Observability.MetricsPort, application.Ready)
	obs.Start()

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	application.Shutdown()
	grpcServer.SetServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown error")
	}
	cancel()
	select {
	case <-orchDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Session loop did not stop in time")
	}
	grpcServer.Stop()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Observability shutdown error")
	}
}

func streamFactory(cfg *config.Configuration, logger zerolog.Logger) stt.Factory {
	switch cfg.STT.Provider {
	case "soniox":
		if cfg.Soniox.APIKey == "" {
			logger.Fatal().Msg("STT_PROVIDER=soniox requires SONIOX_API_KEY")
		}
		sc := soniox.DefaultConfig()
		sc.URL = cfg.Soniox.StreamURL
		sc.APIKey = cfg.Soniox.APIKey
		sc.Model = cfg.Soniox.Model
		sc.AudioFormat = cfg.Soniox.AudioFormat
		sc.DialTimeout = cfg.Soniox.DialTimeout
		logger.Info().Str("url", sc.URL).Str("model", sc.Model).Msg("Using Soniox streaming provider")
		return soniox.NewFactory(sc)
	default:
		logger.Info().Str("provider", cfg.STT.Provider).Msg("Using mock streaming provider")
		return mock.NewFactory(mock.DefaultConfig())
	}
}

func audioDevice(cfg *config.Configuration, logger zerolog.Logger) audio.Device {
	if cfg.Audio.Device == "file" {
		logger.Info().Str("path", cfg.Audio.FilePath).Msg("Using file audio device")
		return audio.FileDevice{Path: cfg.Audio.FilePath}
	}
	logger.Info().Msg("Using silence audio device")
	return audio.SilenceDevice{}
}

func batchTranscriber(ctx context.Context, cfg *config.Configuration, logger zerolog.Logger) transcribe.Transcriber {
	if cfg.STT.BatchProvider == "google" {
		t, err := googletranscribe.New(ctx, googletranscribe.Config{
			LanguageCode:    cfg.STT.LanguageCode,
			SampleRateHz:    int32(cfg.STT.SampleRateHz),
			AudioEncoding:   cfg.STT.AudioEncoding,
			Punctuation:     true,
			CredentialsFile: cfg.STT.CredentialsFile,
		})
		if err == nil {
			logger.Info().Str("language", cfg.STT.LanguageCode).Msg("Using Google batch transcription")
			return t
		}
		logger.Warn().Err(err).Msg("Google Speech unavailable, falling back to Soniox batch transcription")
	}
	return sonioxtranscribe.New(sonioxtranscribe.Config{
		URL:    cfg.STT.BatchURL,
		APIKey: cfg.Soniox.APIKey,
		Model:  cfg.STT.BatchModel,
	})
}
