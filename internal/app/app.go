// Package app holds process-wide state shared by the servers.
package app

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"live-interpreter-service/internal/config"
	"live-interpreter-service/internal/observability/logging"
)

// Application carries the configuration, the root logger and readiness.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	ready atomic.Bool
}

// New configures logging from cfg and returns a not-yet-ready application.
func New(cfg *config.Configuration) *Application {
	a := &Application{Cfg: cfg}
	a.setupLogger()
	a.Logger.Info().
		Str("principal", cfg.Service.Principal).
		Str("providerLanguage", cfg.Session.ProviderLanguage).
		Str("patientLanguage", cfg.Session.PatientLanguage).
		Str("sttProvider", cfg.STT.Provider).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Application created")
	return a
}

// setupLogger installs the global logger. Env=dev forces console output.
func (a *Application) setupLogger() {
	format := strings.ToLower(a.Cfg.Observability.LogFormat)
	if a.Cfg.Service.Env == "dev" {
		format = "console"
	}

	logging.Init(logging.Config{
		Level:   strings.ToLower(a.Cfg.Observability.LogLevel),
		Format:  format,
		Service: a.Cfg.Service.Principal,
	})
	a.Logger = logging.WithComponent("application").With().
		Str("env", a.Cfg.Service.Env).
		Logger()

	a.Logger.Debug().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", format).
		Msg("Logger configured")
}

// Start marks the application ready. Calling it twice is a no-op.
func (a *Application) Start() error {
	if a.ready.Swap(true) {
		return nil
	}
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().Time("startupTime", a.StartupTime).Msg("Live interpreter service ready")
	return nil
}

// Ready reports whether Start has completed and Shutdown has not begun.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Uptime is the time since Start, or zero before it.
func (a *Application) Uptime() time.Duration {
	if a.StartupTime.IsZero() {
		return 0
	}
	return time.Since(a.StartupTime)
}

// Shutdown withdraws readiness so probes fail while servers drain.
func (a *Application) Shutdown() {
	if !a.ready.Swap(false) {
		return
	}
	a.Logger.Info().Dur("uptime", a.Uptime()).Msg("Live interpreter service shutting down")
}
