package app

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-agent-orchestrator/internal/config"
	"ai-voice-agent-orchestrator/internal/observability/logging"
)

const serviceName = "ai-voice-agent-orchestrator"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Voice agent orchestrator application created")
	return a
}

// setupLogger initializes the global logger and derives the application
// logger from it. ENV=dev switches to the console writer.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	if a.Cfg != nil {
		if a.Cfg.Observability.LogLevel != "" {
			lc.Level = a.Cfg.Observability.LogLevel
		}
		if a.Cfg.Observability.LogFormat != "" {
			lc.Format = a.Cfg.Observability.LogFormat
		}
	}
	if os.Getenv("ENV") == "dev" {
		lc.Format = "console"
	}
	logging.Init(lc)

	base := logging.WithComponent("application")
	a.Logger = base.With().
		Str("service", serviceName).
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", lc.Format).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start records the startup time before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Voice agent orchestrator starting")

	return nil
}

// Uptime is the time since Start.
func (a *Application) Uptime() time.Duration {
	if a.StartupTime.IsZero() {
		return 0
	}
	return time.Since(a.StartupTime)
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().
		Dur("uptime", a.Uptime()).
		Msg("Voice agent orchestrator shutting down")
}
