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

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	grpcapi "ai-voice-agent-orchestrator/internal/api/grpc"
	"ai-voice-agent-orchestrator/internal/app"
	"ai-voice-agent-orchestrator/internal/config"
	"ai-voice-agent-orchestrator/internal/events"
	apihttp "ai-voice-agent-orchestrator/internal/http"
	"ai-voice-agent-orchestrator/internal/observability"
	"ai-voice-agent-orchestrator/internal/observability/metrics"
	"ai-voice-agent-orchestrator/internal/service/checkpoint"
	"ai-voice-agent-orchestrator/internal/service/completion"
	"ai-voice-agent-orchestrator/internal/service/completion/gemini"
	completionmock "ai-voice-agent-orchestrator/internal/service/completion/mock"
	"ai-voice-agent-orchestrator/internal/service/guardrail"
	"ai-voice-agent-orchestrator/internal/service/orchestrator"
	"ai-voice-agent-orchestrator/internal/service/router"
	"ai-voice-agent-orchestrator/internal/service/scheduling"
	"ai-voice-agent-orchestrator/internal/service/scheduling/calendly"
	schedulingmock "ai-voice-agent-orchestrator/internal/service/scheduling/mock"
	"ai-voice-agent-orchestrator/internal/service/sentiment"
	"ai-voice-agent-orchestrator/internal/service/specialist"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	application := app.New(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := checkpoint.New(ctx, checkpoint.Config{
		Backend:     cfg.Checkpoint.Backend,
		SQLitePath:  cfg.Checkpoint.SQLitePath,
		PostgresDSN: cfg.Checkpoint.PostgresDSN,
		Dynamo: checkpoint.DynamoConfig{
			Table:    cfg.Checkpoint.DynamoTable,
			Region:   cfg.Checkpoint.DynamoRegion,
			Endpoint: cfg.Checkpoint.DynamoEndpoint,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Checkpoint.Backend).Msg("Failed to open checkpoint store")
	}
	defer store.Close()

	completer, err := newCompleter(ctx, cfg.Completion)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Completion.Provider).Msg("Failed to create completer")
	}

	booker, err := newBooker(cfg.Scheduling)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Scheduling.Provider).Msg("Failed to create scheduling client")
	}

	// Create Kafka publisher with separate topics for turn and summary events
	publisher := events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicTurns:     cfg.Kafka.TopicTurns,
		TopicSummaries: cfg.Kafka.TopicSummaries,
		Principal:      cfg.Kafka.Principal,
	})
	defer publisher.Close()

	deps := specialist.Deps{
		Completer:    completer,
		Guardrails:   guardrail.New(nil),
		ContextTurns: cfg.Completion.ContextTurns,
	}
	orch, err := orchestrator.New(orchestrator.Config{
		Store:  store,
		Router: router.New(completer, cfg.Completion.ContextTurns),
		Specialists: specialist.NewRegistry(
			specialist.NewQualifier(deps, nil),
			specialist.NewObjectionHandler(deps, nil),
			specialist.NewScheduler(deps, booker, nil),
			specialist.NewComplianceLogger(),
		),
		Sentiment: sentiment.NewTracker(nil),
		Booker:    booker,
		Publisher: publisher,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create orchestrator")
	}

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}

	apiServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apihttp.NewRouter(application, orch),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Completion.Timeout + cfg.Scheduling.Timeout + 10*time.Second,
	}
	obsServer := observability.NewServer(":"+cfg.Service.MetricsPort, orch.Ping)
	grpcServer := grpcapi.New(metrics.DefaultMetrics, orch.Ping)

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", apiServer.Addr).Msg("Starting HTTP API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(obsServer.ListenAndServe)
	g.Go(func() error {
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		grpcServer.Watch(gctx, 10*time.Second)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.Stop()
		var errs []error
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	log.Info().
		Str("httpPort", cfg.Service.HTTPPort).
		Str("grpcPort", cfg.Service.GRPCPort).
		Str("metricsPort", cfg.Service.MetricsPort).
		Str("checkpointBackend", cfg.Checkpoint.Backend).
		Str("completionProvider", cfg.Completion.Provider).
		Msg("Voice agent orchestrator started")

	err = g.Wait()
	application.Shutdown()
	if err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func newCompleter(ctx context.Context, cfg config.CompletionConfig) (completion.Completer, error) {
	var c completion.Completer
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := gemini.New(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   int32(cfg.MaxTokens),
		})
		if err != nil {
			return nil, err
		}
		c = g
	default:
		log.Warn().Msg("Using mock completer, replies are scripted")
		c = completionmock.NewDemo()
	}
	return completion.WithTimeout(c, cfg.Timeout, cfg.Provider), nil
}

func newBooker(cfg config.SchedulingConfig) (scheduling.Client, error) {
	if cfg.Provider != config.ProviderCalendly {
		log.Warn().Msg("Using mock scheduling client, bookings are not real")
		return schedulingmock.New(), nil
	}
	return calendly.New(calendly.Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		EventTypeURI:    cfg.EventTypeURI,
		DefaultTimezone: cfg.DefaultTimezone,
		MaxRetries:      cfg.MaxRetries,
		Timeout:         cfg.Timeout,
	})
}
