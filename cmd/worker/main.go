// Package main provides the entrypoint for the transportco2 worker, which
// probes the CO₂ backend with popular searches and purges expired sessions.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/config"
	"github.com/transportco2/transportco2/internal/events"
	"github.com/transportco2/transportco2/internal/metrics"
	"github.com/transportco2/transportco2/internal/provider/co2api"
	"github.com/transportco2/transportco2/internal/provider/resilience"
	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/telemetry"
	"github.com/transportco2/transportco2/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (defaults to ./config.yaml when present)")
	once := flag.Bool("once", false, "run one probe pass and exit")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", telemetry.ServiceWorker).
		Str("version", Version).
		Logger()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting transportco2 worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    telemetry.ServiceWorker,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	domainMetrics := metrics.New()

	probeConfig := worker.ProbeConfig{
		Concurrency: cfg.Worker.Concurrency,
		Timeout:     cfg.Worker.Timeout,
	}
	if cfg.Worker.TargetsFile != "" {
		targets, err := worker.LoadTargets(cfg.Worker.TargetsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Worker.TargetsFile).Msg("failed to load probe targets")
		}
		probeConfig.Targets = targets
	}

	publisher, err := events.Open(cfg.Events, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to open event publisher")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	upstreams := resilience.NewRegistry()
	backend := co2api.NewClient(co2api.ClientConfig{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		MaxRetries: uint64(cfg.Backend.MaxRetries),
		Registry:   upstreams,
		Logger:     log,
	})

	probe := worker.NewProbeJob(worker.ProbeJobConfig{
		Config:    probeConfig,
		Fetcher:   backend,
		Publisher: events.WithObserver(publisher, domainMetrics.EventPublished),
		Metrics:   domainMetrics,
		Logger:    log,
	})

	if *once {
		result := probe.Run(ctx)
		if !result.Healthy() {
			log.Error().Int("failed", result.Failed).Msg("probe pass unhealthy")
			os.Exit(1) //nolint:gocritic // deferred cleanup is best effort
		}
		return
	}

	// The memory store lives in the API process, so only shared stores are
	// purged here.
	jobs := &worker.Jobs{Probe: probe, Logger: log}
	if cfg.Session.Driver == string(session.DriverPostgres) {
		sessions, err := session.Open(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open session store")
		}
		defer sessions.Close()
		jobs.Purger = worker.NewSessionPurger(sessions.Store, domainMetrics, log)
	}

	// Health and metrics endpoint for the container platform.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		stats := probe.Stats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // client went away
			"status":       upstreams.Overall(),
			"version":      Version,
			"probeRuns":    stats.TotalRuns,
			"probeFailed":  stats.Failed,
			"lastProbeAt":  stats.LastRunAt,
			"lastDuration": stats.LastRunDuration.String(),
		})
	})
	mux.Handle("/metrics", domainMetrics.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if jobs.Purger != nil {
		go worker.Every(ctx, cfg.Session.PurgeInterval, func(ctx context.Context) {
			_, _ = jobs.Purger.Purge(ctx) //nolint:errcheck // logged by the purger
		})
	}

	switch {
	case cfg.Worker.Subscription != "":
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.Project,
			SubscriptionName: cfg.Worker.Subscription,
			Jobs:             jobs,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()
		if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pubsub handler stopped")
		}
	case cfg.Worker.Interval > 0:
		log.Info().Dur("interval", cfg.Worker.Interval).Msg("probing on a ticker")
		worker.Every(ctx, cfg.Worker.Interval, func(ctx context.Context) {
			probe.Run(ctx)
		})
	default:
		probe.Run(ctx)
		<-ctx.Done()
	}

	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
