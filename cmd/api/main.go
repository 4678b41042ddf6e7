// Package main provides the entrypoint for the transportco2 API server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/account"
	"github.com/transportco2/transportco2/internal/admin"
	"github.com/transportco2/transportco2/internal/api"
	"github.com/transportco2/transportco2/internal/api/handler"
	"github.com/transportco2/transportco2/internal/api/middleware"
	"github.com/transportco2/transportco2/internal/auth"
	"github.com/transportco2/transportco2/internal/comparison"
	"github.com/transportco2/transportco2/internal/config"
	"github.com/transportco2/transportco2/internal/events"
	"github.com/transportco2/transportco2/internal/metrics"
	"github.com/transportco2/transportco2/internal/provider/co2api"
	"github.com/transportco2/transportco2/internal/provider/resilience"
	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/simulation"
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
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", telemetry.ServiceAPI).
		Str("version", Version).
		Logger()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.IsDevelopment() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if cfg.Auth.SigningKey == config.DevSigningKey {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting transportco2 API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    telemetry.ServiceAPI,
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
	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	backendMetrics, err := middleware.NewBackendMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize backend metrics")
	}
	domainMetrics := metrics.New()

	// Session store
	sessions, err := session.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Session.Driver).Msg("failed to open session store")
	}
	defer sessions.Close()
	log.Info().Str("driver", string(sessions.Driver)).Msg("session store ready")

	var readiness []handler.DependencyCheck
	if sessions.Ping != nil {
		readiness = append(readiness, handler.DependencyCheck{
			Name:  "sessions-" + string(sessions.Driver),
			Check: sessions.Ping,
		})
	}

	// Events
	publisher, err := events.Open(cfg.Events, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to open event publisher")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()
	counted := events.WithObserver(publisher, domainMetrics.EventPublished)

	// CO₂ backend
	upstreams := resilience.NewRegistry()
	backend := co2api.NewClient(co2api.ClientConfig{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		MaxRetries: uint64(cfg.Backend.MaxRetries),
		Registry:   upstreams,
		Observer:   backendMetrics,
		Logger:     log,
	})

	// Services
	provider := auth.NewProvider(auth.ProviderConfig{
		Backend: backend,
		Store:   sessions.Store,
		JWT: auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.Auth.SigningKey,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			TTL:        cfg.Auth.AccessTTL,
		}),
		SessionTTL: cfg.Auth.SessionTTL,
		Publisher:  counted,
		Metrics:    domainMetrics,
		Logger:     log,
	})

	comparisons := comparison.NewService(comparison.Config{
		Fetcher:   backend,
		Publisher: counted,
		Metrics:   domainMetrics,
		Logger:    log,
	})

	simulations := simulation.NewService(simulation.Config{
		Store:     sessions.Store,
		Backend:   backend,
		Publisher: counted,
		Metrics:   domainMetrics,
		Logger:    log,
	})

	accounts := account.NewService(account.Config{Backend: backend, Sessions: provider, Logger: log})
	administration := admin.NewService(admin.Config{Backend: backend, Sessions: provider, Logger: log})

	// Expired sessions are purged in-process; Valkey expires keys itself.
	if sessions.Driver != session.DriverValkey {
		purger := worker.NewSessionPurger(sessions.Store, domainMetrics, log)
		go worker.Every(ctx, cfg.Session.PurgeInterval, func(ctx context.Context) {
			_, _ = purger.Purge(ctx) //nolint:errcheck // logged by the purger
			if sessions.Pool != nil {
				domainMetrics.UpdateDBPool(sessions.Pool.Stat())
			}
		})
	}

	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   telemetry.ServiceAPI,
		RequireTLS:    cfg.Server.RequireTLS,
		RateLimit:     cfg.Server.RateLimit,
		HTTPMetrics:   httpMetrics,
		DomainMetrics: domainMetrics,
		Upstreams:     upstreams,
		Readiness:     readiness,
		Auth:          provider,
		Comparisons:   comparisons,
		Simulations:   simulations,
		Accounts:      accounts,
		Admin:         administration,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("backend", cfg.Backend.BaseURL).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
