// Package main provides the entrypoint for the ServiField health API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/api"
	"github.com/servifield/servifield/internal/api/middleware"
	"github.com/servifield/servifield/internal/assistant/openai"
	"github.com/servifield/servifield/internal/auth"
	"github.com/servifield/servifield/internal/blobstore"
	"github.com/servifield/servifield/internal/cache"
	"github.com/servifield/servifield/internal/config"
	"github.com/servifield/servifield/internal/database"
	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/incidentlog"
	"github.com/servifield/servifield/internal/messaging/whatsapp"
	"github.com/servifield/servifield/internal/notify"
	"github.com/servifield/servifield/internal/payments/mercadopago"
	"github.com/servifield/servifield/internal/provider/resilience"
	"github.com/servifield/servifield/internal/tax/afip"
	"github.com/servifield/servifield/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "servifield-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting ServiField health API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Enabled:        cfg.Telemetry.Enabled,
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

	// Initialize HTTP metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database.Pool())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Name).
		Msg("database connected")

	// Connect to Redis
	redisClient := cache.NewClient(cfg.Redis.URL)
	defer redisClient.Close()

	// Shared breaker registry for provider clients
	registry := resilience.NewRegistry()

	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	mpClient := mercadopago.NewClient(mercadopago.ClientConfig{
		AccessToken: cfg.Providers.MercadoPago.AccessToken,
		BaseURL:     cfg.Providers.MercadoPago.BaseURL,
		Registry:    registry,
		Observer:    providerMetrics,
		Logger:      log,
	})
	waClient := whatsapp.NewClient(whatsapp.ClientConfig{
		AccessToken:   cfg.Providers.WhatsApp.AccessToken,
		PhoneNumberID: cfg.Providers.WhatsApp.PhoneNumberID,
		BaseURL:       cfg.Providers.WhatsApp.BaseURL,
		Registry:      registry,
		Observer:      providerMetrics,
		Logger:        log,
	})
	aiClient := openai.NewClient(openai.ClientConfig{
		APIKey:   cfg.Providers.OpenAI.APIKey,
		Model:    cfg.Providers.OpenAI.Model,
		BaseURL:  cfg.Providers.OpenAI.BaseURL,
		Registry: registry,
		Observer: providerMetrics,
		Logger:   log,
	})
	afipClient := afip.NewClient(afip.ClientConfig{
		BaseURL:  cfg.Providers.AFIP.BaseURL,
		Registry: registry,
		Observer: providerMetrics,
		Logger:   log,
	})

	probes := map[degradation.ServiceID]degradation.ServiceProbe{
		degradation.ServiceMercadoPago: mpClient.Probe(),
		degradation.ServiceMessaging:   waClient.Probe(),
		degradation.ServiceAI:          aiClient.Probe(),
		degradation.ServiceAFIP:        afipClient.Probe(),
		degradation.ServiceDatabase:    database.NewProbe(pool, log),
		degradation.ServiceCache:       cache.NewProbe(redisClient, log),
	}

	// Object storage is optional; without it the storage service reports
	// unknown instead of blocking startup.
	store, err := blobstore.New(ctx, blobstore.Config{
		Region:       cfg.Storage.Region,
		Bucket:       cfg.Storage.Bucket,
		Endpoint:     cfg.Storage.Endpoint,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})
	if err != nil {
		log.Warn().Err(err).Msg("object storage not configured, storage probe disabled")
	} else {
		probes[degradation.ServiceStorage] = blobstore.NewProbe(store, log)
	}

	// Incident archive and event sinks
	archive := incidentlog.NewPostgresRepository(pool)
	sinks := []degradation.IncidentSink{incidentlog.NewSink(archive, log)}

	if cfg.Notify.Enabled() {
		publisher, pubErr := notify.NewPublisher(ctx, notify.Config{
			ProjectID: cfg.Notify.ProjectID,
			TopicName: cfg.Notify.Topic,
			Logger:    log,
		})
		if pubErr != nil {
			log.Warn().Err(pubErr).Msg("incident event publisher disabled")
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
			log.Info().
				Str("topic", cfg.Notify.Topic).
				Msg("incident event publisher initialized")
		}
	}

	// Engine metrics on a dedicated registry served at /metrics
	promRegistry := prometheus.NewRegistry()
	engineMetrics := degradation.NewMetrics(promRegistry)

	manager, err := degradation.NewManager(degradation.Config{
		Probes:               probes,
		Logger:               log,
		PollInterval:         cfg.Health.PollInterval,
		ProbeTimeout:         cfg.Health.ProbeTimeout,
		AutoResolveDelay:     cfg.Health.AutoResolveDelay,
		DisableAutoIncidents: !cfg.Health.AutoIncidents,
		Sinks:                sinks,
		Metrics:              engineMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build degradation manager")
	}

	// Mirror every snapshot into Redis so other replicas and the dashboard
	// backend can read it without probing.
	unsubscribe := manager.Subscribe(func(snap *degradation.SystemHealth) {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cacheErr := redisClient.CacheHealthSnapshot(cacheCtx, snap); cacheErr != nil {
			log.Warn().Err(cacheErr).Msg("failed to cache health snapshot")
		}
	})
	defer unsubscribe()

	manager.StartHealthChecks()
	defer manager.StopHealthChecks()

	// Operator token verification
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.JWTSigningKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})
	if cfg.Auth.JWTSigningKey == "" {
		log.Warn().Msg("JWT signing key not set - operator endpoints will reject all tokens")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   serviceName,
		Metrics:       metrics,
		TokenVerifier: jwtService,
		Manager:       manager,
		History:       archive,
		Prometheus:    promRegistry,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine. Errors are reported back to the main
	// goroutine so the deferred cleanup still runs.
	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
