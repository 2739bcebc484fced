// Package main provides the entrypoint for the ServiField health worker: the
// periodic check scheduler plus the Pub/Sub job consumer.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/api/middleware"
	"github.com/servifield/servifield/internal/assistant/openai"
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
	"github.com/servifield/servifield/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "servifield-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting ServiField health worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database.Pool())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	// Connect to Redis
	redisClient := cache.NewClient(cfg.Redis.URL)
	defer redisClient.Close()

	// Shared breaker registry for provider clients
	registry := resilience.NewRegistry()

	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
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
		}
	}

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

	// Mirror every snapshot into Redis for replicas that do not probe.
	unsubscribe := manager.Subscribe(func(snap *degradation.SystemHealth) {
		cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cacheCancel()
		if cacheErr := redisClient.CacheHealthSnapshot(cacheCtx, snap); cacheErr != nil {
			log.Warn().Err(cacheErr).Msg("failed to cache health snapshot")
		}
	})
	defer unsubscribe()

	manager.StartHealthChecks()
	defer manager.StopHealthChecks()

	checkJob := worker.NewCheckJob(worker.DefaultCheckConfig(), manager, log)

	// Consume forced-check jobs when a subscription is configured.
	if cfg.Notify.ProjectID != "" && cfg.Notify.Subscription != "" {
		handler, psErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Notify.ProjectID,
			SubscriptionName: cfg.Notify.Subscription,
			CheckJob:         checkJob,
			Logger:           log,
		})
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if recvErr := handler.Start(ctx); recvErr != nil && ctx.Err() == nil {
				log.Error().Err(recvErr).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Info().Msg("no job subscription configured, running scheduler only")
	}

	// Small ops surface for the orchestrator: liveness, engine metrics and
	// job counters.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": Version,
		})
	})
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(checkJob.MetricsSnapshot())
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Errors are reported back to the main goroutine so the deferred
	// cleanup still runs.
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("ops server listening")
		if srvErr := server.ListenAndServe(); srvErr != nil && srvErr != http.ErrServerClosed {
			serveErr <- srvErr
		}
	}()

	// Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		log.Error().Err(err).Msg("ops server error")
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
