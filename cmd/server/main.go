package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docgate/internal/events"
	"docgate/internal/platform/config"
	"docgate/internal/platform/httpserver"
	"docgate/internal/platform/logger"
	platformmetrics "docgate/internal/platform/metrics"
	"docgate/internal/platform/middleware"
	"docgate/internal/platform/postgres"
	platformredis "docgate/internal/platform/redis"
	"docgate/internal/validation/adapters"
	"docgate/internal/validation/authenticity"
	"docgate/internal/validation/classifier"
	"docgate/internal/validation/fetcher"
	"docgate/internal/validation/handler"
	"docgate/internal/validation/metrics"
	"docgate/internal/validation/ownermatch"
	"docgate/internal/validation/pipeline"
	"docgate/internal/validation/ports"
	"docgate/internal/validation/queue"
	"docgate/internal/validation/store"
	"docgate/migrations"
	"docgate/pkg/secretbox"
)

// main wires dependencies and owns the process lifecycle: HTTP server plus
// the background worker ticker. Business logic lives under internal/.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	box, err := secretbox.New(cfg.Secrets.Key)
	if err != nil {
		log.Error("invalid secret key", "error", err)
		os.Exit(1)
	}

	pool, err := postgres.New(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		log.Error("schema migration failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	var hashIndex ports.HashIndex
	if redisClient != nil {
		defer redisClient.Close()
		hashIndex = authenticity.NewRedisHashIndex(redisClient.Client)
		log.Info("duplicate index backed by redis")
	} else {
		hashIndex = authenticity.NewInMemoryHashIndex()
		log.Warn("redis not configured, duplicate index is per-process")
	}

	storage := adapters.NewHTTPStorage(adapters.WithStorageLogger(log))
	directory := adapters.NewPostgresDirectory(pool)

	docFetcher, err := fetcher.New(directory, storage, box, fetcher.WithLogger(log))
	if err != nil {
		log.Error("fetcher setup failed", "error", err)
		os.Exit(1)
	}

	docClassifier, err := classifier.New(cfg.Classifier, classifier.WithLogger(log))
	if err != nil {
		log.Error("classifier setup failed", "error", err)
		os.Exit(1)
	}

	pipelineMetrics := metrics.New()

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithMetrics(pipelineMetrics),
	}
	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = events.New(ctx, cfg.Kafka, events.WithLogger(log))
		if err != nil {
			log.Error("kafka setup failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		pipelineOpts = append(pipelineOpts, pipeline.WithEventPublisher(publisher))
		log.Info("decision events enabled", "topic", cfg.Kafka.Topic)
	}

	pipe, err := pipeline.New(pipeline.Deps{
		Fetcher:      docFetcher,
		Classifier:   docClassifier,
		Matcher:      ownermatch.New(),
		Authenticity: authenticity.New(hashIndex),
		Roster:       adapters.NewPostgresRoster(pool),
		Requests:     adapters.NewPostgresRequests(pool),
		OrgConfig:    adapters.NewPostgresOrgConfig(pool),
		Directory:    directory,
		Validations:  store.NewPostgres(pool),
	}, cfg.Stages, pipelineOpts...)
	if err != nil {
		log.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}

	worker := queue.New(queue.NewPostgres(pool), pipe, cfg.Worker,
		queue.WithLogger(log),
		queue.WithMetrics(pipelineMetrics),
		queue.WithJobTimeout(cfg.Stages.Job),
	)

	httpMetrics := platformmetrics.NewHTTP()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(log))
	router.Use(httpMetrics.Middleware)

	handler.New(worker, log).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("worker started", "poll_interval", cfg.Worker.PollInterval, "batch_size", cfg.Worker.BatchSize)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker stopped", "error", err)
		}
	}()

	go func() {
		log.Info("server started", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
