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
	"golang.org/x/sync/errgroup"

	"mesa/internal/backend"
	"mesa/internal/onboarding/handler"
	onboardingmetrics "mesa/internal/onboarding/metrics"
	"mesa/internal/onboarding/precheck"
	"mesa/internal/onboarding/service"
	"mesa/internal/onboarding/store"
	"mesa/internal/platform/config"
	"mesa/internal/platform/database"
	"mesa/internal/platform/health"
	"mesa/internal/platform/httpserver"
	kafkahealth "mesa/internal/platform/kafka"
	"mesa/internal/platform/kafka/producer"
	"mesa/internal/platform/logger"
	"mesa/internal/platform/redis"
	"mesa/internal/reconcile"
	request "mesa/pkg/platform/middleware/request"
)

const maxBodyBytes = 1 << 20

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	log.Info("initializing mesa onboarding gateway",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	if cfg.Backend.URL == "" {
		log.Error("BACKEND_URL is required")
		os.Exit(1)
	}

	healthHandler := health.New(cfg.Environment)

	factory := backend.NewFactory(cfg.Backend, log)
	healthHandler.RegisterCheck("backend", func(ctx context.Context) error {
		return factory().Health(ctx)
	})

	// Optional infrastructure: each constructor returns nil when its
	// connection is not configured, and the dependent components degrade.
	pool, err := database.New(cfg.Database)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	var fallbackStore *store.Store
	if pool != nil {
		fallbackStore = store.New(pool.DB())
		healthHandler.RegisterCheck("database", pool.Health)
		defer pool.Close()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	var takenCache *precheck.TakenCache
	if redisClient != nil {
		takenCache = precheck.NewTakenCache(redisClient.Client, log)
		healthHandler.RegisterCheck("redis", redisClient.Health)
		defer redisClient.Close()
	}

	var events *reconcile.Publisher
	if cfg.Kafka.Brokers != "" {
		producerCfg := producer.DefaultConfig()
		producerCfg.Brokers = cfg.Kafka.Brokers
		kafkaProducer, err := producer.New(producerCfg, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer func() { _ = kafkaProducer.Close() }()

		events = reconcile.NewPublisher(kafkaProducer, cfg.Kafka.Topic, log)

		checker := kafkahealth.NewHealthChecker(cfg.Kafka.Brokers)
		healthHandler.RegisterCheck("kafka", checker.Check)
	}

	svc := service.New(factory,
		service.WithLogger(log),
		service.WithPrechecker(precheck.New(takenCache, log)),
		service.WithStore(fallbackStore),
		service.WithEvents(events),
		service.WithMetrics(onboardingmetrics.New()),
		service.WithDefaultCountryCode(cfg.DefaultCountryCode),
	)

	router := chi.NewRouter()
	router.Use(request.Recovery(log))
	router.Use(request.RequestID)
	router.Use(request.ClientMetadata)
	router.Use(request.Logger(log))
	router.Use(request.BodyLimit(maxBodyBytes))
	router.Use(request.LatencyMiddleware(request.NewMetrics()))

	handler.New(svc, log).Register(router)
	healthHandler.Register(router)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
