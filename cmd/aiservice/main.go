// Command aiservice serves stored AI inference results over HTTP and fills
// the store from the application event stream.
//
// On startup it connects to PostgreSQL (running embedded migrations), wraps
// the store with a Redis read-through cache when enabled, subscribes to the
// configured Kafka topic and starts the consume loop before accepting HTTP
// traffic. SIGINT/SIGTERM stop both.
//
// Usage:
//
//	go run ./cmd/aiservice [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/ai-result-service/internal/api"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/internal/result"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/ai-result-service/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("ai service exited", "error", err)
		os.Exit(1)
	}
	slog.Info("ai service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting ai service",
		"port", cfg.Server.Port,
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.ConsumerGroup,
		"provider", cfg.Ingestion.Provider,
	)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	var db *postgres.Client
	err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{
		MaxAttempts:    5,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		JitterFraction: 0.1,
		Retryable:      func(err error) bool { return !postgres.IsPermanent(err) },
	}, func() error {
		var err error
		db, err = postgres.New(cfg.Postgres)
		return err
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	if cfg.Postgres.MigrateOnStart {
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
		slog.Info("schema migrations applied")
	}

	var store result.Store = result.NewPostgresStore(db)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, health.StatusDown))

	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			store = result.NewCachedStore(store, redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	consumer := kafka.NewConsumer(cfg.Kafka)
	runner := ingest.NewRunner(consumer, ingest.NewPipeline(store, cfg.Ingestion, m), m)
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("starting consumer: %w", err)
	}
	checker.Register("consumer", func(ctx context.Context) health.ComponentHealth {
		switch s := runner.State(); s {
		case ingest.StateSubscribed, ingest.StatePolling:
			return health.ComponentHealth{Status: health.StatusUp, Message: s.String()}
		default:
			return health.ComponentHealth{Status: health.StatusDown, Message: s.String()}
		}
	})
	slog.Info("consumer started", "topic", cfg.Kafka.Topic)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(api.NewHandler(store, m), checker, m, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("ai service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	case <-runner.Done():
		if err := runner.Err(); err != nil {
			runErr = fmt.Errorf("consumer loop ended: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		slog.Error("consumer shutdown error", "error", err)
	}
	return runErr
}
