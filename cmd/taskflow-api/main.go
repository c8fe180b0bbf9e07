package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaiso/taskflow/internal/api"
	"github.com/shaiso/taskflow/internal/config"
	"github.com/shaiso/taskflow/internal/mq"
	"github.com/shaiso/taskflow/internal/repo"
	"github.com/shaiso/taskflow/internal/service"
	"github.com/shaiso/taskflow/internal/telemetry"
)

var startTime = time.Now()

// amqpDialTimeout ограничивает ожидание брокера при старте.
const amqpDialTimeout = 30 * time.Second

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting taskflow-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == config.DevJWTSecret {
		logger.Warn("JWT_SECRET is not set, using development secret")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище
	var (
		tasks service.TaskStore
		logs  service.LogSink
		ping  = func(context.Context) error { return nil }
	)
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		tasks = repo.NewMemoryTaskStore()
		logs = repo.NewMemoryLogStore()
	default:
		pool, err := repo.NewPool(ctx, cfg.Storage.DSN)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("connected to database")

		if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}

		tasks = repo.NewTaskRepo(pool)
		logs = repo.NewLogRepo(pool)
		ping = pool.Ping
	}

	// Публикация событий аудита (опционально)
	var publisher service.EventPublisher
	if cfg.AMQP.Enabled() {
		conn, err := dialAMQP(ctx, cfg.AMQP.URL, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		publisher = mq.NewPublisher(conn, logger)
	} else {
		logger.Info("AMQP_URL is not set, audit events are not published")
	}

	svc := service.New(service.Config{
		Tasks:                   tasks,
		Logs:                    logs,
		Publisher:               publisher,
		MissingDependencyPolicy: cfg.MissingDependencyPolicy,
		Logger:                  logger,
	})

	handler := api.NewHandler(api.Config{
		Tasks:     svc,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.API.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr, "storage", cfg.Storage.Driver, "missing_dependency_policy", cfg.MissingDependencyPolicy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// dialAMQP подключается к брокеру и объявляет топологию.
func dialAMQP(ctx context.Context, url string, logger *slog.Logger) (*mq.Connection, error) {
	dialCtx, cancel := context.WithTimeout(ctx, amqpDialTimeout)
	defer cancel()

	conn, err := mq.Dial(dialCtx, url, logger)
	if err != nil {
		return nil, err
	}

	if err := mq.SetupTopology(dialCtx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setup topology: %w", err)
	}

	return conn, nil
}
