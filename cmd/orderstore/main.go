package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KretovDmitry/order-store-service/internal/config"
	"github.com/KretovDmitry/order-store-service/internal/health"
	"github.com/KretovDmitry/order-store-service/internal/metrics"
	"github.com/KretovDmitry/order-store-service/internal/notifier"
	"github.com/KretovDmitry/order-store-service/internal/order"
	"github.com/KretovDmitry/order-store-service/internal/peer"
	"github.com/KretovDmitry/order-store-service/pkg/accesslog"
	"github.com/KretovDmitry/order-store-service/pkg/logger"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/nanmu42/gzip"
	"github.com/redis/go-redis/v9"
	sqldblogger "github.com/simukti/sqldb-logger"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context.
	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	// Load application configurations.
	_ = godotenv.Load()
	cfg := config.MustLoad()

	// Create root logger tagged with server version.
	logger := logger.New(cfg).With(serverCtx, "version", Version)

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open the database: %w", err)
	}

	// Log every query to the database.
	db = sqldblogger.OpenDriver(cfg.DSN, db.Driver(), logger)

	// Check connectivity and DSN correctness.
	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}

	// Close connection.
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(err)
		}
		_ = logger.Sync()
	}()

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	// Init repository for the order store.
	orderRepo, err := order.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init order repository: %w", err)
	}

	// Optional read cache.
	var orderCache *order.Cache
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address})
		defer func() {
			if err = rdb.Close(); err != nil {
				logger.Error(err)
			}
		}()
		orderCache = order.NewCache(rdb, cfg.Redis.TTL, logger)
	}

	// Optional lifecycle event stream.
	var producer *notifier.Producer
	var orderNotifier order.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		producer = notifier.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.BufferSize,
			"order-store-service", logger)
		producer.Start(serverCtx)
		orderNotifier = producer
	}

	// Best-effort peer service client.
	peerClient, err := peer.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to init peer client: %w", err)
	}

	// Init order service.
	orderService, err := order.NewService(
		orderRepo, trManager, orderCache, orderNotifier, peerClient, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to init order service: %w", err)
	}

	// Probe endpoints.
	healthHandler, err := health.NewHandler(db, orderRepo, Version, cfg.Env, logger)
	if err != nil {
		return fmt.Errorf("failed to init health handler: %w", err)
	}

	// Create root router.
	m := metrics.New()
	router := initRootRouter(logger, m)

	// Init and group handlers for order routes.
	order.HandlerWithOptions(orderService, order.ChiServerOptions{
		BaseURL:          "/order",
		BaseRouter:       router,
		Middlewares:      []order.MiddlewareFunc{peerClient.Middleware},
		ErrorHandlerFunc: order.ErrorHandlerFor(cfg.Env),
	})

	healthHandler.Register(router)
	router.Method(http.MethodGet, "/metrics", m.Handler())

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	// Graceful shutdown.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
			syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

		signal := <-sig

		logger.With(serverCtx, "signal", signal.String()).
			Infof("Shutting down server with %s timeout",
				cfg.HTTPServer.ShutdownTimeout)

		if err = hs.Shutdown(serverCtx); err != nil {
			logger.Errorf("graceful shutdown failed: %s", err)
		}
		serverStopCtx()
	}()

	// Start the HTTP server with graceful shutdown.
	logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
	if err = hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run server failed: %w", err)
	}

	// Wait for server context to be stopped or force exit if timeout exceeded.
	select {
	case <-serverCtx.Done():
	case <-time.After(cfg.HTTPServer.ShutdownTimeout):
		return errors.New("graceful shutdown timed out.. forcing exit")
	}

	// Flush buffered lifecycle events before exit.
	if producer != nil {
		producer.WaitClosed()
	}

	return nil
}

func initRootRouter(logger logger.Logger, m *metrics.Metrics) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(m.Middleware)
	router.Use(gzip.DefaultHandler().WrapHandler)

	return router
}
