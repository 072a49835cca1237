package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/rs/cors"

	cfg "github.com/mintex/exchange-core/backend/config"
	"github.com/mintex/exchange-core/backend/internal/handlers"
	"github.com/mintex/exchange-core/backend/internal/notifier"
	"github.com/mintex/exchange-core/backend/internal/stream"
	"github.com/mintex/exchange-core/backend/internal/usecases"
	"github.com/mintex/exchange-core/backend/internal/usecases/mocked"
	"github.com/mintex/exchange-core/backend/internal/usecases/repository"
	"github.com/mintex/exchange-core/backend/internal/workers"
	"github.com/mintex/exchange-core/backend/pkg/database"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrationsPath := "./migrations"
	if workDir, err := os.Getwd(); err == nil {
		if _, err := os.Stat(filepath.Join(workDir, "migrations")); !os.IsNotExist(err) {
			migrationsPath = filepath.Join(workDir, "migrations")
		} else if _, err := os.Stat(filepath.Join(workDir, "..", "migrations")); !os.IsNotExist(err) {
			migrationsPath = filepath.Join(workDir, "..", "migrations")
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Info("Starting application with configuration",
		"debug", config.App.Debug,
		"server_port", config.HTTP.Port,
		"kafka_brokers", config.Kafka.Brokers,
		"database_url", config.DB.DatabaseURL)

	// Connect to Database
	pg, err := database.New(config,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
		database.Isolation(pgx.ReadCommitted),
	)
	if err != nil {
		logger.Error("postgres connection failed", slog.String("error", err.Error()))
		return
	}
	defer pg.Close()

	// Run database migrations
	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		log.Fatal(err)
	}

	// Create repositories
	ordersRepository := repository.NewOrdersRepository(logger, pg)
	ledgerRepository := repository.NewLedgerRepository(logger, pg)

	// Outbound channels: matching mailbox and market event bus
	mailboxWriter := stream.NewMailboxWriter(logger, config.Kafka.Brokers, config.Kafka.MailboxTopic)
	defer mailboxWriter.Close()

	eventWriter := stream.NewEventWriter(logger, config.Kafka.Brokers)
	defer eventWriter.Close()

	// Member push over WebSocket
	websocketManager := handlers.NewWebSocketManager(logger)

	orderNotifier := notifier.New(logger, eventWriter, websocketManager)

	// Market configuration and depth snapshots
	marketRegistry := mocked.NewMarketRegistry(logger)
	marketRegistry.InitializeMarkets()
	depthSource := mocked.NewDepthSource()

	// Lifecycle manager
	orderService := usecases.NewOrderService(logger, ordersRepository, ledgerRepository,
		mailboxWriter, orderNotifier, pg.Transactor)

	// Initialize and run workers
	submitDispatcher := workers.NewSubmitDispatcher(logger, orderService,
		time.Duration(config.Workers.SubmitDispatchInterval)*time.Second)

	go func() {
		logger.Info("Starting submit dispatcher worker")
		submitDispatcher.Start(ctx)
	}()

	// Create handlers
	httpHandler := handlers.NewHTTPHandler(logger, marketRegistry, depthSource, orderService, ledgerRepository)
	wsHandler := handlers.NewWebSocketHandler(logger, websocketManager)

	// Create router
	router := mux.NewRouter()

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer shutdownCancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}
