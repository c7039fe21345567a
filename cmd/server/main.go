package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitalle-health/be-negotiations/internal/client"
	"github.com/vitalle-health/be-negotiations/internal/handler"
	"github.com/vitalle-health/be-negotiations/internal/platform/config"
	"github.com/vitalle-health/be-negotiations/internal/platform/database"
	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
	"github.com/vitalle-health/be-negotiations/internal/platform/middleware"
	"github.com/vitalle-health/be-negotiations/internal/platform/natsclient"
	"github.com/vitalle-health/be-negotiations/internal/repository"
	"github.com/vitalle-health/be-negotiations/internal/scheduler"
	"github.com/vitalle-health/be-negotiations/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Negotiations Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize NATS; an empty URL runs the service without a broker and
	// notifications are dropped with a log line.
	var nc *natsclient.Client
	if cfg.NATS.URL != "" {
		nc, err = natsclient.Connect(natsclient.Config{
			URL:  cfg.NATS.URL,
			Name: cfg.NATS.Name,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS URL not configured, notifications disabled")
	}

	// Initialize repositories
	negotiationRepo := repository.NewNegotiationRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	alertRepo := repository.NewContractAlertRepository(db)

	// Initialize notification dispatcher
	dispatcher := client.NewNotificationPublisher(nc, log.Logger)

	// Initialize deferred task pool; terminal task failures surface to the
	// operations role instead of vanishing.
	pool := scheduler.NewPool(scheduler.Config{
		Workers:     cfg.Scheduler.Workers,
		QueueSize:   cfg.Scheduler.QueueSize,
		MaxAttempts: cfg.Scheduler.MaxAttempts,
		RetryDelay:  cfg.Scheduler.RetryDelay,
	}, log, func(ctx context.Context, task scheduler.Task, err error) {
		dispatcher.SendToRole(ctx, client.RoleOperations, client.Notice{
			Title:    "Deferred task failed",
			Body:     fmt.Sprintf("Task %s failed after all retries: %v", task.Name(), err),
			Priority: "critical",
		})
	})
	pool.Start()
	defer pool.Stop()

	// Initialize event bus with the notification listener
	bus := service.NewEventBus()
	bus.Subscribe(service.NewNotificationListener(dispatcher, log))

	// Initialize services
	negotiationService := service.NewNegotiationService(
		negotiationRepo,
		historyRepo,
		auditRepo,
		bus,
		pool,
		dispatcher,
		service.Options{
			FormalizationDelay:  cfg.Negotiation.FormalizationDelay,
			ExpirationThreshold: cfg.Negotiation.ExpirationThreshold,
		},
		log,
	)
	alertService := service.NewContractAlertService(
		alertRepo,
		alertRepo,
		dispatcher,
		pool,
		service.AlertOptions{
			EscalationInterval:    cfg.Negotiation.EscalationInterval,
			EscalationMaxAttempts: cfg.Negotiation.EscalationMaxAttempts,
		},
		log,
	)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(negotiationService, alertService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	httpHandler.Register(mux)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
