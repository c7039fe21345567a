// Command sweeper expires approved negotiations whose aditivo has been
// pending longer than the age threshold. Per-negotiation failures are
// logged and skipped; the sweep always finishes the eligible set and exits
// zero.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitalle-health/be-negotiations/internal/client"
	"github.com/vitalle-health/be-negotiations/internal/platform/config"
	"github.com/vitalle-health/be-negotiations/internal/platform/database"
	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
	"github.com/vitalle-health/be-negotiations/internal/platform/natsclient"
	"github.com/vitalle-health/be-negotiations/internal/repository"
	"github.com/vitalle-health/be-negotiations/internal/scheduler"
	"github.com/vitalle-health/be-negotiations/internal/service"
)

func main() {
	thresholdDays := flag.Int("threshold-days", 30, "minimum age in days since approval before expiring")
	pageSize := flag.Int("page-size", 50, "negotiations fetched per page")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name + "-sweeper",
		Version:     cfg.Service.Version,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	var nc *natsclient.Client
	if cfg.NATS.URL != "" {
		nc, err = natsclient.Connect(natsclient.Config{
			URL:  cfg.NATS.URL,
			Name: cfg.NATS.Name + "-sweeper",
		})
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, expiration notices will be dropped")
			nc = nil
		} else {
			defer nc.Close()
		}
	}

	negotiationRepo := repository.NewNegotiationRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	dispatcher := client.NewNotificationPublisher(nc, log.Logger)

	bus := service.NewEventBus()
	bus.Subscribe(service.NewNotificationListener(dispatcher, log))

	svc := service.NewNegotiationService(
		negotiationRepo,
		historyRepo,
		auditRepo,
		bus,
		noopEnqueuer{},
		dispatcher,
		service.Options{
			FormalizationDelay:  cfg.Negotiation.FormalizationDelay,
			ExpirationThreshold: cfg.Negotiation.ExpirationThreshold,
		},
		log,
	)

	threshold := time.Duration(*thresholdDays) * 24 * time.Hour
	fmt.Printf("Sweeping negotiations approved more than %d day(s) ago\n", *thresholdDays)

	summary, err := svc.SweepExpired(ctx, threshold, *pageSize, func(r service.SweepResult) {
		switch {
		case r.Err != nil:
			fmt.Printf("  FAILED  %s  %q: %v\n", r.NegotiationID, r.Title, r.Err)
		case r.Expired:
			fmt.Printf("  expired %s  %q\n", r.NegotiationID, r.Title)
		default:
			fmt.Printf("  skipped %s  %q (no longer eligible)\n", r.NegotiationID, r.Title)
		}
	})
	if err != nil {
		// Listing failed mid-sweep; what was expired so far stays expired.
		log.Error().Err(err).Msg("Sweep aborted")
	}

	fmt.Printf("Sweep complete: %d scanned, %d expired, %d failed\n",
		summary.Scanned, summary.Expired, summary.Failed)
}

// noopEnqueuer satisfies the scheduler dependency; the sweeper never
// defers work.
type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(task scheduler.Task, delay time.Duration) {}
