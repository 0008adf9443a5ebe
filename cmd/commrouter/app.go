package main

import (
	"context"
	"fmt"
	"time"

	"commrouter/internal/constants"
	"commrouter/internal/database"
	"commrouter/internal/dedup"
	"commrouter/internal/events"
	"commrouter/internal/features"
	"commrouter/internal/metrics"
	"commrouter/internal/models"
	"commrouter/internal/outbound"
	"commrouter/internal/retry"
	"commrouter/internal/routing"
	"commrouter/internal/service"
	"commrouter/internal/telephony"

	"github.com/sirupsen/logrus"
)

// app holds the wired routing pipeline shared by serve and resolve.
type app struct {
	cfg       *models.Config
	logger    *logrus.Logger
	db        *database.Database
	registry  *metrics.Registry
	flags     *features.FlagManager
	publisher events.Publisher
	outbound  *outbound.Client
	calls     *service.CallService
	intake    *service.IntakeService
	closers   []func() error
}

// openDatabase opens and migrates the store, retrying with backoff while the
// file system or volume is not ready yet.
func openDatabase(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*database.Database, error) {
	backoffConfig := retry.FromConfig(cfg.Retry)
	backoffConfig.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	backoff := retry.NewBackoff(backoffConfig)

	var db *database.Database
	err := backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	return db, nil
}

// loadFlags resolves feature flags from defaults, the config file and the
// environment, in that order.
func loadFlags(cfg *models.Config) (*features.FlagManager, error) {
	flags := features.NewDefaultFlagManager()
	if err := flags.LoadFromConfig(cfg.Features); err != nil {
		return nil, err
	}
	flags.LoadFromEnvironment()
	return flags, nil
}

func newApp(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*app, error) {
	flags, err := loadFlags(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid feature flags: %w", err)
	}

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		registry: metrics.GetRegistry(),
		flags:    flags,
		closers:  []func() error{db.Close},
	}

	window := time.Duration(cfg.Routing.DuplicateWindowMin) * time.Minute
	claims, closeClaims, err := dedup.New(ctx, cfg.Dedup, db, window, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize duplicate window: %w", err)
	}
	a.closers = append(a.closers, closeClaims)

	switch {
	case !flags.IsEnabled(features.FlagEventPublishing):
		logger.Info("Event publishing disabled by feature flag")
		a.publisher = events.NewNoopPublisher(logger)
	case cfg.Events.AMQPURL != "":
		publisher, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to event bus: %w", err)
		}
		a.publisher = publisher
		a.closers = append(a.closers, publisher.Close)
	default:
		logger.Info("Event bus not configured, events are logged only")
		a.publisher = events.NewNoopPublisher(logger)
	}

	a.outbound = outbound.NewClient(cfg.Outbound, cfg.Retry, nil, logger)
	engine := routing.NewEngine(db, a.outbound, cfg.Tenant, logger)
	distributor := telephony.NewDistributor(db, cfg.Routing.RotationCASAttempts, logger)

	a.calls = service.NewCallService(db, distributor, a.publisher, a.registry, logger)
	a.intake = service.NewIntakeService(engine, db, a.calls, claims, a.publisher, a.registry, logger)

	logger.WithFields(logrus.Fields{
		"dedup_backend":    cfg.Dedup.Backend,
		"duplicate_window": window.String(),
		"mail_domain":      cfg.Tenant.MailDomain,
	}).Info("Routing pipeline initialized")
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("Failed to close resource")
		}
	}
	a.closers = nil
}

// runPurger drops claims older than the duplicate window until ctx ends.
// The claim_purge flag is read on every tick so a config reload can pause it.
func (a *app) runPurger(ctx context.Context) {
	window := time.Duration(a.cfg.Routing.DuplicateWindowMin) * time.Minute
	ticker := time.NewTicker(window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.flags.IsEnabled(features.FlagClaimPurge) {
				continue
			}
			purged, err := a.db.PurgeProcessed(ctx, window)
			if err != nil {
				a.logger.WithError(err).Warn("Failed to purge processed message claims")
				continue
			}
			if purged > 0 {
				a.logger.WithField(service.LogFieldCount, purged).Debug("Purged processed message claims")
			}
		}
	}
}
