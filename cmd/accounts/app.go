package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/storefront-accounts/internal/config"
	"github.com/phrazzld/storefront-accounts/internal/events"
	"github.com/phrazzld/storefront-accounts/internal/platform/mailer"
	"github.com/phrazzld/storefront-accounts/internal/platform/postgres"
	"github.com/phrazzld/storefront-accounts/internal/service"
	"github.com/phrazzld/storefront-accounts/internal/service/auth"
)

// application holds the wired dependency graph so it can be released in one
// place on exit.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	accounts  service.AccountService
	publisher *events.KafkaPublisher
}

// newApplication builds every collaborator of the account service from cfg.
// The database connection must already be established.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	tokens, err := auth.NewTokenService(cfg.Auth.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	if len(cfg.Events.KafkaBrokers) > 0 {
		app.publisher, err = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.Topic, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
		}
		emitter.RegisterHandler(app.publisher)
		logger.Info("kafka event publishing enabled",
			"brokers", cfg.Events.KafkaBrokers,
			"topic", cfg.Events.Topic)
	}

	app.accounts, err = service.NewAccountService(service.AccountServiceDeps{
		DB:                    db,
		Users:                 postgres.NewPostgresUserStore(db, logger),
		Accounts:              postgres.NewPostgresAccountStore(db, logger),
		Addresses:             postgres.NewPostgresAddressStore(db, logger),
		Hasher:                auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:                tokens,
		Sender:                newSender(cfg.Email, logger),
		Emitter:               emitter,
		Logger:                logger,
		FromAddress:           cfg.Email.FromAddress,
		BaseURL:               cfg.Email.BaseURL,
		VerificationTokenTTL:  cfg.Auth.VerificationTokenTTL,
		PasswordResetTokenTTL: cfg.Auth.PasswordResetTokenTTL,
	})
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create account service: %w", err)
	}

	return app, nil
}

// newSender delivers over SMTP when a host is configured and logs messages
// otherwise.
func newSender(cfg config.EmailConfig, logger *slog.Logger) mailer.Sender {
	if cfg.SMTPHost == "" {
		logger.Warn("no SMTP host configured, emails will be logged instead of sent")
		return mailer.NewLogSender(logger)
	}
	return mailer.NewSMTPSender(cfg, logger)
}

// cleanup releases the publisher and the database connection.
func (app *application) cleanup() {
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Error("error closing event publisher", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
}
