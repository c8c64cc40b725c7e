package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
	"github.com/phrazzld/storefront-accounts/internal/platform/logger"
	"github.com/phrazzld/storefront-accounts/internal/redact"
	"github.com/phrazzld/storefront-accounts/internal/store"
)

// PostgresAccountStore implements the store.AccountStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAccountStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAccountStore creates a new PostgreSQL implementation of the AccountStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresAccountStore(db store.DBTX, logger *slog.Logger) *PostgresAccountStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAccountStore{
		db:     db,
		logger: logger.With(slog.String("component", "account_store")),
	}
}

var _ store.AccountStore = (*PostgresAccountStore)(nil)

// WithTx implements store.AccountStore.WithTx
func (s *PostgresAccountStore) WithTx(tx *sql.Tx) store.AccountStore {
	return &PostgresAccountStore{db: tx, logger: s.logger}
}

// Create implements store.AccountStore.Create
// Returns store.ErrInvalidEntity if the owning user doesn't exist.
func (s *PostgresAccountStore) Create(ctx context.Context, account *domain.Account) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := account.Validate(); err != nil {
		log.Warn("account validation failed during create", slog.String("error", err.Error()))
		return uuid.Nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounts (user_id, provider, provider_account_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id uuid.UUID
	err := s.db.QueryRowContext(
		ctx,
		query,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
		createdAt,
	).Scan(&id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during account creation",
				slog.String("user_id", account.UserID.String()))
			return uuid.Nil, fmt.Errorf("%w: user with ID %s not found",
				store.ErrInvalidEntity, account.UserID)
		}
		log.Error("failed to create account",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", account.UserID.String()))
		return uuid.Nil, MapError(err)
	}

	log.Info("account created",
		slog.String("account_id", id.String()),
		slog.String("user_id", account.UserID.String()),
		slog.String("provider", account.Provider))
	return id, nil
}

// FindByUserID implements store.AccountStore.FindByUserID
func (s *PostgresAccountStore) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, provider, provider_account_id, created_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to query accounts",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	accounts := []*domain.Account{}
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.Provider,
			&account.ProviderAccountID,
			&account.CreatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return accounts, nil
}
