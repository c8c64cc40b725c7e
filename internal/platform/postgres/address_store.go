package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
	"github.com/phrazzld/storefront-accounts/internal/platform/logger"
	"github.com/phrazzld/storefront-accounts/internal/redact"
	"github.com/phrazzld/storefront-accounts/internal/store"
)

// PostgresAddressStore implements store.AddressStore over the addresses table.
type PostgresAddressStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAddressStore creates a new PostgresAddressStore.
// If logger is nil, a default logger will be used.
func NewPostgresAddressStore(db store.DBTX, logger *slog.Logger) *PostgresAddressStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAddressStore{
		db:     db,
		logger: logger.With(slog.String("component", "address_store")),
	}
}

var _ store.AddressStore = (*PostgresAddressStore)(nil)

// ListByUserID implements store.AddressStore.ListByUserID
// Default addresses come first, then by creation time.
func (s *PostgresAddressStore) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Address, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, kind, line1, line2, city, region, postal_code, country, is_default
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to query addresses",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	addresses := []domain.Address{}
	for rows.Next() {
		var (
			address domain.Address
			kind    string
		)
		if err := rows.Scan(
			&address.ID,
			&address.UserID,
			&kind,
			&address.Line1,
			&address.Line2,
			&address.City,
			&address.Region,
			&address.PostalCode,
			&address.Country,
			&address.IsDefault,
		); err != nil {
			return nil, err
		}
		address.Kind = domain.AddressKind(kind)
		addresses = append(addresses, address)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return addresses, nil
}
