package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
)

// AccountStore defines the interface for login account persistence.
type AccountStore interface {
	// Create saves a new account and returns the ID assigned by the store.
	// Returns ErrInvalidEntity if the owning user does not exist.
	Create(ctx context.Context, account *domain.Account) (uuid.UUID, error)

	// FindByUserID returns the accounts owned by a user, oldest first.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error)

	// WithTx returns an AccountStore bound to the provided transaction.
	WithTx(tx *sql.Tx) AccountStore
}
