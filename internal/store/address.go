package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
)

// AddressStore reads the address book. Addresses are written elsewhere.
type AddressStore interface {
	// ListByUserID returns every address owned by the user. A user without
	// addresses yields an empty slice.
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Address, error)
}
