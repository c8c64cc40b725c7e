package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
)

// UserFilter selects users by exact match on every non-empty field.
// An empty filter matches nothing rather than every user.
type UserFilter struct {
	Email              string
	Token              string
	PasswordResetToken string
}

// IsEmpty reports whether no predicate is set.
func (f UserFilter) IsEmpty() bool {
	return f.Email == "" && f.Token == "" && f.PasswordResetToken == ""
}

// UserPatch describes a partial update. Nil fields are left untouched.
// Setting Token or PasswordResetToken to an empty string clears the column.
// A non-nil Roles slice replaces the whole role set, even when empty.
type UserPatch struct {
	HashedPassword     *string
	Token              *string
	PasswordResetToken *string
	EmailVerified      *time.Time
	Roles              []string
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.HashedPassword == nil &&
		p.Token == nil &&
		p.PasswordResetToken == nil &&
		p.EmailVerified == nil &&
		p.Roles == nil
}

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user and returns the ID assigned by the store.
	// Returns ErrEmailExists if the email is already taken.
	Create(ctx context.Context, user *domain.User) (uuid.UUID, error)

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// Find returns every user matching the filter. No match is an empty
	// slice, not an error.
	Find(ctx context.Context, filter UserFilter) ([]*domain.User, error)

	// List returns all users in creation order.
	List(ctx context.Context) ([]*domain.User, error)

	// Update applies a partial update to the user with the given ID.
	// Returns ErrUserNotFound if the user does not exist.
	Update(ctx context.Context, id uuid.UUID, patch UserPatch) error

	// WithTx returns a UserStore bound to the provided transaction.
	WithTx(tx *sql.Tx) UserStore
}
