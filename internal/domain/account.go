package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProviderCredentials identifies an email and password login method.
const ProviderCredentials = "credentials"

var (
	ErrEmptyProvider          = fmt.Errorf("%w: provider cannot be empty", ErrValidation)
	ErrEmptyProviderAccountID = fmt.Errorf("%w: provider account id cannot be empty", ErrValidation)
)

// Account is a login method owned by a user. Users created through
// registration own exactly one credentials account whose ProviderAccountID is
// the user's own ID.
type Account struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Provider          string
	ProviderAccountID string
	CreatedAt         time.Time
}

// NewCredentialsAccount builds the unsaved credentials account for userID.
func NewCredentialsAccount(userID uuid.UUID) (*Account, error) {
	account := &Account{
		UserID:            userID,
		Provider:          ProviderCredentials,
		ProviderAccountID: userID.String(),
		CreatedAt:         time.Now().UTC(),
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

// Validate checks the account references a user and names its provider.
func (a *Account) Validate() error {
	if a.UserID == uuid.Nil {
		return ErrInvalidID
	}
	if a.Provider == "" {
		return ErrEmptyProvider
	}
	if a.ProviderAccountID == "" {
		return ErrEmptyProviderAccountID
	}
	return nil
}

// IsCredentials reports whether the account is a password login.
func (a *Account) IsCredentials() bool {
	return a.Provider == ProviderCredentials
}
