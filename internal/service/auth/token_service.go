package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Purpose identifies the workflow a token was issued for.
type Purpose string

const (
	// PurposeVerifyEmail marks tokens embedded in email verification links.
	PurposeVerifyEmail Purpose = "verify_email"

	// PurposeResetPassword marks tokens embedded in password reset links.
	PurposeResetPassword Purpose = "reset_password"
)

// TokenService issues and validates signed, expiring tokens bound to a user
// and email address.
type TokenService interface {
	// CreateToken signs a token for subjectID and email that expires after ttl.
	CreateToken(
		ctx context.Context,
		subjectID uuid.UUID,
		email string,
		purpose Purpose,
		ttl time.Duration,
	) (string, error)

	// ValidateToken verifies the token's signature and expiry and checks that it
	// was issued for purpose. When expectedEmail is non-empty the token's email
	// claim must match it (case-insensitively).
	ValidateToken(
		ctx context.Context,
		token string,
		expectedEmail string,
		purpose Purpose,
	) (*TokenClaims, error)
}

// TokenClaims is the decoded payload of a valid token.
type TokenClaims struct {
	SubjectID uuid.UUID
	Email     string
	Purpose   Purpose
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
