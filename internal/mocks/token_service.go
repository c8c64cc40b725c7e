package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/service/auth"
	"github.com/stretchr/testify/mock"
)

// MockTokenService is a mock of auth.TokenService for use with testify/mock.
type MockTokenService struct {
	mock.Mock
}

var _ auth.TokenService = (*MockTokenService)(nil)

// CreateToken is a mock implementation of auth.TokenService.CreateToken
func (m *MockTokenService) CreateToken(
	ctx context.Context,
	subjectID uuid.UUID,
	email string,
	purpose auth.Purpose,
	ttl time.Duration,
) (string, error) {
	args := m.Called(ctx, subjectID, email, purpose, ttl)
	return args.String(0), args.Error(1)
}

// ValidateToken is a mock implementation of auth.TokenService.ValidateToken
func (m *MockTokenService) ValidateToken(
	ctx context.Context,
	token string,
	expectedEmail string,
	purpose auth.Purpose,
) (*auth.TokenClaims, error) {
	args := m.Called(ctx, token, expectedEmail, purpose)
	if claims, ok := args.Get(0).(*auth.TokenClaims); ok {
		return claims, args.Error(1)
	}
	return nil, args.Error(1)
}
