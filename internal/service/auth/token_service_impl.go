package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/platform/logger"
)

const minSecretLength = 32

// hmacTokenService is an implementation of TokenService using HMAC-SHA signing.
type hmacTokenService struct {
	signingKey []byte
	timeFunc   func() time.Time // Injectable for testing
	clockSkew  time.Duration    // Allowed time difference for validation to handle clock drift
}

// tokenClaims defines the structure of JWT claims we use
type tokenClaims struct {
	Email   string  `json:"email"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

var _ TokenService = (*hmacTokenService)(nil)

// NewTokenService creates a TokenService that signs tokens with HMAC-SHA256.
func NewTokenService(secret string) (TokenService, error) {
	return newHMACTokenService(secret, time.Now)
}

func newHMACTokenService(secret string, timeFunc func() time.Time) (*hmacTokenService, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d characters", minSecretLength)
	}

	return &hmacTokenService{
		signingKey: []byte(secret),
		timeFunc:   timeFunc,
		clockSkew:  time.Minute,
	}, nil
}

// CreateToken implements TokenService.
func (s *hmacTokenService) CreateToken(
	ctx context.Context,
	subjectID uuid.UUID,
	email string,
	purpose Purpose,
	ttl time.Duration,
) (string, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()

	claims := tokenClaims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		log.Error("failed to sign token",
			"error", err,
			"user_id", subjectID,
			"purpose", purpose,
			"signing_method", jwt.SigningMethodHS256.Name)
		return "", fmt.Errorf("failed to sign %s token with HMAC-SHA256: %w", purpose, err)
	}

	return signed, nil
}

// ValidateToken implements TokenService.
func (s *hmacTokenService) ValidateToken(
	ctx context.Context,
	tokenString string,
	expectedEmail string,
	purpose Purpose,
) (*TokenClaims, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time {
			return now
		}),
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&tokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Debug("token validation failed: token expired", "purpose", purpose)
			return nil, ErrExpiredToken
		}
		log.Debug("token validation failed",
			"error", err,
			"purpose", purpose,
			"error_type", fmt.Sprintf("%T", err))
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		log.Debug("token validation failed: invalid claims")
		return nil, ErrInvalidToken
	}

	subjectID, err := uuid.Parse(claims.Subject)
	if err != nil {
		log.Debug("token validation failed: malformed subject", "error", err)
		return nil, ErrInvalidToken
	}

	if claims.Purpose != purpose {
		log.Debug("token validation failed: wrong purpose",
			"expected", purpose,
			"actual", claims.Purpose)
		return nil, ErrWrongPurpose
	}

	if expectedEmail != "" && !strings.EqualFold(claims.Email, expectedEmail) {
		log.Debug("token validation failed: email mismatch", "user_id", subjectID)
		return nil, ErrEmailMismatch
	}

	result := &TokenClaims{
		SubjectID: subjectID,
		Email:     claims.Email,
		Purpose:   claims.Purpose,
		ID:        claims.ID,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}
