package auth

import "errors"

// Token validation errors
var (
	// ErrInvalidToken indicates the token format is invalid or signature doesn't match
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmailMismatch indicates the token was issued for a different email address
	ErrEmailMismatch = errors.New("token email does not match")

	// ErrWrongPurpose indicates the token was issued for a different workflow
	ErrWrongPurpose = errors.New("token issued for a different purpose")
)
