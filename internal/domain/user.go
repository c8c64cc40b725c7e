package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors
var (
	ErrEmptyEmail          = fmt.Errorf("%w: email cannot be empty", ErrValidation)
	ErrEmptyHashedPassword = fmt.Errorf("%w: hashed password cannot be empty", ErrValidation)
	ErrEmptyRole           = fmt.Errorf("%w: role name cannot be empty", ErrValidation)
)

// RoleCustomer is assigned to every user created through registration.
const RoleCustomer = "customer"

// User is the storage representation of a storefront user.
//
// Token and PasswordResetToken hold the most recently issued verification and
// reset tokens verbatim; an empty string means no token is outstanding.
// HashedPassword is empty for users that only sign in through a federated
// provider.
type User struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	Image              string
	HashedPassword     string
	Token              string
	PasswordResetToken string
	EmailVerified      *time.Time
	Roles              []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUser builds an unsaved credentials user. The ID is left empty; it is
// assigned by the store on creation.
func NewUser(name, email, hashedPassword string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		Name:           strings.TrimSpace(name),
		Email:          strings.TrimSpace(email),
		HashedPassword: hashedPassword,
		Roles:          []string{RoleCustomer},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}
	if user.HashedPassword == "" {
		return nil, ErrEmptyHashedPassword
	}

	return user, nil
}

// Validate checks the fields every stored user must satisfy.
func (u *User) Validate() error {
	if u.Email == "" {
		return ErrEmptyEmail
	}
	if !validateEmailFormat(u.Email) {
		return ErrInvalidEmail
	}
	for _, role := range u.Roles {
		if strings.TrimSpace(role) == "" {
			return ErrEmptyRole
		}
	}
	return nil
}

// IsEmailVerified reports whether the user has confirmed their email address.
func (u *User) IsEmailVerified() bool {
	return u.EmailVerified != nil && !u.EmailVerified.IsZero()
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeRoles trims, drops empty names and removes duplicates while keeping
// the first occurrence order. The result is never nil.
func NormalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

// validateEmailFormat accepts a bare addr-spec with a dotted domain part.
// Display-name forms such as "Jane <jane@example.com>" are rejected.
func validateEmailFormat(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}

	at := strings.LastIndex(email, "@")
	domainPart := email[at+1:]
	dot := strings.Index(domainPart, ".")
	return dot > 0 && dot < len(domainPart)-1
}
