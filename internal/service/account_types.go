package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
)

// CreateUserInput is the caller-supplied part of a registration.
type CreateUserInput struct {
	Name  string `json:"name" validate:"max=200"`
	Email string `json:"email" validate:"required,email,max=254"`
	Image string `json:"image" validate:"omitempty,url"`
}

// PublicUser is the user shape returned to callers. It has no fields for
// the credential hash or outstanding tokens.
type PublicUser struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Email         string           `json:"email"`
	Image         string           `json:"image,omitempty"`
	EmailVerified *time.Time       `json:"email_verified,omitempty"`
	Roles         []string         `json:"roles"`
	Addresses     []domain.Address `json:"addresses"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// newUserRecord converts registration input into an unsaved storage record.
func newUserRecord(input CreateUserInput, hashedPassword string) (*domain.User, error) {
	user, err := domain.NewUser(input.Name, input.Email, hashedPassword)
	if err != nil {
		return nil, err
	}
	user.Image = input.Image
	return user, nil
}

// toPublicUser composes the public view of a stored user and its addresses.
// Slices are copied so callers cannot mutate store-owned data.
func toPublicUser(user *domain.User, addresses []domain.Address) *PublicUser {
	public := &PublicUser{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Image:     user.Image,
		Roles:     append([]string{}, user.Roles...),
		Addresses: append([]domain.Address{}, addresses...),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.EmailVerified != nil {
		verified := *user.EmailVerified
		public.EmailVerified = &verified
	}
	return public
}
