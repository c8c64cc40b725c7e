package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinks(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://shop.example.com/auth/verifyEmail?token=abc.def",
		verifyEmailLink("https://shop.example.com/", "abc.def"))

	assert.Equal(t,
		"https://shop.example.com/auth/resetPassword/verify?passwordResetToken=abc.def&email=a%2Bb%40x.com",
		resetPasswordLink("https://shop.example.com", "abc.def", "a+b@x.com"))
}

func TestRenderMessage(t *testing.T) {
	t.Parallel()

	msg, err := renderMessage("shop@example.com", "a@x.com", subjectVerifyEmail, verifyEmailTemplate,
		notificationData{Name: "<Ada>", Link: "https://shop.example.com/auth/verifyEmail?token=t"})
	require.NoError(t, err)

	assert.Equal(t, "shop@example.com", msg.From)
	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, subjectVerifyEmail, msg.Subject)
	assert.Contains(t, msg.HTML, "&lt;Ada&gt;", "names are escaped")
	assert.Contains(t, msg.HTML, `href="https://shop.example.com/auth/verifyEmail?token=t"`)
	assert.NoError(t, msg.Validate())

	anonymous, err := renderMessage("shop@example.com", "a@x.com", subjectPasswordSaved, passwordChangedTemplate,
		notificationData{})
	require.NoError(t, err)
	assert.Contains(t, anonymous.HTML, "Hi there")
}

func TestHumanDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{14 * 24 * time.Hour, "14 days"},
		{24 * time.Hour, "1 day"},
		{2 * time.Hour, "2 hours"},
		{30 * time.Minute, "30 minutes"},
		{time.Minute, "1 minute"},
		{90 * time.Minute, "90 minutes"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, humanDuration(tc.in), tc.in.String())
	}
}

func TestConversions(t *testing.T) {
	t.Parallel()

	t.Run("newUserRecord injects the hash and leaves the id empty", func(t *testing.T) {
		user, err := newUserRecord(CreateUserInput{Name: " Ada ", Email: "a@x.com", Image: "https://img/x.png"}, "hash")
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, user.ID)
		assert.Equal(t, "Ada", user.Name)
		assert.Equal(t, "hash", user.HashedPassword)
		assert.Equal(t, "https://img/x.png", user.Image)
		assert.Empty(t, user.Token)
		assert.Equal(t, []string{domain.RoleCustomer}, user.Roles)
	})

	t.Run("newUserRecord rejects bad email", func(t *testing.T) {
		_, err := newUserRecord(CreateUserInput{Email: "nope"}, "hash")
		assert.Error(t, err)
	})

	t.Run("toPublicUser copies and never shares slices", func(t *testing.T) {
		verified := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		user := &domain.User{
			ID:                 uuid.New(),
			Email:              "a@x.com",
			Token:              "t",
			PasswordResetToken: "r",
			HashedPassword:     "h",
			EmailVerified:      &verified,
			Roles:              []string{"admin"},
		}
		addresses := []domain.Address{{ID: uuid.New(), UserID: user.ID}}

		public := toPublicUser(user, addresses)
		assert.Equal(t, user.ID, public.ID)
		assert.Equal(t, addresses, public.Addresses)
		require.NotNil(t, public.EmailVerified)
		assert.True(t, verified.Equal(*public.EmailVerified))

		public.Roles[0] = "changed"
		*public.EmailVerified = time.Time{}
		assert.Equal(t, "admin", user.Roles[0])
		assert.Equal(t, verified, *user.EmailVerified)
	})

	t.Run("toPublicUser with nil addresses yields an empty list", func(t *testing.T) {
		public := toPublicUser(&domain.User{ID: uuid.New()}, nil)
		assert.NotNil(t, public.Addresses)
		assert.Empty(t, public.Addresses)
	})
}
