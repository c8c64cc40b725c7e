package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
	"github.com/phrazzld/storefront-accounts/internal/events"
	"github.com/phrazzld/storefront-accounts/internal/mocks"
	"github.com/phrazzld/storefront-accounts/internal/platform/mailer"
	"github.com/phrazzld/storefront-accounts/internal/service/auth"
	"github.com/phrazzld/storefront-accounts/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testFromAddress = "shop@example.com"
	testBaseURL     = "https://shop.example.com"
)

type serviceFixture struct {
	svc       *accountService
	db        *sql.DB
	sqlMock   sqlmock.Sqlmock
	users     *mocks.MockUserStore
	accounts  *mocks.MockAccountStore
	addresses *mocks.MockAddressStore
	hasher    *mocks.MockPasswordHasher
	tokens    *mocks.MockTokenService
	sender    *mocks.MockSender
	emitter   *mocks.MockEventEmitter
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &serviceFixture{
		db:        db,
		sqlMock:   sqlMock,
		users:     &mocks.MockUserStore{},
		accounts:  &mocks.MockAccountStore{},
		addresses: &mocks.MockAddressStore{},
		hasher:    &mocks.MockPasswordHasher{},
		tokens:    &mocks.MockTokenService{},
		sender:    &mocks.MockSender{},
		emitter:   &mocks.MockEventEmitter{},
	}

	svc, err := NewAccountService(AccountServiceDeps{
		DB:                    db,
		Users:                 f.users,
		Accounts:              f.accounts,
		Addresses:             f.addresses,
		Hasher:                f.hasher,
		Tokens:                f.tokens,
		Sender:                f.sender,
		Emitter:               f.emitter,
		FromAddress:           testFromAddress,
		BaseURL:               testBaseURL,
		VerificationTokenTTL:  14 * 24 * time.Hour,
		PasswordResetTokenTTL: 30 * time.Minute,
	})
	require.NoError(t, err)
	f.svc = svc.(*accountService)

	return f
}

func (f *serviceFixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.users.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
	f.addresses.AssertExpectations(t)
	f.tokens.AssertExpectations(t)
	f.sender.AssertExpectations(t)
	f.emitter.AssertExpectations(t)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func (f *serviceFixture) expectEvent(eventType string, userID uuid.UUID) {
	f.emitter.On("EmitEvent", mock.Anything, mock.MatchedBy(func(e *events.AccountEvent) bool {
		return e.Type == eventType && e.UserID == userID
	})).Return(nil).Once()
}

func storedUser(email string) *domain.User {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.User{
		ID:             uuid.New(),
		Name:           "Ada",
		Email:          email,
		HashedPassword: "hashed:old-password",
		Roles:          []string{domain.RoleCustomer},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func credentialsAccount(userID uuid.UUID) *domain.Account {
	return &domain.Account{
		ID:                uuid.New(),
		UserID:            userID,
		Provider:          domain.ProviderCredentials,
		ProviderAccountID: userID.String(),
	}
}

func assertKind(t *testing.T, err error, kind ErrorKind) *AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %T", err)
	assert.Equal(t, kind, appErr.Kind, "unexpected kind for %v", err)
	return appErr
}

func TestNewAccountService_Validation(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	valid := AccountServiceDeps{
		DB:                    db,
		Users:                 &mocks.MockUserStore{},
		Accounts:              &mocks.MockAccountStore{},
		Addresses:             &mocks.MockAddressStore{},
		Hasher:                &mocks.MockPasswordHasher{},
		Tokens:                &mocks.MockTokenService{},
		Sender:                &mocks.MockSender{},
		FromAddress:           testFromAddress,
		BaseURL:               testBaseURL,
		VerificationTokenTTL:  time.Hour,
		PasswordResetTokenTTL: time.Minute,
	}

	svc, err := NewAccountService(valid)
	require.NoError(t, err, "emitter is optional")
	assert.NotNil(t, svc)

	tests := []struct {
		name   string
		modify func(d *AccountServiceDeps)
		want   string
	}{
		{"missing db", func(d *AccountServiceDeps) { d.DB = nil }, "DB"},
		{"missing users", func(d *AccountServiceDeps) { d.Users = nil }, "Users"},
		{"missing sender", func(d *AccountServiceDeps) { d.Sender = nil }, "Sender"},
		{"missing base url", func(d *AccountServiceDeps) { d.BaseURL = "" }, "BaseURL"},
		{"zero ttl", func(d *AccountServiceDeps) { d.PasswordResetTokenTTL = 0 }, "TTL"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := valid
			tc.modify(&deps)
			svc, err := NewAccountService(deps)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCreateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates user, account and token then sends one email", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		userID := uuid.New()
		accountID := uuid.New()
		token := "verify-token"

		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectCommit()

		var savedRecord *domain.User
		f.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
			Run(func(args mock.Arguments) { savedRecord = args.Get(1).(*domain.User) }).
			Return(userID, nil).Once()

		var savedAccount *domain.Account
		f.accounts.On("Create", mock.Anything, mock.AnythingOfType("*domain.Account")).
			Run(func(args mock.Arguments) { savedAccount = args.Get(1).(*domain.Account) }).
			Return(accountID, nil).Once()

		f.tokens.On("CreateToken", mock.Anything, userID, "a@x.com", auth.PurposeVerifyEmail, 14*24*time.Hour).
			Return(token, nil).Once()

		persisted := storedUser("a@x.com")
		persisted.ID = userID
		persisted.HashedPassword = "hashed:secret1"
		f.users.On("GetByID", mock.Anything, userID).Return(persisted, nil).Once()
		f.users.On("Update", mock.Anything, userID, mock.MatchedBy(func(p store.UserPatch) bool {
			return p.Token != nil && *p.Token == token &&
				p.HashedPassword == nil && p.EmailVerified == nil && p.Roles == nil
		})).Return(nil).Once()

		var sent mailer.Message
		f.sender.On("Send", mock.Anything, mock.AnythingOfType("mailer.Message")).
			Run(func(args mock.Arguments) { sent = args.Get(1).(mailer.Message) }).
			Return(nil).Once()
		f.expectEvent(events.TypeUserRegistered, userID)

		user, err := f.svc.CreateUser(ctx, CreateUserInput{Name: "Ada", Email: "a@x.com"}, "secret1")
		require.NoError(t, err)

		require.NotNil(t, savedRecord)
		assert.NotEqual(t, "secret1", savedRecord.HashedPassword)
		assert.Equal(t, "hashed:secret1", savedRecord.HashedPassword)
		assert.Equal(t, uuid.Nil, savedRecord.ID, "id is assigned by the store")

		require.NotNil(t, savedAccount)
		assert.Equal(t, userID, savedAccount.UserID)
		assert.Equal(t, domain.ProviderCredentials, savedAccount.Provider)
		assert.Equal(t, userID.String(), savedAccount.ProviderAccountID)

		assert.Equal(t, "a@x.com", sent.To)
		assert.Equal(t, testFromAddress, sent.From)
		assert.Equal(t, subjectVerifyEmail, sent.Subject)
		assert.Contains(t, sent.HTML, testBaseURL+"/auth/verifyEmail?token="+token)

		assert.Equal(t, userID, user.ID)
		assert.Equal(t, "a@x.com", user.Email)
		assert.Nil(t, user.EmailVerified)
		assert.Empty(t, user.Addresses)
		assert.Equal(t, 1, f.hasher.HashCallCount)
		f.assertExpectations(t)
	})

	t.Run("invalid input is rejected before hashing", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		_, err := f.svc.CreateUser(ctx, CreateUserInput{Email: "not-an-email"}, "secret1")
		assertKind(t, err, KindBadRequest)

		_, err = f.svc.CreateUser(ctx, CreateUserInput{Email: "a@x.com"}, "")
		assertKind(t, err, KindBadRequest)

		_, err = f.svc.CreateUser(ctx, CreateUserInput{Email: "a@x.com"}, strings.Repeat("p", 73))
		assertKind(t, err, KindBadRequest)

		assert.Zero(t, f.hasher.HashCallCount)
		f.assertExpectations(t)
	})

	t.Run("hash failure is a server error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.hasher.HashFn = func(string) (string, error) { return "", errors.New("bcrypt exploded") }

		_, err := f.svc.CreateUser(ctx, CreateUserInput{Email: "a@x.com"}, "secret1")
		assertKind(t, err, KindServerError)
		f.assertExpectations(t)
	})

	t.Run("duplicate email rolls back with bad request", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectRollback()
		f.users.On("Create", mock.Anything, mock.Anything).Return(uuid.Nil, store.ErrEmailExists).Once()

		_, err := f.svc.CreateUser(ctx, CreateUserInput{Email: "a@x.com"}, "secret1")
		appErr := assertKind(t, err, KindBadRequest)
		assert.ErrorIs(t, err, store.ErrEmailExists)
		assert.NotEmpty(t, appErr.PublicMessage)
		f.assertExpectations(t)
	})

	t.Run("user creation without id rolls back", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectRollback()
		f.users.On("Create", mock.Anything, mock.Anything).Return(uuid.Nil, nil).Once()

		_, err := f.svc.CreateUser(ctx, CreateUserInput{Email: "a@x.com"}, "secret1")
		appErr := assertKind(t, err, KindServerError)
		assert.Equal(t, MsgServerError, appErr.PublicMessage)
		f.assertExpectations(t)
	})

	t.Run("account creation failure rolls back the user", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		userID := uuid.New()

		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectRollback()
		f.users.On("Create", mock.Anything, mock.Anything).Return(userID, nil).Once()
		f.accounts.On("Create", mock.Anything, mock.Anything).Return(uuid.Nil, nil).Once()

		_, err := f.svc.CreateUser(ctx, CreateUserInput{Email: "a@x.com"}, "secret1")
		assertKind(t, err, KindServerError)
		f.assertExpectations(t)
	})

	t.Run("send failure rolls back and emits nothing", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		userID := uuid.New()
		persisted := storedUser("a@x.com")
		persisted.ID = userID

		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectRollback()
		f.users.On("Create", mock.Anything, mock.Anything).Return(userID, nil).Once()
		f.accounts.On("Create", mock.Anything, mock.Anything).Return(uuid.New(), nil).Once()
		f.tokens.On("CreateToken", mock.Anything, userID, "a@x.com", auth.PurposeVerifyEmail, mock.Anything).
			Return("tok", nil).Once()
		f.users.On("GetByID", mock.Anything, userID).Return(persisted, nil).Once()
		f.users.On("Update", mock.Anything, userID, mock.Anything).Return(nil).Once()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		_, err := f.svc.CreateUser(ctx, CreateUserInput{Email: "a@x.com"}, "secret1")
		assertKind(t, err, KindServerError)
		f.emitter.AssertNotCalled(t, "EmitEvent", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("event failure does not fail registration", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		userID := uuid.New()
		persisted := storedUser("a@x.com")
		persisted.ID = userID

		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectCommit()
		f.users.On("Create", mock.Anything, mock.Anything).Return(userID, nil).Once()
		f.accounts.On("Create", mock.Anything, mock.Anything).Return(uuid.New(), nil).Once()
		f.tokens.On("CreateToken", mock.Anything, userID, mock.Anything, mock.Anything, mock.Anything).
			Return("tok", nil).Once()
		f.users.On("GetByID", mock.Anything, userID).Return(persisted, nil).Once()
		f.users.On("Update", mock.Anything, userID, mock.Anything).Return(nil).Once()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
		f.emitter.On("EmitEvent", mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()

		user, err := f.svc.CreateUser(ctx, CreateUserInput{Email: "a@x.com"}, "secret1")
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)
		f.assertExpectations(t)
	})
}

func TestResendEmailAddressVerification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown token fails without sending", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.users.On("Find", mock.Anything, store.UserFilter{Token: "missing"}).
			Return([]*domain.User{}, nil).Once()

		err := f.svc.ResendEmailAddressVerification(ctx, "missing")
		appErr := assertKind(t, err, KindBadRequest)
		assert.Equal(t, MsgTokenInvalid, appErr.PublicMessage)
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("empty token fails without a lookup", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		err := f.svc.ResendEmailAddressVerification(ctx, "")
		assertKind(t, err, KindBadRequest)
		f.assertExpectations(t)
	})

	t.Run("issues and stores a fresh token", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		user.Token = "old-token"

		f.users.On("Find", mock.Anything, store.UserFilter{Token: "old-token"}).
			Return([]*domain.User{user}, nil).Once()
		f.tokens.On("CreateToken", mock.Anything, user.ID, user.Email, auth.PurposeVerifyEmail, 14*24*time.Hour).
			Return("new-token", nil).Once()
		f.users.On("Update", mock.Anything, user.ID, mock.MatchedBy(func(p store.UserPatch) bool {
			return p.Token != nil && *p.Token == "new-token"
		})).Return(nil).Once()
		f.sender.On("Send", mock.Anything, mock.MatchedBy(func(m mailer.Message) bool {
			return m.To == user.Email && strings.Contains(m.HTML, "token=new-token")
		})).Return(nil).Once()
		f.expectEvent(events.TypeVerificationResent, user.ID)

		require.NoError(t, f.svc.ResendEmailAddressVerification(ctx, "old-token"))
		f.tokens.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("store failure is a server error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.users.On("Find", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

		err := f.svc.ResendEmailAddressVerification(ctx, "tok")
		assertKind(t, err, KindServerError)
		f.assertExpectations(t)
	})
}

func TestSendPasswordResetRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown email is a bad request", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.users.On("Find", mock.Anything, store.UserFilter{Email: "nobody@x.com"}).
			Return([]*domain.User{}, nil).Once()

		err := f.svc.SendPasswordResetRequest(ctx, "nobody@x.com")
		assertKind(t, err, KindBadRequest)
		f.assertExpectations(t)
	})

	t.Run("user without account is a server error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		f.users.On("Find", mock.Anything, store.UserFilter{Email: user.Email}).
			Return([]*domain.User{user}, nil).Once()
		f.accounts.On("FindByUserID", mock.Anything, user.ID).Return([]*domain.Account{}, nil).Once()

		err := f.svc.SendPasswordResetRequest(ctx, user.Email)
		assertKind(t, err, KindServerError)
		f.assertExpectations(t)
	})

	t.Run("federated account is a bad request regardless of tokens", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		user.HashedPassword = ""
		user.PasswordResetToken = "stale"
		f.users.On("Find", mock.Anything, store.UserFilter{Email: user.Email}).
			Return([]*domain.User{user}, nil).Once()
		f.accounts.On("FindByUserID", mock.Anything, user.ID).Return([]*domain.Account{{
			ID: uuid.New(), UserID: user.ID, Provider: "github", ProviderAccountID: "12345",
		}}, nil).Once()

		err := f.svc.SendPasswordResetRequest(ctx, user.Email)
		appErr := assertKind(t, err, KindBadRequest)
		assert.Contains(t, appErr.PublicMessage, "github")
		f.tokens.AssertNotCalled(t, "CreateToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("stores a reset token and mails the link", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a+b@x.com")
		f.users.On("Find", mock.Anything, store.UserFilter{Email: user.Email}).
			Return([]*domain.User{user}, nil).Once()
		f.accounts.On("FindByUserID", mock.Anything, user.ID).
			Return([]*domain.Account{credentialsAccount(user.ID)}, nil).Once()
		f.tokens.On("CreateToken", mock.Anything, user.ID, user.Email, auth.PurposeResetPassword, 30*time.Minute).
			Return("reset-token", nil).Once()
		f.users.On("Update", mock.Anything, user.ID, mock.MatchedBy(func(p store.UserPatch) bool {
			return p.PasswordResetToken != nil && *p.PasswordResetToken == "reset-token" && p.Token == nil
		})).Return(nil).Once()

		var sent mailer.Message
		f.sender.On("Send", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { sent = args.Get(1).(mailer.Message) }).
			Return(nil).Once()
		f.expectEvent(events.TypePasswordResetRequested, user.ID)

		require.NoError(t, f.svc.SendPasswordResetRequest(ctx, user.Email))
		assert.Equal(t, subjectPasswordReset, sent.Subject)
		assert.Contains(t, sent.HTML, "passwordResetToken=reset-token")
		assert.Contains(t, sent.HTML, "email=a%2Bb%40x.com")
		assert.Contains(t, sent.HTML, "30 minutes")
		f.assertExpectations(t)
	})

	t.Run("send failure is a server error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		f.users.On("Find", mock.Anything, mock.Anything).Return([]*domain.User{user}, nil).Once()
		f.accounts.On("FindByUserID", mock.Anything, user.ID).
			Return([]*domain.Account{credentialsAccount(user.ID)}, nil).Once()
		f.tokens.On("CreateToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("reset-token", nil).Once()
		f.users.On("Update", mock.Anything, user.ID, mock.Anything).Return(nil).Once()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		err := f.svc.SendPasswordResetRequest(ctx, user.Email)
		assertKind(t, err, KindServerError)
		f.assertExpectations(t)
	})
}

func TestResetPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T) (*serviceFixture, *domain.User) {
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		user.PasswordResetToken = "reset-token"
		f.users.On("Find", mock.Anything, store.UserFilter{Email: user.Email}).
			Return([]*domain.User{user}, nil).Once()
		f.accounts.On("FindByUserID", mock.Anything, user.ID).
			Return([]*domain.Account{credentialsAccount(user.ID)}, nil).Once()
		return f, user
	}

	t.Run("replaces the hash, clears the token and confirms", func(t *testing.T) {
		t.Parallel()
		f, user := setup(t)
		f.tokens.On("ValidateToken", mock.Anything, "reset-token", user.Email, auth.PurposeResetPassword).
			Return(&auth.TokenClaims{SubjectID: user.ID, Email: user.Email}, nil).Once()
		f.users.On("Update", mock.Anything, user.ID, mock.MatchedBy(func(p store.UserPatch) bool {
			return p.HashedPassword != nil && *p.HashedPassword == "hashed:new1" &&
				p.PasswordResetToken != nil && *p.PasswordResetToken == "" &&
				p.Token == nil && p.Roles == nil
		})).Return(nil).Once()
		f.sender.On("Send", mock.Anything, mock.MatchedBy(func(m mailer.Message) bool {
			return m.Subject == subjectPasswordSaved && m.To == user.Email
		})).Return(nil).Once()
		f.expectEvent(events.TypePasswordReset, user.ID)

		require.NoError(t, f.svc.ResetPassword(ctx, user.Email, "reset-token", "new1", "new1"))
		f.assertExpectations(t)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		t.Parallel()
		f, user := setup(t)
		f.tokens.On("ValidateToken", mock.Anything, "reset-token", user.Email, auth.PurposeResetPassword).
			Return(nil, auth.ErrExpiredToken).Once()

		err := f.svc.ResetPassword(ctx, user.Email, "reset-token", "new1", "new1")
		appErr := assertKind(t, err, KindBadRequest)
		assert.Equal(t, "Token is invalid.", appErr.PublicMessage)
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
		f.assertExpectations(t)
	})

	t.Run("valid token that is not the stored reset token is rejected", func(t *testing.T) {
		t.Parallel()
		f, user := setup(t)
		f.tokens.On("ValidateToken", mock.Anything, "older-reset-token", user.Email, auth.PurposeResetPassword).
			Return(&auth.TokenClaims{SubjectID: user.ID, Email: user.Email}, nil).Once()

		err := f.svc.ResetPassword(ctx, user.Email, "older-reset-token", "new1", "new1")
		appErr := assertKind(t, err, KindBadRequest)
		assert.Equal(t, MsgTokenInvalid, appErr.PublicMessage)
		assert.Zero(t, f.hasher.HashCallCount)
		f.assertExpectations(t)
	})

	t.Run("token for another subject is rejected", func(t *testing.T) {
		t.Parallel()
		f, user := setup(t)
		f.tokens.On("ValidateToken", mock.Anything, "reset-token", user.Email, auth.PurposeResetPassword).
			Return(&auth.TokenClaims{SubjectID: uuid.New(), Email: user.Email}, nil).Once()

		err := f.svc.ResetPassword(ctx, user.Email, "reset-token", "new1", "new1")
		assertKind(t, err, KindBadRequest)
		f.assertExpectations(t)
	})

	t.Run("no outstanding reset token is rejected", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		user.Token = "verify-token"
		f.users.On("Find", mock.Anything, store.UserFilter{Email: user.Email}).
			Return([]*domain.User{user}, nil).Once()
		f.accounts.On("FindByUserID", mock.Anything, user.ID).
			Return([]*domain.Account{credentialsAccount(user.ID)}, nil).Once()
		f.tokens.On("ValidateToken", mock.Anything, "verify-token", user.Email, auth.PurposeResetPassword).
			Return(nil, auth.ErrWrongPurpose).Once()

		err := f.svc.ResetPassword(ctx, user.Email, "verify-token", "new1", "new1")
		assertKind(t, err, KindBadRequest)
		f.assertExpectations(t)
	})

	t.Run("mismatched confirmation fails before any mutation", func(t *testing.T) {
		t.Parallel()
		f, user := setup(t)
		f.tokens.On("ValidateToken", mock.Anything, "reset-token", user.Email, auth.PurposeResetPassword).
			Return(&auth.TokenClaims{SubjectID: user.ID, Email: user.Email}, nil).Once()

		err := f.svc.ResetPassword(ctx, user.Email, "reset-token", "new1", "new2")
		appErr := assertKind(t, err, KindBadRequest)
		assert.Equal(t, MsgPasswordsMismatch, appErr.PublicMessage)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		assert.Zero(t, f.hasher.HashCallCount)
		f.assertExpectations(t)
	})

	t.Run("federated account is a bad request", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		f.users.On("Find", mock.Anything, mock.Anything).Return([]*domain.User{user}, nil).Once()
		f.accounts.On("FindByUserID", mock.Anything, user.ID).Return([]*domain.Account{{
			ID: uuid.New(), UserID: user.ID, Provider: "google", ProviderAccountID: "g-1",
		}}, nil).Once()

		err := f.svc.ResetPassword(ctx, user.Email, "tok", "new1", "new1")
		assertKind(t, err, KindBadRequest)
		f.assertExpectations(t)
	})

	t.Run("credentials account wins over federated ones", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		user.PasswordResetToken = "reset-token"
		f.users.On("Find", mock.Anything, mock.Anything).Return([]*domain.User{user}, nil).Once()
		f.accounts.On("FindByUserID", mock.Anything, user.ID).Return([]*domain.Account{
			{ID: uuid.New(), UserID: user.ID, Provider: "google", ProviderAccountID: "g-1"},
			credentialsAccount(user.ID),
		}, nil).Once()
		f.tokens.On("ValidateToken", mock.Anything, "reset-token", user.Email, auth.PurposeResetPassword).
			Return(&auth.TokenClaims{SubjectID: user.ID}, nil).Once()
		f.users.On("Update", mock.Anything, user.ID, mock.Anything).Return(nil).Once()
		f.sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
		f.expectEvent(events.TypePasswordReset, user.ID)

		require.NoError(t, f.svc.ResetPassword(ctx, user.Email, "reset-token", "new1", "new1"))
		f.assertExpectations(t)
	})
}

func TestVerifyEmailAddress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("sets only the verified timestamp", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		fixed := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
		f.svc.now = func() time.Time { return fixed }

		user := storedUser("a@x.com")
		user.Token = "verify-token"
		f.users.On("Find", mock.Anything, store.UserFilter{Token: "verify-token"}).
			Return([]*domain.User{user}, nil).Once()
		f.tokens.On("ValidateToken", mock.Anything, "verify-token", user.Email, auth.PurposeVerifyEmail).
			Return(&auth.TokenClaims{SubjectID: user.ID, Email: user.Email}, nil).Once()
		f.users.On("Update", mock.Anything, user.ID, store.UserPatch{EmailVerified: &fixed}).
			Return(nil).Once()
		f.expectEvent(events.TypeEmailVerified, user.ID)

		require.NoError(t, f.svc.VerifyEmailAddress(ctx, "verify-token"))
		f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("unknown token is a bad request", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.users.On("Find", mock.Anything, store.UserFilter{Token: "nope"}).
			Return([]*domain.User{}, nil).Once()

		err := f.svc.VerifyEmailAddress(ctx, "nope")
		assertKind(t, err, KindBadRequest)
		f.assertExpectations(t)
	})

	t.Run("invalid token is a bad request", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		user.Token = "verify-token"
		f.users.On("Find", mock.Anything, mock.Anything).Return([]*domain.User{user}, nil).Once()
		f.tokens.On("ValidateToken", mock.Anything, "verify-token", user.Email, auth.PurposeVerifyEmail).
			Return(nil, auth.ErrEmailMismatch).Once()

		err := f.svc.VerifyEmailAddress(ctx, "verify-token")
		appErr := assertKind(t, err, KindBadRequest)
		assert.Equal(t, MsgTokenInvalid, appErr.PublicMessage)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})
}

func TestSetUserRoles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("replaces rather than merges", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		user.Roles = []string{"A", "B"}

		current := *user
		f.users.On("GetByID", mock.Anything, user.ID).Return(&current, nil).Once()
		f.users.On("Update", mock.Anything, user.ID, store.UserPatch{Roles: []string{"C"}}).
			Return(nil).Once()
		updated := *user
		updated.Roles = []string{"C"}
		f.users.On("GetByID", mock.Anything, user.ID).Return(&updated, nil).Once()
		addresses := []domain.Address{{ID: uuid.New(), UserID: user.ID, Kind: domain.AddressShipping}}
		f.addresses.On("ListByUserID", mock.Anything, user.ID).Return(addresses, nil).Once()
		f.expectEvent(events.TypeRolesChanged, user.ID)

		result, err := f.svc.SetUserRoles(ctx, user.ID, []string{" C ", "C"})
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, result.Roles)
		assert.Equal(t, addresses, result.Addresses)
		f.assertExpectations(t)
	})

	t.Run("empty role set clears all roles", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Twice()
		f.users.On("Update", mock.Anything, user.ID, store.UserPatch{Roles: []string{}}).
			Return(nil).Once()
		f.addresses.On("ListByUserID", mock.Anything, user.ID).Return([]domain.Address{}, nil).Once()
		f.expectEvent(events.TypeRolesChanged, user.ID)

		_, err := f.svc.SetUserRoles(ctx, user.ID, nil)
		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		id := uuid.New()
		f.users.On("GetByID", mock.Anything, id).Return(nil, store.ErrUserNotFound).Once()

		_, err := f.svc.SetUserRoles(ctx, id, []string{"admin"})
		appErr := assertKind(t, err, KindNotFound)
		assert.Equal(t, 404, appErr.StatusCode())
		assert.ErrorIs(t, err, ErrNotFound)
		f.assertExpectations(t)
	})
}

func TestGetUserByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("merges addresses into the public view", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		user.Token = "secret-token"
		user.PasswordResetToken = "secret-reset"
		addresses := []domain.Address{
			{ID: uuid.New(), UserID: user.ID, Kind: domain.AddressBilling, IsDefault: true},
			{ID: uuid.New(), UserID: user.ID, Kind: domain.AddressShipping},
		}
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
		f.addresses.On("ListByUserID", mock.Anything, user.ID).Return(addresses, nil).Once()

		result, err := f.svc.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, result.ID)
		assert.Equal(t, addresses, result.Addresses)
		f.assertExpectations(t)
	})

	t.Run("missing user is not found", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		id := uuid.New()
		f.users.On("GetByID", mock.Anything, id).Return(nil, store.ErrUserNotFound).Once()

		_, err := f.svc.GetUserByID(ctx, id)
		assertKind(t, err, KindNotFound)
		f.assertExpectations(t)
	})

	t.Run("store failure is a server error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		id := uuid.New()
		f.users.On("GetByID", mock.Anything, id).Return(nil, errors.New("db down")).Once()

		_, err := f.svc.GetUserByID(ctx, id)
		assertKind(t, err, KindServerError)
		f.assertExpectations(t)
	})

	t.Run("address failure is a server error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		user := storedUser("a@x.com")
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
		f.addresses.On("ListByUserID", mock.Anything, user.ID).Return(nil, errors.New("db down")).Once()

		_, err := f.svc.GetUserByID(ctx, user.ID)
		assertKind(t, err, KindServerError)
		f.assertExpectations(t)
	})
}

func TestGetAllUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("keeps store order and pairs addresses by user", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		users := make([]*domain.User, 20)
		byUser := make(map[uuid.UUID][]domain.Address, len(users))
		for i := range users {
			users[i] = storedUser("user" + string(rune('a'+i)) + "@x.com")
			addresses := []domain.Address{{ID: uuid.New(), UserID: users[i].ID, City: users[i].Email}}
			byUser[users[i].ID] = addresses
			f.addresses.On("ListByUserID", mock.Anything, users[i].ID).Return(addresses, nil).Once()
		}
		f.users.On("List", mock.Anything).Return(users, nil).Once()

		result, err := f.svc.GetAllUsers(ctx)
		require.NoError(t, err)
		require.Len(t, result, len(users))
		for i, public := range result {
			assert.Equal(t, users[i].ID, public.ID, "position %d", i)
			require.Len(t, public.Addresses, 1)
			assert.Equal(t, public.ID, public.Addresses[0].UserID)
			assert.Equal(t, byUser[public.ID], public.Addresses)
		}
		f.assertExpectations(t)
	})

	t.Run("empty store yields empty list", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.users.On("List", mock.Anything).Return([]*domain.User{}, nil).Once()

		result, err := f.svc.GetAllUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, result)
		f.assertExpectations(t)
	})

	t.Run("one failing address fetch fails the call", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		users := []*domain.User{storedUser("a@x.com"), storedUser("b@x.com"), storedUser("c@x.com")}
		f.users.On("List", mock.Anything).Return(users, nil).Once()
		f.addresses.On("ListByUserID", mock.Anything, users[0].ID).Return([]domain.Address{}, nil).Maybe()
		f.addresses.On("ListByUserID", mock.Anything, users[1].ID).Return(nil, errors.New("db down")).Once()
		f.addresses.On("ListByUserID", mock.Anything, users[2].ID).Return([]domain.Address{}, nil).Maybe()

		result, err := f.svc.GetAllUsers(ctx)
		assertKind(t, err, KindServerError)
		assert.Nil(t, result)
		f.assertExpectations(t)
	})

	t.Run("list failure is a server error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.users.On("List", mock.Anything).Return(nil, errors.New("db down")).Once()

		_, err := f.svc.GetAllUsers(ctx)
		assertKind(t, err, KindServerError)
		f.assertExpectations(t)
	})
}

func TestAccountService_ConcurrentReads(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	user := storedUser("a@x.com")
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.addresses.On("ListByUserID", mock.Anything, user.ID).Return([]domain.Address{}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.GetUserByID(context.Background(), user.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
