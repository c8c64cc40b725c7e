package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
	"github.com/phrazzld/storefront-accounts/internal/events"
	"github.com/phrazzld/storefront-accounts/internal/platform/logger"
	"github.com/phrazzld/storefront-accounts/internal/platform/mailer"
	"github.com/phrazzld/storefront-accounts/internal/redact"
	"github.com/phrazzld/storefront-accounts/internal/service/auth"
	"github.com/phrazzld/storefront-accounts/internal/store"
	"golang.org/x/sync/errgroup"
)

// addressFetchConcurrency bounds the parallel address lookups in GetAllUsers.
const addressFetchConcurrency = 8

// passwordRules are bcrypt's input limits.
const passwordRules = "required,max=72"

// AccountService runs the account lifecycle: registration, email
// verification, password reset, role assignment and user retrieval.
// Every returned error is an *AppError.
type AccountService interface {
	// CreateUser registers a credentials user, creates its account record,
	// stores a verification token and sends the verification email. All
	// steps commit together or not at all.
	CreateUser(ctx context.Context, input CreateUserInput, password string) (*PublicUser, error)

	// ResendEmailAddressVerification issues a fresh verification token to the
	// user holding token and emails it. Expired tokens are accepted.
	ResendEmailAddressVerification(ctx context.Context, token string) error

	// SendPasswordResetRequest issues a reset token for a credentials user and
	// emails a reset link.
	SendPasswordResetRequest(ctx context.Context, email string) error

	// ResetPassword replaces the user's password when token is the user's
	// current, unexpired reset token and both passwords match.
	ResetPassword(ctx context.Context, email, token, newPassword, confirmPassword string) error

	// VerifyEmailAddress marks the user holding token as verified.
	VerifyEmailAddress(ctx context.Context, token string) error

	// SetUserRoles replaces the user's role set and returns the updated view.
	SetUserRoles(ctx context.Context, userID uuid.UUID, roles []string) (*PublicUser, error)

	// GetUserByID returns the public view of one user, addresses included.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*PublicUser, error)

	// GetAllUsers returns every user in store order, addresses included.
	GetAllUsers(ctx context.Context) ([]*PublicUser, error)
}

// AccountServiceDeps holds the collaborators and settings of the account
// service. Emitter is optional; every other field is required.
type AccountServiceDeps struct {
	DB        *sql.DB
	Users     store.UserStore
	Accounts  store.AccountStore
	Addresses store.AddressStore
	Hasher    auth.PasswordHasher
	Tokens    auth.TokenService
	Sender    mailer.Sender
	Emitter   events.EventEmitter
	Logger    *slog.Logger

	FromAddress           string
	BaseURL               string
	VerificationTokenTTL  time.Duration
	PasswordResetTokenTTL time.Duration
}

func (d AccountServiceDeps) validate() error {
	var missing []string
	if d.DB == nil {
		missing = append(missing, "DB")
	}
	if d.Users == nil {
		missing = append(missing, "Users")
	}
	if d.Accounts == nil {
		missing = append(missing, "Accounts")
	}
	if d.Addresses == nil {
		missing = append(missing, "Addresses")
	}
	if d.Hasher == nil {
		missing = append(missing, "Hasher")
	}
	if d.Tokens == nil {
		missing = append(missing, "Tokens")
	}
	if d.Sender == nil {
		missing = append(missing, "Sender")
	}
	if d.FromAddress == "" {
		missing = append(missing, "FromAddress")
	}
	if d.BaseURL == "" {
		missing = append(missing, "BaseURL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("account service: missing dependencies %v", missing)
	}
	if d.VerificationTokenTTL <= 0 || d.PasswordResetTokenTTL <= 0 {
		return errors.New("account service: token TTLs must be positive")
	}
	return nil
}

type accountService struct {
	db        *sql.DB
	users     store.UserStore
	accounts  store.AccountStore
	addresses store.AddressStore
	hasher    auth.PasswordHasher
	tokens    auth.TokenService
	sender    mailer.Sender
	emitter   events.EventEmitter
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time

	fromAddress     string
	baseURL         string
	verificationTTL time.Duration
	resetTTL        time.Duration
}

var _ AccountService = (*accountService)(nil)

// NewAccountService creates an AccountService from deps.
func NewAccountService(deps AccountServiceDeps) (AccountService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &accountService{
		db:              deps.DB,
		users:           deps.Users,
		accounts:        deps.Accounts,
		addresses:       deps.Addresses,
		hasher:          deps.Hasher,
		tokens:          deps.Tokens,
		sender:          deps.Sender,
		emitter:         deps.Emitter,
		logger:          log.With("component", "account_service"),
		validate:        validator.New(),
		now:             time.Now,
		fromAddress:     deps.FromAddress,
		baseURL:         deps.BaseURL,
		verificationTTL: deps.VerificationTokenTTL,
		resetTTL:        deps.PasswordResetTokenTTL,
	}, nil
}

// CreateUser implements AccountService.CreateUser
func (s *accountService) CreateUser(
	ctx context.Context,
	input CreateUserInput,
	password string,
) (*PublicUser, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.validate.Struct(input); err != nil {
		return nil, newBadRequest("invalid registration input", "The provided user details are invalid.", err)
	}
	if err := s.validate.Var(password, passwordRules); err != nil {
		return nil, newBadRequest("invalid password", "The provided password is invalid.", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, newServerError("failed to hash password", err)
	}

	record, err := newUserRecord(input, hashed)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, newBadRequest("invalid user record", "The provided user details are invalid.", err)
		}
		return nil, newServerError("failed to build user record", err)
	}

	var created *domain.User
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		users := s.users.WithTx(tx)
		accounts := s.accounts.WithTx(tx)

		userID, err := users.Create(ctx, record)
		if err != nil {
			if errors.Is(err, store.ErrEmailExists) {
				return newBadRequest("email already registered",
					"An account with this email address already exists.", err)
			}
			return newServerError("failed to create user", err)
		}
		if userID == uuid.Nil {
			return newServerError("user creation returned no id", nil)
		}

		account, err := domain.NewCredentialsAccount(userID)
		if err != nil {
			return newServerError("failed to build credentials account", err)
		}
		accountID, err := accounts.Create(ctx, account)
		if err != nil {
			return newServerError("failed to create credentials account", err)
		}
		if accountID == uuid.Nil {
			return newServerError("account creation returned no id", nil)
		}

		token, err := s.tokens.CreateToken(ctx, userID, record.Email, auth.PurposeVerifyEmail, s.verificationTTL)
		if err != nil {
			return newServerError("failed to create verification token", err)
		}

		created, err = users.GetByID(ctx, userID)
		if err != nil {
			return newServerError("failed to re-read created user", err)
		}
		if err := users.Update(ctx, userID, store.UserPatch{Token: &token}); err != nil {
			return newServerError("failed to store verification token", err)
		}
		created.Token = token

		return s.sendVerification(ctx, created, token)
	})
	if err != nil {
		appErr := asAppError(err, "user registration transaction failed")
		if appErr.Kind == KindServerError {
			log.Error("user registration failed",
				"error", redact.Error(appErr),
				"email", redact.Email(input.Email))
		}
		return nil, appErr
	}

	log.Info("user registered", "user_id", created.ID)
	s.emit(ctx, events.TypeUserRegistered, created.ID, map[string]string{
		"email":    created.Email,
		"provider": domain.ProviderCredentials,
	})

	return toPublicUser(created, nil), nil
}

// ResendEmailAddressVerification implements AccountService.ResendEmailAddressVerification
func (s *accountService) ResendEmailAddressVerification(ctx context.Context, token string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.findUserByToken(ctx, token)
	if err != nil {
		return err
	}

	fresh, err := s.tokens.CreateToken(ctx, user.ID, user.Email, auth.PurposeVerifyEmail, s.verificationTTL)
	if err != nil {
		return newServerError("failed to create verification token", err)
	}
	if err := s.users.Update(ctx, user.ID, store.UserPatch{Token: &fresh}); err != nil {
		return newServerError("failed to store verification token", err)
	}
	if err := s.sendVerification(ctx, user, fresh); err != nil {
		return err
	}

	log.Info("verification email resent", "user_id", user.ID)
	s.emit(ctx, events.TypeVerificationResent, user.ID, nil)
	return nil
}

// SendPasswordResetRequest implements AccountService.SendPasswordResetRequest
func (s *accountService) SendPasswordResetRequest(ctx context.Context, email string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.resolveCredentialsUser(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.tokens.CreateToken(ctx, user.ID, user.Email, auth.PurposeResetPassword, s.resetTTL)
	if err != nil {
		return newServerError("failed to create password reset token", err)
	}
	if err := s.users.Update(ctx, user.ID, store.UserPatch{PasswordResetToken: &token}); err != nil {
		return newServerError("failed to store password reset token", err)
	}

	msg, err := renderMessage(s.fromAddress, user.Email, subjectPasswordReset, passwordResetTemplate,
		notificationData{
			Name:     user.Name,
			Link:     resetPasswordLink(s.baseURL, token, user.Email),
			Validity: humanDuration(s.resetTTL),
		})
	if err != nil {
		return newServerError("failed to render password reset email", err)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return newServerError("failed to send password reset email", err)
	}

	log.Info("password reset requested", "user_id", user.ID)
	s.emit(ctx, events.TypePasswordResetRequested, user.ID, nil)
	return nil
}

// ResetPassword implements AccountService.ResetPassword
func (s *accountService) ResetPassword(
	ctx context.Context,
	email, token, newPassword, confirmPassword string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.resolveCredentialsUser(ctx, email)
	if err != nil {
		return err
	}

	claims, err := s.tokens.ValidateToken(ctx, token, user.Email, auth.PurposeResetPassword)
	if err != nil {
		return newBadRequest("password reset token rejected", MsgTokenInvalid, err)
	}
	if claims.SubjectID != user.ID {
		return newBadRequest("password reset token issued for another user", MsgTokenInvalid, nil)
	}
	if user.PasswordResetToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(user.PasswordResetToken)) != 1 {
		return newBadRequest("password reset token is not the outstanding one", MsgTokenInvalid, nil)
	}

	if newPassword != confirmPassword {
		return newBadRequest("password confirmation mismatch", MsgPasswordsMismatch, nil)
	}
	if err := s.validate.Var(newPassword, passwordRules); err != nil {
		return newBadRequest("invalid new password", "The provided password is invalid.", err)
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return newServerError("failed to hash password", err)
	}

	cleared := ""
	if err := s.users.Update(ctx, user.ID, store.UserPatch{
		HashedPassword:     &hashed,
		PasswordResetToken: &cleared,
	}); err != nil {
		return newServerError("failed to store new password", err)
	}

	msg, err := renderMessage(s.fromAddress, user.Email, subjectPasswordSaved, passwordChangedTemplate,
		notificationData{Name: user.Name})
	if err != nil {
		return newServerError("failed to render password changed email", err)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return newServerError("failed to send password changed email", err)
	}

	log.Info("password reset", "user_id", user.ID)
	s.emit(ctx, events.TypePasswordReset, user.ID, nil)
	return nil
}

// VerifyEmailAddress implements AccountService.VerifyEmailAddress
func (s *accountService) VerifyEmailAddress(ctx context.Context, token string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.findUserByToken(ctx, token)
	if err != nil {
		return err
	}

	claims, err := s.tokens.ValidateToken(ctx, token, user.Email, auth.PurposeVerifyEmail)
	if err != nil {
		return newBadRequest("verification token rejected", MsgTokenInvalid, err)
	}
	if claims.SubjectID != user.ID {
		return newBadRequest("verification token issued for another user", MsgTokenInvalid, nil)
	}

	verifiedAt := s.now().UTC()
	if err := s.users.Update(ctx, user.ID, store.UserPatch{EmailVerified: &verifiedAt}); err != nil {
		return newServerError("failed to mark email verified", err)
	}

	log.Info("email verified", "user_id", user.ID)
	s.emit(ctx, events.TypeEmailVerified, user.ID, nil)
	return nil
}

// SetUserRoles implements AccountService.SetUserRoles
func (s *accountService) SetUserRoles(
	ctx context.Context,
	userID uuid.UUID,
	roles []string,
) (*PublicUser, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}

	normalized := domain.NormalizeRoles(roles)
	if err := s.users.Update(ctx, userID, store.UserPatch{Roles: normalized}); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, newNotFound("user disappeared before role update", err)
		}
		return nil, newServerError("failed to update roles", err)
	}

	log.Info("user roles replaced", "user_id", userID, "roles", normalized)
	s.emit(ctx, events.TypeRolesChanged, userID, map[string][]string{"roles": normalized})

	return s.GetUserByID(ctx, userID)
}

// GetUserByID implements AccountService.GetUserByID
func (s *accountService) GetUserByID(ctx context.Context, userID uuid.UUID) (*PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	addresses, err := s.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, newServerError("failed to load addresses", err)
	}

	return toPublicUser(user, addresses), nil
}

// GetAllUsers implements AccountService.GetAllUsers
// Address lookups run concurrently; the first failure cancels the rest and
// fails the whole call.
func (s *accountService) GetAllUsers(ctx context.Context) ([]*PublicUser, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, newServerError("failed to list users", err)
	}

	addressSets := make([][]domain.Address, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(addressFetchConcurrency)
	for i, user := range users {
		g.Go(func() error {
			addresses, err := s.addresses.ListByUserID(gctx, user.ID)
			if err != nil {
				return fmt.Errorf("addresses for user %s: %w", user.ID, err)
			}
			addressSets[i] = addresses
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, newServerError("failed to load addresses", err)
	}

	result := make([]*PublicUser, len(users))
	for i, user := range users {
		result[i] = toPublicUser(user, addressSets[i])
	}

	log.Debug("listed users", "count", len(result))
	return result, nil
}

func (s *accountService) getUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, newNotFound(fmt.Sprintf("user %s not found", userID), err)
		}
		return nil, newServerError("failed to load user", err)
	}
	return user, nil
}

// findUserByToken returns the user currently holding a verification token.
func (s *accountService) findUserByToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, newBadRequest("empty verification token", MsgTokenInvalid, nil)
	}

	matches, err := s.users.Find(ctx, store.UserFilter{Token: token})
	if err != nil {
		return nil, newServerError("failed to look up user by token", err)
	}
	if len(matches) == 0 {
		return nil, newBadRequest("no user holds verification token", MsgTokenInvalid, nil)
	}
	return matches[0], nil
}

// resolveCredentialsUser finds the user for email and checks that it signs
// in with a password.
func (s *accountService) resolveCredentialsUser(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, newBadRequest("empty email", "Email address is required.", nil)
	}

	matches, err := s.users.Find(ctx, store.UserFilter{Email: email})
	if err != nil {
		return nil, newServerError("failed to look up user by email", err)
	}
	if len(matches) == 0 {
		return nil, newBadRequest("no user with email", "No account is registered with this email address.", nil)
	}
	user := matches[0]

	accounts, err := s.accounts.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, newServerError("failed to look up account", err)
	}
	if len(accounts) == 0 {
		return nil, newServerError(fmt.Sprintf("user %s has no account", user.ID), store.ErrAccountNotFound)
	}

	account := accounts[0]
	for _, candidate := range accounts {
		if candidate.IsCredentials() {
			account = candidate
			break
		}
	}
	if !account.IsCredentials() {
		return nil, newBadRequest(
			fmt.Sprintf("password reset for %s account", account.Provider),
			"Password reset is not available for accounts that sign in with "+account.Provider+".",
			nil)
	}

	return user, nil
}

func (s *accountService) sendVerification(ctx context.Context, user *domain.User, token string) error {
	msg, err := renderMessage(s.fromAddress, user.Email, subjectVerifyEmail, verifyEmailTemplate,
		notificationData{
			Name: user.Name,
			Link: verifyEmailLink(s.baseURL, token),
		})
	if err != nil {
		return newServerError("failed to render verification email", err)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return newServerError("failed to send verification email", err)
	}
	return nil
}

// emit publishes a lifecycle event. Failures are logged and never change the
// operation's result.
func (s *accountService) emit(ctx context.Context, eventType string, userID uuid.UUID, payload interface{}) {
	if s.emitter == nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.NewAccountEvent(eventType, userID, payload)
	if err != nil {
		log.Warn("failed to build account event", "error", err, "event_type", eventType)
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("failed to emit account event",
			"error", redact.Error(err),
			"event_type", eventType,
			"user_id", userID)
	}
}
