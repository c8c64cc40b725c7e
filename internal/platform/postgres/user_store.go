package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
	"github.com/phrazzld/storefront-accounts/internal/platform/logger"
	"github.com/phrazzld/storefront-accounts/internal/redact"
	"github.com/phrazzld/storefront-accounts/internal/store"
)

const userColumns = `id, name, email, image, hashed_password,
	COALESCE(token, ''), COALESCE(password_reset_token, ''),
	email_verified, roles, created_at, updated_at`

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

// WithTx implements store.UserStore.WithTx
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

// Create implements store.UserStore.Create
// The ID is generated by the database and returned.
// Returns store.ErrEmailExists if the email is already registered.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during create", slog.String("error", err.Error()))
		return uuid.Nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	roles, err := encodeRoles(user.Roles)
	if err != nil {
		return uuid.Nil, err
	}

	now := time.Now().UTC()
	createdAt, updatedAt := user.CreatedAt, user.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO users (name, email, image, hashed_password, token, password_reset_token,
			email_verified, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)
		RETURNING id
	`

	var id uuid.UUID
	err = s.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.Image,
		user.HashedPassword,
		user.Token,
		user.PasswordResetToken,
		user.EmailVerified,
		roles,
		createdAt,
		updatedAt,
	).Scan(&id)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrEmailExists) {
			log.Debug("user create rejected: email already registered",
				slog.String("email", redact.Email(user.Email)))
			return uuid.Nil, mapped
		}
		log.Error("failed to create user", slog.String("error", redact.Error(err)))
		return uuid.Nil, mapped
	}

	log.Info("user created", slog.String("user_id", id.String()))
	return id, nil
}

// GetByID implements store.UserStore.GetByID
// Returns store.ErrUserNotFound if the user does not exist.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user not found", slog.String("user_id", id.String()))
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to get user by ID",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", id.String()))
		return nil, MapError(err)
	}

	return user, nil
}

// Find implements store.UserStore.Find
// Email matches case-insensitively; tokens match exactly.
func (s *PostgresUserStore) Find(ctx context.Context, filter store.UserFilter) ([]*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if filter.IsEmpty() {
		return []*domain.User{}, nil
	}

	var (
		conditions []string
		args       []interface{}
	)
	if filter.Email != "" {
		args = append(args, filter.Email)
		conditions = append(conditions, fmt.Sprintf("LOWER(email) = LOWER($%d)", len(args)))
	}
	if filter.Token != "" {
		args = append(args, filter.Token)
		conditions = append(conditions, fmt.Sprintf("token = $%d", len(args)))
	}
	if filter.PasswordResetToken != "" {
		args = append(args, filter.PasswordResetToken)
		conditions = append(conditions, fmt.Sprintf("password_reset_token = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at, id`

	users, err := s.queryUsers(ctx, query, args...)
	if err != nil {
		log.Error("failed to find users", slog.String("error", redact.Error(err)))
		return nil, err
	}
	return users, nil
}

// List implements store.UserStore.List
func (s *PostgresUserStore) List(ctx context.Context) ([]*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`

	users, err := s.queryUsers(ctx, query)
	if err != nil {
		log.Error("failed to list users", slog.String("error", redact.Error(err)))
		return nil, err
	}

	log.Debug("users listed", slog.Int("count", len(users)))
	return users, nil
}

// Update implements store.UserStore.Update
// Only the fields set in the patch are written; updated_at is always refreshed.
// Returns store.ErrUserNotFound if the user does not exist.
func (s *PostgresUserStore) Update(ctx context.Context, id uuid.UUID, patch store.UserPatch) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		sets []string
		args []interface{}
	)
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	setNullable := func(column string, value string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = NULLIF($%d, '')", column, len(args)))
	}

	if patch.HashedPassword != nil {
		set("hashed_password", *patch.HashedPassword)
	}
	if patch.Token != nil {
		setNullable("token", *patch.Token)
	}
	if patch.PasswordResetToken != nil {
		setNullable("password_reset_token", *patch.PasswordResetToken)
	}
	if patch.EmailVerified != nil {
		set("email_verified", patch.EmailVerified.UTC())
	}
	if patch.Roles != nil {
		roles, err := encodeRoles(patch.Roles)
		if err != nil {
			return err
		}
		set("roles", roles)
	}
	set("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update user",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrUserNotFound); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("user not found for update", slog.String("user_id", id.String()))
		}
		return err
	}

	log.Debug("user updated",
		slog.String("user_id", id.String()),
		slog.Int("columns", len(sets)))
	return nil
}

func (s *PostgresUserStore) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user     domain.User
		verified sql.NullTime
		roles    []byte
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Image,
		&user.HashedPassword,
		&user.Token,
		&user.PasswordResetToken,
		&verified,
		&roles,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if verified.Valid {
		t := verified.Time
		user.EmailVerified = &t
	}
	if user.Roles, err = decodeRoles(roles); err != nil {
		return nil, err
	}
	return &user, nil
}

func encodeRoles(roles []string) ([]byte, error) {
	encoded, err := json.Marshal(domain.NormalizeRoles(roles))
	if err != nil {
		return nil, store.NewStoreError("user", "encode", "invalid roles", err)
	}
	return encoded, nil
}

func decodeRoles(raw []byte) ([]string, error) {
	roles := []string{}
	if len(raw) == 0 {
		return roles, nil
	}
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil, store.NewStoreError("user", "scan", "invalid roles column", err)
	}
	return roles, nil
}
