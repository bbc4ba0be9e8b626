package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ledgerline/portal-iam/internal/core/domain"
	"github.com/ledgerline/portal-iam/internal/core/port"
	"github.com/ledgerline/portal-iam/internal/repository"
)

const uniqueViolation = "23505"

var userColumns = []string{
	"id",
	"email",
	"username",
	"first_name",
	"last_name",
	"address",
	"password_hash",
	"activated",
	"invite_token_hash",
	"invite_token_expires_at",
	"reset_token_hash",
	"reset_token_expires_at",
	"created_at",
	"last_password_change",
}

// UserRepository implements port.UserStore using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(db pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Address,
		&user.PasswordHash,
		&user.Activated,
		&user.InviteTokenHash,
		&user.InviteTokenExpires,
		&user.ResetTokenHash,
		&user.ResetTokenExpires,
		&user.CreatedAt,
		&user.LastPasswordChange,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user row. A unique violation on email or username
// surfaces as repository.ErrDuplicate so the caller can treat the constraint
// as the single authority on duplicates.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	query := r.builder.Insert("portal.users").
		Columns(
			"id",
			"email",
			"username",
			"first_name",
			"last_name",
			"address",
			"password_hash",
			"activated",
			"invite_token_hash",
			"invite_token_expires_at",
			"created_at",
		).
		Values(
			user.ID,
			user.Email,
			user.Username,
			user.FirstName,
			user.LastName,
			user.Address,
			user.PasswordHash,
			user.Activated,
			user.InviteTokenHash,
			user.InviteTokenExpires,
			user.CreatedAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *UserRepository) getBy(ctx context.Context, pred any) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("portal.users").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"username": username})
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"email": email})
}

// GetByEmailOrUsername retrieves a user matching either value.
func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, email, username string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Or{
		squirrel.Eq{"email": email},
		squirrel.Eq{"username": username},
	})
}

// UpdateProfile overwrites the mutable profile fields in a single statement.
// A unique violation on the new email or username surfaces as
// repository.ErrDuplicate.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, email, username, passwordHash, firstName, lastName, address string) error {
	stmt, args, err := r.builder.Update("portal.users").
		Set("email", email).
		Set("username", username).
		Set("password_hash", passwordHash).
		Set("first_name", firstName).
		Set("last_name", lastName).
		Set("address", address).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update profile sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("update profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetInviteToken replaces the invite token hash and expiry. Any previously
// issued invite token stops matching as a side effect of the overwrite.
func (r *UserRepository) SetInviteToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	return r.setToken(ctx, id, "invite_token_hash", "invite_token_expires_at", tokenHash, expiresAt)
}

// SetResetToken replaces the reset token hash and expiry.
func (r *UserRepository) SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	return r.setToken(ctx, id, "reset_token_hash", "reset_token_expires_at", tokenHash, expiresAt)
}

func (r *UserRepository) setToken(ctx context.Context, id, hashCol, expiresCol, tokenHash string, expiresAt time.Time) error {
	stmt, args, err := r.builder.Update("portal.users").
		Set(hashCol, tokenHash).
		Set(expiresCol, expiresAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ConsumeInviteToken atomically activates the account holding a live invite
// token, setting the password and clearing the token in the same statement.
// Two concurrent consumers cannot both succeed: the second UPDATE matches
// zero rows and gets repository.ErrNotFound.
func (r *UserRepository) ConsumeInviteToken(ctx context.Context, tokenHash string, passwordHash string, now time.Time) (*domain.User, error) {
	stmt, args, err := r.builder.Update("portal.users").
		Set("password_hash", passwordHash).
		Set("activated", true).
		Set("last_password_change", now).
		Set("invite_token_hash", nil).
		Set("invite_token_expires_at", nil).
		Where(squirrel.Eq{"invite_token_hash": tokenHash}).
		Where(squirrel.Gt{"invite_token_expires_at": now}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build consume invite token sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// ConsumeResetToken atomically sets the password for the account holding a
// live reset token and clears the token in the same statement.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, passwordHash string, now time.Time) (*domain.User, error) {
	stmt, args, err := r.builder.Update("portal.users").
		Set("password_hash", passwordHash).
		Set("last_password_change", now).
		Set("reset_token_hash", nil).
		Set("reset_token_expires_at", nil).
		Where(squirrel.Eq{"reset_token_hash": tokenHash}).
		Where(squirrel.Gt{"reset_token_expires_at": now}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build consume reset token sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

func columnList() string {
	return strings.Join(userColumns, ", ")
}

var _ port.UserStore = (*UserRepository)(nil)
