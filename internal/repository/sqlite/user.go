package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mahir/carmarket/internal/apperror"
	"github.com/mahir/carmarket/internal/model"
	"github.com/mahir/carmarket/internal/repository"
)

// Compile-time check that *UserDB implements repository.UserRepository.
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB implements repository.UserRepository on the shared connection.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, email, password_hash, username, profile_img, verified, created_at, updated_at`

// Create inserts a new account. The UNIQUE constraint on email is the
// authoritative duplicate check — a concurrent signup race resolves here,
// not in the service's pre-check, and surfaces as a conflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = newObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, username, profile_img, verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Username,
		user.ProfileImg,
		user.Verified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user already exist!", "USER_ALREADY_EXISTS")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by internal id.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id,
		apperror.NotFound("No user found", "USER_NOT_FOUND"))
}

// GetByEmail retrieves a user by email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email,
		apperror.NotFound("user not found", "USER_NOT_FOUND"))
}

func (u *UserDB) getOne(ctx context.Context, query, arg string, notFound error) (*model.User, error) {
	var user model.User

	err := u.conn.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Username,
		&user.ProfileImg,
		&user.Verified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	return &user, nil
}

// UpsertByEmail backs the federated sign-in: first Google login for an
// email inserts a verified account with no password hash; later logins (or
// a Google login on top of a password signup) keep the existing row and id,
// mark it verified, and refresh the profile image.
func (u *UserDB) UpsertByEmail(ctx context.Context, user *model.User) error {
	existing, err := u.GetByEmail(ctx, user.Email)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("sqlite: looking up user by email %s: %w", user.Email, err)
	}

	if existing != nil {
		user.ID = existing.ID
		user.PasswordHash = existing.PasswordHash
		user.Username = existing.Username
		if user.ProfileImg == "" {
			user.ProfileImg = existing.ProfileImg
		}
		user.Verified = true
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = time.Now().UTC()

		_, err = u.conn.ExecContext(ctx,
			`UPDATE users SET profile_img = ?, verified = 1, updated_at = ? WHERE id = ?`,
			user.ProfileImg,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	user.Verified = true
	return u.Create(ctx, user)
}

// ExistsByEmail reports whether an account with the email exists.
func (u *UserDB) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := u.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ?`, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking email %s: %w", email, err)
	}
	return count > 0, nil
}

// isUniqueViolation detects SQLite's UNIQUE constraint error. The pure-Go
// driver returns it as a plain error, so the message is the only
// discriminator available.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
