package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implements repository.UserRepository on the shared connection.
type UserRepo struct {
	conn *sql.DB
}

// NewUserRepo creates the user repository over an open database.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{conn: db.conn}
}

const userColumns = `id, email, display_name, profile_url, role, is_admin,
	password_hash, theme, font_size, temp_premium, temp_premium_expiry,
	created_at, updated_at`

// Create inserts a new profile document. The caller supplies the id (it is
// the identity subject, not a generated value) so OAuth and password
// accounts share the same code path.
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.DisplayName,
		user.ProfileURL,
		string(user.Role),
		user.IsAdmin,
		user.PasswordHash,
		user.Settings.Theme,
		user.Settings.FontSize,
		user.TemporaryPremiumAccess,
		user.TemporaryPremiumExpiry,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.ID, err)
	}

	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return user, nil
}

// Update writes the whole profile and refreshes updatedAt. Role and is_admin
// are written together; the model's SetRole is the only producer of those
// two fields, which keeps them from ever disagreeing.
func (r *UserRepo) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	result, err := r.conn.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, display_name = ?, profile_url = ?, role = ?, is_admin = ?,
		     password_hash = ?, theme = ?, font_size = ?,
		     temp_premium = ?, temp_premium_expiry = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email,
		user.DisplayName,
		user.ProfileURL,
		string(user.Role),
		user.IsAdmin,
		user.PasswordHash,
		user.Settings.Theme,
		user.Settings.FontSize,
		user.TemporaryPremiumAccess,
		user.TemporaryPremiumExpiry,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	return checkAffected(result, "user", user.ID)
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return checkAffected(result, "user", id)
}

// List returns every profile, newest first. Admin surface only.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, 16)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)

	err := s.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.ProfileURL,
		&role,
		&u.IsAdmin,
		&u.PasswordHash,
		&u.Settings.Theme,
		&u.Settings.FontSize,
		&u.TemporaryPremiumAccess,
		&u.TemporaryPremiumExpiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = model.Role(role)
	return &u, nil
}
