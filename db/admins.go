package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateAdmin stores an admin with an already-hashed password
func CreateAdmin(ctx context.Context, username, passwordHash, role string) (*Admin, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalid)
	}
	if role == "" {
		role = "admin"
	}

	a := &Admin{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash, Role: role}
	err := PostgresPool.QueryRow(ctx, `
		INSERT INTO admins (id, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, a.ID, a.Username, a.PasswordHash, a.Role).Scan(&a.CreatedAt)
	if isUniqueViolation(err, "") {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	return a, nil
}

// GetAdminByUsername looks an admin up for login
func GetAdminByUsername(ctx context.Context, username string) (*Admin, error) {
	return getAdmin(ctx, `WHERE username = $1`, strings.ToLower(strings.TrimSpace(username)))
}

func GetAdmin(ctx context.Context, id string) (*Admin, error) {
	return getAdmin(ctx, `WHERE id = $1`, id)
}

func getAdmin(ctx context.Context, where string, arg string) (*Admin, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	var a Admin
	err := PostgresPool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, last_login_at, created_at
		FROM admins `+where, arg).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.LastLoginAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &a, nil
}

// TouchAdminLogin records a successful login
func TouchAdminLogin(ctx context.Context, id string) error {
	if PostgresPool == nil {
		return ErrNotInitialized
	}
	if _, err := PostgresPool.Exec(ctx, `UPDATE admins SET last_login_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
