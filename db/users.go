package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const userColumns = `id, name, phone, password_hash, balance::text, blocked, fcm_token, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var balance string
	if err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.PasswordHash, &balance, &u.Blocked, &u.FCMToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Balance = money(balance)
	return &u, nil
}

// CreateUser registers a user with a zero balance
func CreateUser(ctx context.Context, name, phone, passwordHash string) (*User, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	name = strings.TrimSpace(name)
	phone = NormalizePhone(phone)
	if name == "" || phone == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: name, phone and password are required", ErrInvalid)
	}

	u, err := scanUser(PostgresPool.QueryRow(ctx, `
		INSERT INTO users (id, name, phone, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		uuid.NewString(), name, phone, passwordHash))
	if isUniqueViolation(err, "users_phone_key") {
		return nil, ErrDuplicatePhone
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	zap.S().Infof("👤 Registered user %s (%s)", u.ID, u.Phone)
	return u, nil
}

// NormalizePhone strips spaces and dashes. Returns "" when the remainder
// is not 10 to 15 digits with an optional leading +.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			return ""
		}
	}
	out := b.String()
	digits := strings.TrimPrefix(out, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return ""
	}
	return out
}

func GetUser(ctx context.Context, id string) (*User, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	u, err := scanUser(PostgresPool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	u, err := scanUser(PostgresPool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, NormalizePhone(phone)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return u, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching query literally anywhere.
func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(query)) + "%"
}

// ListUsers searches by name or phone, newest first. It also returns the
// total match count for paging.
func ListUsers(ctx context.Context, query string, limit, offset int) ([]User, int, error) {
	if PostgresPool == nil {
		return nil, 0, ErrNotInitialized
	}

	limit, offset = pageArgs(limit, offset)
	pattern := containsPattern(query)

	var total int
	if err := PostgresPool.QueryRow(ctx, `
		SELECT COUNT(*) FROM users WHERE name ILIKE $1 OR phone LIKE $1
	`, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := PostgresPool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE name ILIKE $1 OR phone LIKE $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating users: %w", err)
	}

	return users, total, nil
}

// SetUserBlocked blocks or unblocks a user
func SetUserBlocked(ctx context.Context, id string, blocked bool) error {
	if PostgresPool == nil {
		return ErrNotInitialized
	}

	tag, err := PostgresPool.Exec(ctx, `UPDATE users SET blocked = $1, updated_at = NOW() WHERE id = $2`, blocked, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	zap.S().Infof("🔒 User %s blocked=%v", id, blocked)
	return nil
}

// SetFCMToken stores the device token used for direct pushes
func SetFCMToken(ctx context.Context, id, token string) error {
	if PostgresPool == nil {
		return ErrNotInitialized
	}

	tag, err := PostgresPool.Exec(ctx, `UPDATE users SET fcm_token = $1, updated_at = NOW() WHERE id = $2`, strings.TrimSpace(token), id)
	if err != nil {
		return fmt.Errorf("failed to update fcm token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AllUserBalances is used by the wallet mirror export
func AllUserBalances(ctx context.Context) (map[string]string, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	rows, err := PostgresPool.Query(ctx, `SELECT id, balance::text FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]string)
	for rows.Next() {
		var id, balance string
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances[id] = balance
	}
	return balances, rows.Err()
}
