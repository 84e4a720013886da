package db

import (
	"context"
	"fmt"
	"time"

	"sitaraServer/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// PostgresPool is the global PostgreSQL connection pool
	PostgresPool *pgxpool.Pool
)

// InitPostgres initializes the PostgreSQL connection pool and schema
func InitPostgres(databaseURL string) error {
	zap.S().Info("🔌 Connecting to PostgreSQL...")

	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.PostgresConnectTimeout)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = config.PostgresMaxConns
	poolConfig.MinConns = config.PostgresMinConns
	poolConfig.MaxConnLifetime = config.PostgresMaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	PostgresPool = pool
	zap.S().Info("✅ PostgreSQL connected successfully")

	if err := InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// ClosePostgres closes the PostgreSQL connection pool
func ClosePostgres() {
	if PostgresPool != nil {
		zap.S().Info("🔌 Closing PostgreSQL connection...")
		PostgresPool.Close()
		PostgresPool = nil
	}
}

// InitSchema creates the database tables if they don't exist
func InitSchema(ctx context.Context) error {
	if PostgresPool == nil {
		return ErrNotInitialized
	}

	zap.S().Info("📋 Initializing database schema...")

	for _, table := range schema {
		if _, err := PostgresPool.Exec(ctx, table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	zap.S().Info("✅ Database schema initialized")
	return nil
}

var schema = []struct {
	name string
	ddl  string
}{
	{"admins", `
	CREATE TABLE IF NOT EXISTS admins (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'admin',
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`},
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		balance NUMERIC(14,2) NOT NULL DEFAULT 0,
		blocked BOOLEAN NOT NULL DEFAULT FALSE,
		fcm_token TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT users_phone_key UNIQUE (phone)
	);

	CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at DESC);
	`},
	{"bazaars", `
	CREATE TABLE IF NOT EXISTS bazaars (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		open_time TEXT NOT NULL,
		close_time TEXT NOT NULL,
		closed_weekdays INT[] NOT NULL DEFAULT '{}',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT bazaars_name_key UNIQUE (name)
	);
	`},
	{"results", `
	CREATE TABLE IF NOT EXISTS results (
		bazaar_id TEXT NOT NULL REFERENCES bazaars(id) ON DELETE CASCADE,
		result_date DATE NOT NULL,
		open_panna TEXT NOT NULL DEFAULT '',
		close_panna TEXT NOT NULL DEFAULT '',
		open_declared_at TIMESTAMPTZ,
		close_declared_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (bazaar_id, result_date)
	);

	CREATE INDEX IF NOT EXISTS idx_results_date ON results(result_date DESC);
	`},
	{"bets", `
	CREATE TABLE IF NOT EXISTS bets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		bazaar_id TEXT NOT NULL REFERENCES bazaars(id),
		bet_date DATE NOT NULL,
		game_type TEXT NOT NULL,
		session TEXT NOT NULL,
		settles_on TEXT NOT NULL,
		number TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		status TEXT NOT NULL DEFAULT 'pending',
		win_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		settled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_bets_settlement ON bets(bazaar_id, bet_date, settles_on, status);
	CREATE INDEX IF NOT EXISTS idx_bets_user ON bets(user_id, created_at DESC);
	`},
	{"transactions", `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		type TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		balance_after NUMERIC(14,2) NOT NULL,
		reference_id TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
	`},
	{"withdrawals", `
	CREATE TABLE IF NOT EXISTS withdrawals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		method TEXT NOT NULL,
		account_details TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		admin_note TEXT NOT NULL DEFAULT '',
		processed_by TEXT NOT NULL DEFAULT '',
		processed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_user ON withdrawals(user_id, created_at DESC);
	`},
	{"payments", `
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		method TEXT NOT NULL,
		utr TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		admin_note TEXT NOT NULL DEFAULT '',
		processed_by TEXT NOT NULL DEFAULT '',
		processed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT payments_utr_key UNIQUE (utr)
	);

	CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_payments_user ON payments(user_id, created_at DESC);
	`},
	{"settings", `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		updated_by TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`},
	{"notifications", `
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
		sent_by TEXT NOT NULL DEFAULT '',
		pushed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at DESC);
	`},
}

/* =========================
   HELPERS
========================= */

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if PostgresPool == nil {
		return ErrNotInitialized
	}
	return pgx.BeginFunc(ctx, PostgresPool, fn)
}

// money converts a NUMERIC column selected as text.
func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// moneyArg renders an amount for a NUMERIC(14,2) parameter.
func moneyArg(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// dateString renders a DATE column in the API date layout.
func dateString(t time.Time) string {
	return t.Format(config.DateLayout)
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(config.DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	return t.Format(config.DateLayout), nil
}

// pageArgs clamps a limit/offset pair.
func pageArgs(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheckPostgres performs a PostgreSQL health check
func HealthCheckPostgres(ctx context.Context) error {
	if PostgresPool == nil {
		return ErrNotInitialized
	}
	return PostgresPool.Ping(ctx)
}
