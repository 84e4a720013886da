package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sitaraServer/config"
	"sitaraServer/game"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const appSettingsKey = "app"

// AppSettings is the admin-editable configuration stored as JSONB.
type AppSettings struct {
	Rates         game.Rates      `json:"rates"`
	MinBet        decimal.Decimal `json:"minBet"`
	MaxBet        decimal.Decimal `json:"maxBet"`
	MinDeposit    decimal.Decimal `json:"minDeposit"`
	MinWithdrawal decimal.Decimal `json:"minWithdrawal"`
	SupportPhone  string          `json:"supportPhone"`
	WhatsApp      string          `json:"whatsApp"`
	UPIID         string          `json:"upiId"`
	AppVersion    string          `json:"appVersion"`
	Maintenance   bool            `json:"maintenance"`
	NoticeText    string          `json:"noticeText"`
}

func DefaultSettings() AppSettings {
	return AppSettings{
		Rates:         game.DefaultRates(),
		MinBet:        decimal.RequireFromString(config.DefaultMinBet),
		MaxBet:        decimal.RequireFromString(config.DefaultMaxBet),
		MinDeposit:    decimal.RequireFromString(config.DefaultMinDeposit),
		MinWithdrawal: decimal.RequireFromString(config.DefaultMinWithdrawal),
	}
}

// withDefaults fills zero values from DefaultSettings so a partial JSONB
// document still yields usable limits.
func (s AppSettings) withDefaults() AppSettings {
	def := DefaultSettings()

	rates := make(game.Rates, len(game.GameTypes))
	for _, g := range game.GameTypes {
		rates[g] = s.Rates.For(g)
	}
	s.Rates = rates

	if !s.MinBet.IsPositive() {
		s.MinBet = def.MinBet
	}
	if !s.MaxBet.IsPositive() {
		s.MaxBet = def.MaxBet
	}
	if !s.MinDeposit.IsPositive() {
		s.MinDeposit = def.MinDeposit
	}
	if !s.MinWithdrawal.IsPositive() {
		s.MinWithdrawal = def.MinWithdrawal
	}
	return s
}

func (s AppSettings) Validate() error {
	if err := s.Rates.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for name, v := range map[string]decimal.Decimal{
		"minBet":        s.MinBet,
		"maxBet":        s.MaxBet,
		"minDeposit":    s.MinDeposit,
		"minWithdrawal": s.MinWithdrawal,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s cannot be negative", ErrInvalid, name)
		}
	}
	if s.MinBet.IsPositive() && s.MaxBet.IsPositive() && s.MinBet.GreaterThan(s.MaxBet) {
		return fmt.Errorf("%w: minBet exceeds maxBet", ErrInvalid)
	}
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadSettings(ctx context.Context, q querier) (AppSettings, error) {
	var raw []byte
	err := q.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, appSettingsKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return AppSettings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	var s AppSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return AppSettings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s.withDefaults(), nil
}

// GetSettings returns the stored settings merged over the defaults
func GetSettings(ctx context.Context) (AppSettings, error) {
	if PostgresPool == nil {
		return AppSettings{}, ErrNotInitialized
	}
	return loadSettings(ctx, PostgresPool)
}

// SaveSettings validates and upserts the settings document
func SaveSettings(ctx context.Context, s AppSettings, adminID string) (AppSettings, error) {
	if PostgresPool == nil {
		return AppSettings{}, ErrNotInitialized
	}

	if err := s.Validate(); err != nil {
		return AppSettings{}, err
	}
	s = s.withDefaults()
	s.SupportPhone = strings.TrimSpace(s.SupportPhone)
	s.WhatsApp = strings.TrimSpace(s.WhatsApp)
	s.UPIID = strings.TrimSpace(s.UPIID)

	raw, err := json.Marshal(s)
	if err != nil {
		return AppSettings{}, fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = PostgresPool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()
	`, appSettingsKey, raw, adminID)
	if err != nil {
		return AppSettings{}, fmt.Errorf("failed to save settings: %w", err)
	}

	return s, nil
}
