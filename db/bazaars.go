package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"sitaraServer/config"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// BazaarInput is the writable part of a bazaar
type BazaarInput struct {
	Name           string `json:"name"`
	OpenTime       string `json:"openTime"`
	CloseTime      string `json:"closeTime"`
	ClosedWeekdays []int  `json:"closedWeekdays"`
	Active         *bool  `json:"active"`
	SortOrder      int    `json:"sortOrder"`
}

// Normalize trims and validates the input in place.
func (in *BazaarInput) Normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}

	for _, clock := range []*string{&in.OpenTime, &in.CloseTime} {
		t, err := time.Parse(config.ClockLayout, strings.TrimSpace(*clock))
		if err != nil {
			return fmt.Errorf("%w: times must be HH:MM", ErrInvalid)
		}
		*clock = t.Format(config.ClockLayout)
	}
	if in.OpenTime == in.CloseTime {
		return fmt.Errorf("%w: open and close times must differ", ErrInvalid)
	}

	seen := make(map[int]bool)
	days := make([]int, 0, len(in.ClosedWeekdays))
	for _, d := range in.ClosedWeekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: closed weekdays must be 0 (Sunday) to 6", ErrInvalid)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Ints(days)
	in.ClosedWeekdays = days
	return nil
}

const bazaarColumns = `id, name, open_time, close_time, closed_weekdays, active, sort_order, created_at, updated_at`

func scanBazaar(row pgx.Row) (*Bazaar, error) {
	var b Bazaar
	var days []int32
	if err := row.Scan(&b.ID, &b.Name, &b.OpenTime, &b.CloseTime, &days, &b.Active, &b.SortOrder, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ClosedWeekdays = make([]int, len(days))
	for i, d := range days {
		b.ClosedWeekdays[i] = int(d)
	}
	return &b, nil
}

func weekdayArg(days []int) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

// CreateBazaar inserts a new market
func CreateBazaar(ctx context.Context, in BazaarInput) (*Bazaar, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	b, err := scanBazaar(PostgresPool.QueryRow(ctx, `
		INSERT INTO bazaars (id, name, open_time, close_time, closed_weekdays, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+bazaarColumns,
		uuid.NewString(), in.Name, in.OpenTime, in.CloseTime, weekdayArg(in.ClosedWeekdays), active, in.SortOrder))
	if isUniqueViolation(err, "bazaars_name_key") {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create bazaar: %w", err)
	}

	InvalidateCache(ctx, config.RedisBazaarListKey)
	zap.S().Infof("🏪 Created bazaar %s (%s-%s)", b.Name, b.OpenTime, b.CloseTime)
	return b, nil
}

// UpdateBazaar replaces a bazaar's settings. A nil Active keeps the
// current flag.
func UpdateBazaar(ctx context.Context, id string, in BazaarInput) (*Bazaar, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	b, err := scanBazaar(PostgresPool.QueryRow(ctx, `
		UPDATE bazaars SET
			name = $2, open_time = $3, close_time = $4, closed_weekdays = $5,
			active = COALESCE($6, active), sort_order = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING `+bazaarColumns,
		id, in.Name, in.OpenTime, in.CloseTime, weekdayArg(in.ClosedWeekdays), in.Active, in.SortOrder))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if isUniqueViolation(err, "bazaars_name_key") {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update bazaar: %w", err)
	}

	InvalidateCache(ctx, config.RedisBazaarListKey)
	return b, nil
}

// DeleteBazaar removes a bazaar that has never taken a bet. Its results
// go with it.
func DeleteBazaar(ctx context.Context, id string) error {
	err := withTx(ctx, func(tx pgx.Tx) error {
		// PlaceBets holds the row FOR SHARE, so no bet can land after the check
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM bazaars WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock bazaar: %w", err)
		}

		var hasBets bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bets WHERE bazaar_id = $1)`, id).Scan(&hasBets); err != nil {
			return fmt.Errorf("failed to check bets: %w", err)
		}
		if hasBets {
			return ErrBazaarInUse
		}

		if _, err := tx.Exec(ctx, `DELETE FROM bazaars WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete bazaar: %w", err)
		}
		return nil
	})
	if isForeignKeyViolation(err) {
		return ErrBazaarInUse
	}
	if err != nil {
		return err
	}

	InvalidateCache(ctx, config.RedisBazaarListKey)
	zap.S().Infof("🗑️  Deleted bazaar %s", id)
	return nil
}

func GetBazaar(ctx context.Context, id string) (*Bazaar, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	b, err := scanBazaar(PostgresPool.QueryRow(ctx, `SELECT `+bazaarColumns+` FROM bazaars WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bazaar: %w", err)
	}
	return b, nil
}

// ListBazaars returns bazaars in display order
func ListBazaars(ctx context.Context, activeOnly bool) ([]Bazaar, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	rows, err := PostgresPool.Query(ctx, `
		SELECT `+bazaarColumns+` FROM bazaars
		WHERE NOT $1 OR active
		ORDER BY sort_order, open_time, name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query bazaars: %w", err)
	}
	defer rows.Close()

	bazaars := []Bazaar{}
	for rows.Next() {
		b, err := scanBazaar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bazaar: %w", err)
		}
		bazaars = append(bazaars, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bazaars: %w", err)
	}

	return bazaars, nil
}

// ListActiveBazaarsCached serves the client bazaar list from Redis when
// possible.
func ListActiveBazaarsCached(ctx context.Context) ([]Bazaar, error) {
	var cached []Bazaar
	if GetCachedJSON(ctx, config.RedisBazaarListKey, &cached) {
		return cached, nil
	}

	bazaars, err := ListBazaars(ctx, true)
	if err != nil {
		return nil, err
	}

	SetCachedJSON(ctx, config.RedisBazaarListKey, bazaars, config.BazaarListCacheTTL)
	return bazaars, nil
}
