package db

import (
	"context"
	"fmt"
	"time"

	"sitaraServer/config"
)

// dayStart is midnight of date in loc.
func dayStart(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(config.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	return t, nil
}

// GetDashboardStats aggregates the admin dashboard counters. today is the
// current game date in the market timezone loc. Results are cached in
// Redis for a short TTL.
func GetDashboardStats(ctx context.Context, today string, loc *time.Location) (*DashboardStats, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	var cached DashboardStats
	if GetCachedJSON(ctx, config.RedisDashboardKey, &cached) {
		return &cached, nil
	}

	today, err := ParseDate(today)
	if err != nil {
		return nil, err
	}
	since, err := dayStart(today, loc)
	if err != nil {
		return nil, err
	}

	var s DashboardStats
	var walletFloat, stake, winnings, pendingSum string
	err = PostgresPool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE blocked),
			(SELECT COUNT(*) FROM users WHERE created_at >= $2),
			(SELECT COALESCE(SUM(balance), 0)::text FROM users),
			(SELECT COUNT(*) FROM bets WHERE bet_date = $1::date),
			(SELECT COALESCE(SUM(amount), 0)::text FROM bets WHERE bet_date = $1::date),
			(SELECT COALESCE(SUM(win_amount), 0)::text FROM bets WHERE bet_date = $1::date AND status = 'won'),
			(SELECT COUNT(*) FROM withdrawals WHERE status = 'pending'),
			(SELECT COALESCE(SUM(amount), 0)::text FROM withdrawals WHERE status = 'pending'),
			(SELECT COUNT(*) FROM payments WHERE status = 'pending'),
			(SELECT COUNT(*) FROM bazaars WHERE active)
	`, today, since).Scan(
		&s.TotalUsers,
		&s.BlockedUsers,
		&s.NewUsersToday,
		&walletFloat,
		&s.BetsToday,
		&stake,
		&winnings,
		&s.PendingWithdrawals,
		&pendingSum,
		&s.PendingPayments,
		&s.ActiveBazaars,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}

	s.WalletFloat = money(walletFloat)
	s.StakeToday = money(stake)
	s.WinningsToday = money(winnings)
	s.PendingWithdrawSum = money(pendingSum)
	s.GeneratedAt = time.Now().UTC()

	SetCachedJSON(ctx, config.RedisDashboardKey, s, config.DashboardCacheTTL)
	return &s, nil
}

// InvalidateDashboard drops the cached stats after a wallet-affecting action
func InvalidateDashboard(ctx context.Context) {
	InvalidateCache(ctx, config.RedisDashboardKey)
}
