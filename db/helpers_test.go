package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"sitaraServer/game"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyHelpers(t *testing.T) {
	assert.True(t, money("123.45").Equal(decimal.RequireFromString("123.45")))
	assert.True(t, money("garbage").IsZero())
	assert.Equal(t, "10.50", moneyArg(decimal.RequireFromString("10.5")))
	assert.Equal(t, "-3.00", moneyArg(decimal.NewFromInt(-3)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", d)

	for _, bad := range []string{"", "2024-3-5", "05-03-2024", "2024-02-30"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestDayStart(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	start, err := dayStart("2024-03-05", ist)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 18, 30, 0, 0, time.UTC), start.UTC())

	// a signup at 00:10 IST belongs to the new day, not the UTC one
	signup := time.Date(2024, 3, 4, 18, 40, 0, 0, time.UTC)
	assert.False(t, signup.Before(start))

	_, err = dayStart("2024-3-5", ist)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPageArgs(t *testing.T) {
	limit, offset := pageArgs(0, -5)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)

	limit, offset = pageArgs(1000, 20)
	assert.Equal(t, 200, limit)
	assert.Equal(t, 20, offset)
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"9876543210":       "9876543210",
		" 98765-43210 ":    "9876543210",
		"+91 98765 43210":  "+919876543210",
		"12345":            "",
		"98765abc10":       "",
		"9+876543210":      "",
		"1234567890123456": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestBazaarInputNormalize(t *testing.T) {
	in := BazaarInput{Name: "  Kalyan ", OpenTime: "9:05", CloseTime: "23:30", ClosedWeekdays: []int{6, 0, 6}}
	require.NoError(t, in.Normalize())
	assert.Equal(t, "Kalyan", in.Name)
	assert.Equal(t, "09:05", in.OpenTime)
	assert.Equal(t, []int{0, 6}, in.ClosedWeekdays)

	bad := []BazaarInput{
		{Name: "", OpenTime: "10:00", CloseTime: "11:00"},
		{Name: "X", OpenTime: "25:00", CloseTime: "11:00"},
		{Name: "X", OpenTime: "10:00", CloseTime: "10:00"},
		{Name: "X", OpenTime: "10:00", CloseTime: "11:00", ClosedWeekdays: []int{7}},
	}
	for i, b := range bad {
		assert.ErrorIs(t, b.Normalize(), ErrInvalid, fmt.Sprint(i))
	}
}

func TestValidateSlip(t *testing.T) {
	settings := DefaultSettings()
	ten := decimal.NewFromInt(10)

	t.Run("normalises sessionless bets", func(t *testing.T) {
		lines, total, err := validateSlip([]BetRequest{
			{GameType: game.JodiDigit, Session: game.SessionOpen, Number: "45", Amount: ten},
			{GameType: game.SingleDigit, Session: game.SessionOpen, Number: " 7", Amount: ten},
		}, settings)
		require.NoError(t, err)
		assert.Equal(t, game.SessionClose, lines[0].Session)
		assert.Equal(t, "7", lines[1].Number)
		assert.True(t, total.Equal(decimal.NewFromInt(20)))
	})

	t.Run("rejects bad lines", func(t *testing.T) {
		cases := []BetRequest{
			{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "12", Amount: ten},
			{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "1", Amount: decimal.NewFromInt(5)},
			{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "1", Amount: decimal.NewFromInt(20000)},
			{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "1", Amount: decimal.RequireFromString("10.555")},
		}
		for _, c := range cases {
			_, _, err := validateSlip([]BetRequest{c}, settings)
			assert.ErrorIs(t, err, ErrInvalid)
		}
	})

	t.Run("empty and oversized slips", func(t *testing.T) {
		_, _, err := validateSlip(nil, settings)
		assert.ErrorIs(t, err, ErrInvalid)

		big := make([]BetRequest, 51)
		for i := range big {
			big[i] = BetRequest{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "1", Amount: ten}
		}
		_, _, err = validateSlip(big, settings)
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestAppSettings(t *testing.T) {
	t.Run("partial document falls back to defaults", func(t *testing.T) {
		s := AppSettings{Rates: game.Rates{game.SingleDigit: decimal.NewFromInt(9)}}.withDefaults()
		assert.True(t, s.Rates[game.SingleDigit].Equal(decimal.NewFromInt(9)))
		assert.True(t, s.Rates[game.FullSangam].Equal(decimal.NewFromInt(10000)))
		assert.True(t, s.MinBet.Equal(decimal.NewFromInt(10)))
		assert.Len(t, s.Rates, len(game.GameTypes))
	})

	t.Run("validation", func(t *testing.T) {
		assert.NoError(t, DefaultSettings().Validate())

		s := DefaultSettings()
		s.MinBet = decimal.NewFromInt(500)
		s.MaxBet = decimal.NewFromInt(100)
		assert.ErrorIs(t, s.Validate(), ErrInvalid)

		s = DefaultSettings()
		s.Rates = game.Rates{game.JodiDigit: decimal.NewFromInt(-1)}
		assert.ErrorIs(t, s.Validate(), ErrInvalid)
	})
}

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505", ConstraintName: "payments_utr_key"})
	assert.True(t, isUniqueViolation(err, ""))
	assert.True(t, isUniqueViolation(err, "payments_utr_key"))
	assert.False(t, isUniqueViolation(err, "users_phone_key"))
	assert.False(t, isUniqueViolation(fmt.Errorf("other"), ""))
	assert.True(t, isForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
}

func TestResultFillDerived(t *testing.T) {
	r := Result{OpenPanna: "137"}
	r.fillDerived()
	assert.Equal(t, "1", r.OpenAnk)
	assert.Equal(t, "", r.Jodi)
	assert.Equal(t, "137-1*-***", r.Display)
}

func TestRedisHelpersWithoutClient(t *testing.T) {
	prev := RedisClient
	RedisClient = nil
	defer func() { RedisClient = prev }()

	ctx := context.Background()

	release, err := AcquireSettleLock(ctx, "b", "2024-01-01", "open")
	require.NoError(t, err)
	release()

	var v map[string]string
	assert.False(t, GetCachedJSON(ctx, "k", &v))
	SetCachedJSON(ctx, "k", map[string]string{"a": "b"}, 0)
	InvalidateCache(ctx, "k")

	assert.False(t, LoginLocked(ctx, "admin"))
	assert.Equal(t, 0, RecordLoginFailure(ctx, "admin"))
	assert.Error(t, HealthCheckRedis(ctx))
}

func TestNotInitialized(t *testing.T) {
	prev := PostgresPool
	PostgresPool = nil
	defer func() { PostgresPool = prev }()

	ctx := context.Background()

	_, err := GetUser(ctx, "x")
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = ListBazaars(ctx, false)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = AdjustWallet(ctx, "x", decimal.NewFromInt(1), "", "")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Error(t, HealthCheckPostgres(ctx))
}
