package db

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"sitaraServer/game"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgres connects to DATABASE_URL or skips the test.
func setupPostgres(t *testing.T) context.Context {
	t.Helper()

	_ = godotenv.Load("../.env")
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	if err := InitPostgres(url); err != nil {
		t.Fatalf("Failed to init postgres: %v", err)
	}
	t.Cleanup(ClosePostgres)

	return context.Background()
}

type fixture struct {
	user   *User
	bazaar *Bazaar
}

func newFixture(t *testing.T, ctx context.Context) *fixture {
	t.Helper()

	suffix := uuid.NewString()[:8]
	phone := fmt.Sprintf("9%09d", rand.Intn(1_000_000_000))

	user, err := CreateUser(ctx, "Test Player "+suffix, phone, "hash")
	require.NoError(t, err)

	bazaar, err := CreateBazaar(ctx, BazaarInput{Name: "Test Bazaar " + suffix, OpenTime: "10:00", CloseTime: "12:00"})
	require.NoError(t, err)

	f := &fixture{user: user, bazaar: bazaar}
	t.Cleanup(func() {
		for _, q := range []string{
			`DELETE FROM transactions WHERE user_id = $1`,
			`DELETE FROM bets WHERE user_id = $1`,
			`DELETE FROM withdrawals WHERE user_id = $1`,
			`DELETE FROM payments WHERE user_id = $1`,
			`DELETE FROM users WHERE id = $1`,
		} {
			_, _ = PostgresPool.Exec(ctx, q, user.ID)
		}
		_, _ = PostgresPool.Exec(ctx, `DELETE FROM bazaars WHERE id = $1`, bazaar.ID)
	})
	return f
}

func balanceOf(t *testing.T, ctx context.Context, userID string) decimal.Decimal {
	t.Helper()
	b, err := GetBalance(ctx, userID)
	require.NoError(t, err)
	return b
}

func TestSettlementLifecycle(t *testing.T) {
	ctx := setupPostgres(t)
	f := newFixture(t, ctx)

	settings, err := GetSettings(ctx)
	require.NoError(t, err)
	if settings.Maintenance {
		t.Skip("settings have maintenance enabled")
	}

	stake := settings.MinBet
	start := settings.MinBet.Mul(decimal.NewFromInt(100))
	date := "2030-01-01"

	_, err = AdjustWallet(ctx, f.user.ID, start, "test float", "test-admin")
	require.NoError(t, err)

	slip, err := PlaceBets(ctx, f.user.ID, f.bazaar.ID, date, []BetRequest{
		{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "1", Amount: stake},
		{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "5", Amount: stake},
		{GameType: game.JodiDigit, Number: "10", Amount: stake},
		{GameType: game.SinglePanna, Session: game.SessionOpen, Number: "128", Amount: stake},
	})
	require.NoError(t, err)
	require.Len(t, slip.Bets, 4)

	afterBets := start.Sub(stake.Mul(decimal.NewFromInt(4)))
	assert.True(t, slip.Balance.Equal(afterBets), slip.Balance.String())
	assert.Equal(t, game.SessionClose, slip.Bets[2].SettlesOn)

	singleWin := game.WinAmount(stake, settings.Rates.For(game.SingleDigit))
	pannaWin := game.WinAmount(stake, settings.Rates.For(game.SinglePanna))
	jodiWin := game.WinAmount(stake, settings.Rates.For(game.JodiDigit))

	t.Run("close before open is refused", func(t *testing.T) {
		_, err := DeclareResult(ctx, f.bazaar.ID, date, game.SessionClose, "370", "test-admin")
		assert.ErrorIs(t, err, ErrOpenNotDeclared)
	})

	t.Run("declare open settles open bets", func(t *testing.T) {
		decl, err := DeclareResult(ctx, f.bazaar.ID, date, game.SessionOpen, "128", "test-admin")
		require.NoError(t, err)

		assert.Equal(t, 3, decl.Settled)
		assert.Equal(t, 2, decl.Winners)
		assert.True(t, decl.TotalPayout.Equal(singleWin.Add(pannaWin)))
		assert.Equal(t, []string{f.user.ID}, decl.WinnerIDs)
		assert.Equal(t, "128-1*-***", decl.Result.Display)

		want := afterBets.Add(singleWin).Add(pannaWin)
		assert.True(t, balanceOf(t, ctx, f.user.ID).Equal(want))

		_, err = DeclareResult(ctx, f.bazaar.ID, date, game.SessionOpen, "137", "test-admin")
		assert.ErrorIs(t, err, ErrAlreadyDeclared)

		_, err = PlaceBets(ctx, f.user.ID, f.bazaar.ID, date, []BetRequest{
			{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "2", Amount: stake},
		})
		assert.ErrorIs(t, err, ErrMarketClosed)
	})

	t.Run("declare close settles jodi", func(t *testing.T) {
		decl, err := DeclareResult(ctx, f.bazaar.ID, date, game.SessionClose, "370", "test-admin")
		require.NoError(t, err)

		assert.Equal(t, 1, decl.Settled)
		assert.Equal(t, 1, decl.Winners)
		assert.Equal(t, "128-10-370", decl.Result.Display)

		want := afterBets.Add(singleWin).Add(pannaWin).Add(jodiWin)
		assert.True(t, balanceOf(t, ctx, f.user.ID).Equal(want))

		bets, err := ListBets(ctx, BetFilter{UserID: f.user.ID, Status: BetLost})
		require.NoError(t, err)
		require.Len(t, bets, 1)
		assert.Equal(t, "5", bets[0].Number)
	})

	t.Run("revert open while close is declared is refused", func(t *testing.T) {
		_, err := RevertDeclaration(ctx, f.bazaar.ID, date, game.SessionOpen, "test-admin")
		assert.ErrorIs(t, err, ErrRevertOrder)
	})

	t.Run("revert close then open restores the wallet", func(t *testing.T) {
		rev, err := RevertDeclaration(ctx, f.bazaar.ID, date, game.SessionClose, "test-admin")
		require.NoError(t, err)
		assert.Equal(t, 1, rev.Reopened)
		assert.True(t, rev.Reversed.Equal(jodiWin))
		require.NotNil(t, rev.Result)
		assert.Equal(t, "128-1*-***", rev.Result.Display)

		rev, err = RevertDeclaration(ctx, f.bazaar.ID, date, game.SessionOpen, "test-admin")
		require.NoError(t, err)
		assert.Equal(t, 3, rev.Reopened)
		assert.Nil(t, rev.Result)

		assert.True(t, balanceOf(t, ctx, f.user.ID).Equal(afterBets))

		_, err = GetResult(ctx, f.bazaar.ID, date)
		assert.ErrorIs(t, err, ErrNotFound)

		pending, err := ListBets(ctx, BetFilter{UserID: f.user.ID, Status: BetPending})
		require.NoError(t, err)
		assert.Len(t, pending, 4)

		_, err = RevertDeclaration(ctx, f.bazaar.ID, date, game.SessionOpen, "test-admin")
		assert.ErrorIs(t, err, ErrNotDeclared)
	})

	t.Run("ledger has one row per movement", func(t *testing.T) {
		txs, err := ListTransactions(ctx, TransactionFilter{UserID: f.user.ID, Limit: 100})
		require.NoError(t, err)
		// credit + 4 bets + 3 wins + 3 reversals
		assert.Len(t, txs, 11)
	})

	t.Run("bazaar with bets cannot be deleted", func(t *testing.T) {
		assert.ErrorIs(t, DeleteBazaar(ctx, f.bazaar.ID), ErrBazaarInUse)
	})
}

func TestPlaceBetsGuards(t *testing.T) {
	ctx := setupPostgres(t)
	f := newFixture(t, ctx)

	settings, err := GetSettings(ctx)
	require.NoError(t, err)
	if settings.Maintenance {
		t.Skip("settings have maintenance enabled")
	}

	bet := []BetRequest{{GameType: game.SingleDigit, Session: game.SessionOpen, Number: "3", Amount: settings.MinBet}}

	t.Run("insufficient funds leaves nothing behind", func(t *testing.T) {
		_, err := PlaceBets(ctx, f.user.ID, f.bazaar.ID, "2030-01-02", bet)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		bets, err := ListBets(ctx, BetFilter{UserID: f.user.ID})
		require.NoError(t, err)
		assert.Empty(t, bets)
	})

	t.Run("blocked user", func(t *testing.T) {
		require.NoError(t, SetUserBlocked(ctx, f.user.ID, true))
		defer SetUserBlocked(ctx, f.user.ID, false)

		_, err := PlaceBets(ctx, f.user.ID, f.bazaar.ID, "2030-01-02", bet)
		assert.ErrorIs(t, err, ErrUserBlocked)
	})

	t.Run("unknown bazaar", func(t *testing.T) {
		_, err := AdjustWallet(ctx, f.user.ID, settings.MinBet, "", "test-admin")
		require.NoError(t, err)

		_, err = PlaceBets(ctx, f.user.ID, uuid.NewString(), "2030-01-02", bet)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestWithdrawalAndPaymentFlows(t *testing.T) {
	ctx := setupPostgres(t)
	f := newFixture(t, ctx)

	settings, err := GetSettings(ctx)
	require.NoError(t, err)

	start := settings.MinWithdrawal.Add(settings.MinDeposit).Mul(decimal.NewFromInt(2))
	_, err = AdjustWallet(ctx, f.user.ID, start, "", "test-admin")
	require.NoError(t, err)

	t.Run("withdrawal holds funds and reject refunds", func(t *testing.T) {
		w, err := RequestWithdrawal(ctx, f.user.ID, settings.MinWithdrawal, "upi", "player@upi")
		require.NoError(t, err)
		assert.Equal(t, RequestPending, w.Status)
		assert.True(t, balanceOf(t, ctx, f.user.ID).Equal(start.Sub(settings.MinWithdrawal)))

		_, err = RequestWithdrawal(ctx, f.user.ID, settings.MinWithdrawal, "upi", "player@upi")
		assert.ErrorIs(t, err, ErrPendingWithdrawal)

		w, err = DecideWithdrawal(ctx, w.ID, RequestRejected, "details mismatch", "test-admin")
		require.NoError(t, err)
		assert.Equal(t, RequestRejected, w.Status)
		assert.True(t, balanceOf(t, ctx, f.user.ID).Equal(start))

		_, err = DecideWithdrawal(ctx, w.ID, RequestApproved, "", "test-admin")
		assert.ErrorIs(t, err, ErrAlreadyDecided)
	})

	t.Run("approved withdrawal keeps the hold", func(t *testing.T) {
		w, err := RequestWithdrawal(ctx, f.user.ID, settings.MinWithdrawal, "bank", "acct 1234")
		require.NoError(t, err)

		_, err = DecideWithdrawal(ctx, w.ID, RequestApproved, "paid", "test-admin")
		require.NoError(t, err)
		assert.True(t, balanceOf(t, ctx, f.user.ID).Equal(start.Sub(settings.MinWithdrawal)))
	})

	t.Run("payment approval credits once", func(t *testing.T) {
		before := balanceOf(t, ctx, f.user.ID)
		utr := "UTR" + uuid.NewString()[:12]

		p, err := SubmitPayment(ctx, f.user.ID, settings.MinDeposit, "upi", utr)
		require.NoError(t, err)
		assert.True(t, balanceOf(t, ctx, f.user.ID).Equal(before))

		_, err = SubmitPayment(ctx, f.user.ID, settings.MinDeposit, "upi", utr)
		assert.ErrorIs(t, err, ErrDuplicateUTR)

		_, err = DecidePayment(ctx, p.ID, RequestApproved, "", "test-admin")
		require.NoError(t, err)
		assert.True(t, balanceOf(t, ctx, f.user.ID).Equal(before.Add(settings.MinDeposit)))

		_, err = DecidePayment(ctx, p.ID, RequestRejected, "", "test-admin")
		assert.ErrorIs(t, err, ErrAlreadyDecided)
	})
}
