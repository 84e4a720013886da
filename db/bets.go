package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sitaraServer/config"
	"sitaraServer/game"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BetRequest is one line of a bet slip
type BetRequest struct {
	GameType game.GameType   `json:"gameType"`
	Session  game.Session    `json:"session"`
	Number   string          `json:"number"`
	Amount   decimal.Decimal `json:"amount"`
}

// Slip is the outcome of a placed bet slip
type Slip struct {
	Bets    []Bet           `json:"bets"`
	Total   decimal.Decimal `json:"total"`
	Balance decimal.Decimal `json:"balance"`
}

// validateSlip normalises each line against the game rules and the
// admin-configured stake limits.
func validateSlip(reqs []BetRequest, settings AppSettings) ([]BetRequest, decimal.Decimal, error) {
	if len(reqs) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: no bets", ErrInvalid)
	}
	if len(reqs) > config.MaxBetsPerSlip {
		return nil, decimal.Zero, fmt.Errorf("%w: at most %d bets per slip", ErrInvalid, config.MaxBetsPerSlip)
	}

	total := decimal.Zero
	out := make([]BetRequest, len(reqs))
	for i, r := range reqs {
		session, number, err := game.ValidateBetNumber(r.GameType, r.Session, r.Number)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("%w: bet %d: %v", ErrInvalid, i+1, err)
		}
		if !r.Amount.IsPositive() || r.Amount.Exponent() < -2 {
			return nil, decimal.Zero, fmt.Errorf("%w: bet %d: amount must be positive with at most 2 decimals", ErrInvalid, i+1)
		}
		if r.Amount.LessThan(settings.MinBet) {
			return nil, decimal.Zero, fmt.Errorf("%w: bet %d: minimum bet is %s", ErrInvalid, i+1, settings.MinBet.StringFixed(2))
		}
		if r.Amount.GreaterThan(settings.MaxBet) {
			return nil, decimal.Zero, fmt.Errorf("%w: bet %d: maximum bet is %s", ErrInvalid, i+1, settings.MaxBet.StringFixed(2))
		}

		out[i] = BetRequest{GameType: r.GameType, Session: session, Number: number, Amount: r.Amount}
		total = total.Add(r.Amount)
	}
	return out, total, nil
}

// PlaceBets places a whole slip for one bazaar and game date. Every bet is
// debited with its own ledger row; the slip succeeds or fails as a unit.
// Market hours are checked by the caller against the market registry.
func PlaceBets(ctx context.Context, userID, bazaarID, date string, reqs []BetRequest) (*Slip, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	slip := &Slip{}
	err = withTx(ctx, func(tx pgx.Tx) error {
		settings, err := loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		if settings.Maintenance {
			return fmt.Errorf("%w: betting is paused for maintenance", ErrMarketClosed)
		}

		lines, total, err := validateSlip(reqs, settings)
		if err != nil {
			return err
		}
		slip.Total = total

		// bazaar before user, the same order declarations lock in
		var bazaarName string
		var active bool
		err = tx.QueryRow(ctx, `SELECT name, active FROM bazaars WHERE id = $1 FOR SHARE`, bazaarID).Scan(&bazaarName, &active)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get bazaar: %w", err)
		}
		if !active {
			return ErrBazaarInactive
		}

		var blocked bool
		err = tx.QueryRow(ctx, `SELECT blocked FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&blocked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}
		if blocked {
			return ErrUserBlocked
		}

		var declared game.Result
		err = tx.QueryRow(ctx, `
			SELECT open_panna, close_panna FROM results
			WHERE bazaar_id = $1 AND result_date = $2::date
		`, bazaarID, date).Scan(&declared.OpenPanna, &declared.ClosePanna)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check result: %w", err)
		}
		for _, line := range lines {
			if declared.PannaFor(game.SettlesOn(line.GameType, line.Session)) != "" {
				return fmt.Errorf("%w: %s result already declared", ErrMarketClosed, game.SettlesOn(line.GameType, line.Session))
			}
		}

		for _, line := range lines {
			b := Bet{
				ID:         uuid.NewString(),
				UserID:     userID,
				BazaarID:   bazaarID,
				BazaarName: bazaarName,
				Date:       date,
				GameType:   line.GameType,
				Session:    line.Session,
				SettlesOn:  game.SettlesOn(line.GameType, line.Session),
				Number:     line.Number,
				Amount:     line.Amount,
				Status:     BetPending,
				WinAmount:  decimal.Zero,
			}

			err := tx.QueryRow(ctx, `
				INSERT INTO bets (id, user_id, bazaar_id, bet_date, game_type, session, settles_on, number, amount)
				VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9::numeric)
				RETURNING created_at
			`, b.ID, b.UserID, b.BazaarID, b.Date, string(b.GameType), string(b.Session), string(b.SettlesOn), b.Number, moneyArg(b.Amount)).Scan(&b.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert bet: %w", err)
			}

			slip.Balance, err = applyWalletChange(ctx, tx, ledgerEntry{
				UserID:       userID,
				Delta:        b.Amount.Neg(),
				Type:         TxBet,
				ReferenceID:  b.ID,
				Note:         fmt.Sprintf("%s %s %s on %s %s", b.GameType, b.Session, b.Number, bazaarName, date),
				RequireFunds: true,
			})
			if err != nil {
				return err
			}

			slip.Bets = append(slip.Bets, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infof("🎲 User %s placed %d bets on %s (%s) total %s", userID, len(slip.Bets), bazaarID, date, slip.Total.StringFixed(2))
	return slip, nil
}

// BetFilter narrows ListBets. Empty fields match everything.
type BetFilter struct {
	BazaarID string
	Date     string
	Status   BetStatus
	UserID   string
	Limit    int
	Offset   int
}

// ListBets returns bets newest first with user and bazaar names
func ListBets(ctx context.Context, f BetFilter) ([]Bet, error) {
	if PostgresPool == nil {
		return nil, ErrNotInitialized
	}

	if f.Date != "" {
		d, err := ParseDate(f.Date)
		if err != nil {
			return nil, err
		}
		f.Date = d
	}
	limit, offset := pageArgs(f.Limit, f.Offset)

	rows, err := PostgresPool.Query(ctx, `
		SELECT b.id, b.user_id, u.name, b.bazaar_id, z.name, b.bet_date, b.game_type, b.session,
		       b.settles_on, b.number, b.amount::text, b.status, b.win_amount::text, b.settled_at, b.created_at
		FROM bets b
		JOIN users u ON u.id = b.user_id
		JOIN bazaars z ON z.id = b.bazaar_id
		WHERE ($1 = '' OR b.bazaar_id = $1)
		  AND ($2::text = '' OR b.bet_date = $2::text::date)
		  AND ($3 = '' OR b.status = $3)
		  AND ($4 = '' OR b.user_id = $4)
		ORDER BY b.created_at DESC, b.id
		LIMIT $5 OFFSET $6
	`, f.BazaarID, f.Date, string(f.Status), f.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", err)
	}
	defer rows.Close()

	bets := []Bet{}
	for rows.Next() {
		var b Bet
		var date time.Time
		var gameType, session, settlesOn, amount, status, winAmount string
		if err := rows.Scan(&b.ID, &b.UserID, &b.UserName, &b.BazaarID, &b.BazaarName, &date, &gameType, &session,
			&settlesOn, &b.Number, &amount, &status, &winAmount, &b.SettledAt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		b.Date = dateString(date)
		b.GameType = game.GameType(gameType)
		b.Session = game.Session(session)
		b.SettlesOn = game.Session(settlesOn)
		b.Amount = money(amount)
		b.Status = BetStatus(status)
		b.WinAmount = money(winAmount)
		bets = append(bets, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}

	return bets, nil
}
