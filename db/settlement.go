package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"sitaraServer/game"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

/* =========================
   RESULT DECLARATION & SETTLEMENT
========================= */

// Declaration summarises one settled half.
type Declaration struct {
	Result      *Result         `json:"result"`
	Session     game.Session    `json:"session"`
	Settled     int             `json:"settled"`
	Winners     int             `json:"winners"`
	TotalPayout decimal.Decimal `json:"totalPayout"`
	// WinnerIDs lists each winning user once, for pushes and the mirror.
	WinnerIDs []string `json:"-"`
}

// Reversal summarises a reverted half.
type Reversal struct {
	BazaarID string          `json:"bazaarId"`
	Date     string          `json:"date"`
	Session  game.Session    `json:"session"`
	Reopened int             `json:"reopened"`
	Reversed decimal.Decimal `json:"reversed"`
	// Result is nil once neither half remains declared.
	Result      *Result  `json:"result,omitempty"`
	AffectedIDs []string `json:"-"`
}

// lockResult makes sure the result row exists and locks it. The bazaar
// row is locked too so PlaceBets, which holds it FOR SHARE, cannot slip a
// bet in behind the declaration.
func lockResult(ctx context.Context, tx pgx.Tx, bazaarID, date string) (openPanna, closePanna string, err error) {
	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM bazaars WHERE id = $1 FOR UPDATE`, bazaarID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to lock bazaar: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO results (bazaar_id, result_date) VALUES ($1, $2::date)
		ON CONFLICT (bazaar_id, result_date) DO NOTHING
	`, bazaarID, date); err != nil {
		return "", "", fmt.Errorf("failed to create result row: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT open_panna, close_panna FROM results
		WHERE bazaar_id = $1 AND result_date = $2::date
		FOR UPDATE
	`, bazaarID, date).Scan(&openPanna, &closePanna)
	if err != nil {
		return "", "", fmt.Errorf("failed to lock result: %w", err)
	}
	return openPanna, closePanna, nil
}

// DeclareResult publishes one half of a bazaar's result and settles every
// pending bet that half decides, all in one transaction. Close requires
// open. A half can only be declared once until it is reverted.
func DeclareResult(ctx context.Context, bazaarID, date string, session game.Session, panna, adminID string) (*Declaration, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	if !session.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, game.ErrInvalidSession)
	}
	if !game.ValidPanna(panna) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, game.ErrInvalidPanna)
	}

	release, err := AcquireSettleLock(ctx, bazaarID, date, string(session))
	if err != nil {
		return nil, err
	}
	defer release()

	decl := &Declaration{Session: session, TotalPayout: decimal.Zero}

	err = withTx(ctx, func(tx pgx.Tx) error {
		openPanna, closePanna, err := lockResult(ctx, tx, bazaarID, date)
		if err != nil {
			return err
		}

		result := game.Result{OpenPanna: openPanna, ClosePanna: closePanna}
		switch session {
		case game.SessionOpen:
			if result.OpenDeclared() {
				return ErrAlreadyDeclared
			}
			result.OpenPanna = panna
			_, err = tx.Exec(ctx, `
				UPDATE results SET open_panna = $3, open_declared_at = NOW(), updated_at = NOW()
				WHERE bazaar_id = $1 AND result_date = $2::date
			`, bazaarID, date, panna)
		case game.SessionClose:
			if !result.OpenDeclared() {
				return ErrOpenNotDeclared
			}
			if result.CloseDeclared() {
				return ErrAlreadyDeclared
			}
			result.ClosePanna = panna
			_, err = tx.Exec(ctx, `
				UPDATE results SET close_panna = $3, close_declared_at = NOW(), updated_at = NOW()
				WHERE bazaar_id = $1 AND result_date = $2::date
			`, bazaarID, date, panna)
		}
		if err != nil {
			return fmt.Errorf("failed to store result: %w", err)
		}

		settings, err := loadSettings(ctx, tx)
		if err != nil {
			return err
		}

		if err := settleBets(ctx, tx, bazaarID, date, session, result, settings.Rates, decl); err != nil {
			return err
		}

		decl.Result, err = scanResult(tx.QueryRow(ctx, `
			SELECT `+resultColumns+`
			FROM results r JOIN bazaars b ON b.id = r.bazaar_id
			WHERE r.bazaar_id = $1 AND r.result_date = $2::date
		`, bazaarID, date))
		if err != nil {
			return fmt.Errorf("failed to reload result: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("✅ result declared",
		zap.String("bazaar", bazaarID),
		zap.String("date", date),
		zap.String("session", string(session)),
		zap.String("panna", panna),
		zap.Int("settled", decl.Settled),
		zap.Int("winners", decl.Winners),
		zap.String("payout", decl.TotalPayout.StringFixed(2)),
		zap.String("admin", adminID),
	)
	return decl, nil
}

// settleBets locks the pending bets the declared half decides, marks each
// won or lost and credits winners with one ledger row per winning bet.
func settleBets(ctx context.Context, tx pgx.Tx, bazaarID, date string, session game.Session, result game.Result, rates game.Rates, decl *Declaration) error {
	rows, err := tx.Query(ctx, `
		SELECT b.id, b.user_id, b.game_type, b.session, b.number, b.amount::text, z.name
		FROM bets b JOIN bazaars z ON z.id = b.bazaar_id
		WHERE b.bazaar_id = $1 AND b.bet_date = $2::date AND b.settles_on = $3 AND b.status = 'pending'
		ORDER BY b.created_at, b.id
		FOR UPDATE OF b
	`, bazaarID, date, string(session))
	if err != nil {
		return fmt.Errorf("failed to query pending bets: %w", err)
	}

	var bets []game.Bet
	numbers := make(map[string]string)
	var bazaarName string
	for rows.Next() {
		var b game.Bet
		var gameType, betSession, amount string
		if err := rows.Scan(&b.ID, &b.UserID, &gameType, &betSession, &b.Number, &amount, &bazaarName); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan bet: %w", err)
		}
		b.GameType = game.GameType(gameType)
		b.Session = game.Session(betSession)
		b.Amount = money(amount)
		bets = append(bets, b)
		numbers[b.ID] = string(b.GameType) + " " + b.Number
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating bets: %w", err)
	}

	outcomes := game.Settle(bets, result, session, rates)
	// user rows are locked in id order so concurrent settlements cannot deadlock
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].UserID < outcomes[j].UserID })

	var losers []string
	seen := make(map[string]bool)
	for _, o := range outcomes {
		decl.Settled++
		if !o.Won {
			losers = append(losers, o.BetID)
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE bets SET status = 'won', win_amount = $2::numeric, settled_at = NOW()
			WHERE id = $1
		`, o.BetID, moneyArg(o.WinAmount)); err != nil {
			return fmt.Errorf("failed to mark bet won: %w", err)
		}

		if _, err := applyWalletChange(ctx, tx, ledgerEntry{
			UserID:      o.UserID,
			Delta:       o.WinAmount,
			Type:        TxWin,
			ReferenceID: o.BetID,
			Note:        fmt.Sprintf("Won %s on %s %s", numbers[o.BetID], bazaarName, date),
		}); err != nil {
			return fmt.Errorf("failed to credit winnings: %w", err)
		}

		decl.Winners++
		decl.TotalPayout = decl.TotalPayout.Add(o.WinAmount)
		if !seen[o.UserID] {
			seen[o.UserID] = true
			decl.WinnerIDs = append(decl.WinnerIDs, o.UserID)
		}
	}

	if len(losers) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE bets SET status = 'lost', win_amount = 0, settled_at = NOW()
			WHERE id = ANY($1)
		`, losers); err != nil {
			return fmt.Errorf("failed to mark bets lost: %w", err)
		}
	}

	return nil
}

/* =========================
   REVERT
========================= */

// RevertDeclaration undoes one declared half. Bets it settled go back to
// pending and paid winnings are taken back with win_reversal rows, even
// if that leaves a negative balance. Close must be reverted before open.
func RevertDeclaration(ctx context.Context, bazaarID, date string, session game.Session, adminID string) (*Reversal, error) {
	date, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	if !session.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, game.ErrInvalidSession)
	}

	release, err := AcquireSettleLock(ctx, bazaarID, date, string(session))
	if err != nil {
		return nil, err
	}
	defer release()

	rev := &Reversal{BazaarID: bazaarID, Date: date, Session: session, Reversed: decimal.Zero}

	err = withTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM bazaars WHERE id = $1 FOR UPDATE`, bazaarID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock bazaar: %w", err)
		}

		var openPanna, closePanna string
		err = tx.QueryRow(ctx, `
			SELECT open_panna, close_panna FROM results
			WHERE bazaar_id = $1 AND result_date = $2::date
			FOR UPDATE
		`, bazaarID, date).Scan(&openPanna, &closePanna)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotDeclared
		}
		if err != nil {
			return fmt.Errorf("failed to lock result: %w", err)
		}

		switch session {
		case game.SessionOpen:
			if openPanna == "" {
				return ErrNotDeclared
			}
			if closePanna != "" {
				return ErrRevertOrder
			}
		case game.SessionClose:
			if closePanna == "" {
				return ErrNotDeclared
			}
		}

		if err := unsettleBets(ctx, tx, bazaarID, date, session, adminID, rev); err != nil {
			return err
		}

		if session == game.SessionOpen {
			_, err = tx.Exec(ctx, `
				UPDATE results SET open_panna = '', open_declared_at = NULL, updated_at = NOW()
				WHERE bazaar_id = $1 AND result_date = $2::date
			`, bazaarID, date)
		} else {
			_, err = tx.Exec(ctx, `
				UPDATE results SET close_panna = '', close_declared_at = NULL, updated_at = NOW()
				WHERE bazaar_id = $1 AND result_date = $2::date
			`, bazaarID, date)
		}
		if err != nil {
			return fmt.Errorf("failed to clear result: %w", err)
		}

		// a result with neither half declared is removed
		tag, err := tx.Exec(ctx, `
			DELETE FROM results
			WHERE bazaar_id = $1 AND result_date = $2::date AND open_panna = '' AND close_panna = ''
		`, bazaarID, date)
		if err != nil {
			return fmt.Errorf("failed to delete empty result: %w", err)
		}
		if tag.RowsAffected() == 0 {
			rev.Result, err = scanResult(tx.QueryRow(ctx, `
				SELECT `+resultColumns+`
				FROM results r JOIN bazaars b ON b.id = r.bazaar_id
				WHERE r.bazaar_id = $1 AND r.result_date = $2::date
			`, bazaarID, date))
			if err != nil {
				return fmt.Errorf("failed to reload result: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("↩️ result reverted",
		zap.String("bazaar", bazaarID),
		zap.String("date", date),
		zap.String("session", string(session)),
		zap.Int("reopened", rev.Reopened),
		zap.String("reversed", rev.Reversed.StringFixed(2)),
		zap.String("admin", adminID),
	)
	return rev, nil
}

type settledBet struct {
	id        string
	userID    string
	status    BetStatus
	winAmount decimal.Decimal
}

func unsettleBets(ctx context.Context, tx pgx.Tx, bazaarID, date string, session game.Session, adminID string, rev *Reversal) error {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, status, win_amount::text
		FROM bets
		WHERE bazaar_id = $1 AND bet_date = $2::date AND settles_on = $3 AND status <> 'pending'
		ORDER BY created_at, id
		FOR UPDATE
	`, bazaarID, date, string(session))
	if err != nil {
		return fmt.Errorf("failed to query settled bets: %w", err)
	}

	var settled []settledBet
	for rows.Next() {
		var b settledBet
		var status, winAmount string
		if err := rows.Scan(&b.id, &b.userID, &status, &winAmount); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan bet: %w", err)
		}
		b.status = BetStatus(status)
		b.winAmount = money(winAmount)
		settled = append(settled, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating bets: %w", err)
	}

	sort.SliceStable(settled, func(i, j int) bool { return settled[i].userID < settled[j].userID })

	ids := make([]string, 0, len(settled))
	seen := make(map[string]bool)
	for _, b := range settled {
		ids = append(ids, b.id)
		if b.status != BetWon || !b.winAmount.IsPositive() {
			continue
		}

		if _, err := applyWalletChange(ctx, tx, ledgerEntry{
			UserID:      b.userID,
			Delta:       b.winAmount.Neg(),
			Type:        TxWinReversal,
			ReferenceID: b.id,
			Note:        fmt.Sprintf("Result reverted for %s %s", date, session),
			CreatedBy:   adminID,
		}); err != nil {
			return fmt.Errorf("failed to reverse winnings: %w", err)
		}

		rev.Reversed = rev.Reversed.Add(b.winAmount)
		if !seen[b.userID] {
			seen[b.userID] = true
			rev.AffectedIDs = append(rev.AffectedIDs, b.userID)
		}
	}

	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE bets SET status = 'pending', win_amount = 0, settled_at = NULL
			WHERE id = ANY($1)
		`, ids); err != nil {
			return fmt.Errorf("failed to reopen bets: %w", err)
		}
	}
	rev.Reopened = len(ids)
	return nil
}
